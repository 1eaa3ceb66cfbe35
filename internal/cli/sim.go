package cli

import (
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/spf13/cobra"

	"sairun/internal/driver"
	"sairun/internal/job"
	"sairun/internal/sched"
)

var (
	simEchoAddr = netip.MustParseAddrPort("10.0.0.1:7")
	simPingAddr = netip.MustParseAddrPort("10.0.0.2:40000")
)

func newSimCmd() *cobra.Command {
	var (
		pings    int
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Run a ping/echo exchange in virtual time",
		Long: "sim spawns an echo task and a ping task on one runtime, connects them over a\n" +
			"loopback network and steps virtual time by tick_ms until both finish.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			sim := driver.NewSim(rt, time.Unix(0, 0).UTC(), tickInterval())
			sim.Bind(simEchoAddr)
			sim.Bind(simPingAddr)

			start := sim.Now()
			sim.Spawn(sched.Eff(job.Echo(simEchoAddr, pings)))
			sim.Spawn(sched.Eff(job.Ping(simPingAddr, simEchoAddr, pings, interval, printReply(cmd, simEchoAddr.String()))))

			steps := sim.Run(time.Duration(cfg.SimSeconds) * time.Second)
			logger.Info("simulation done",
				slog.Int("steps", steps),
				slog.Duration("virtual", sim.Now().Sub(start)),
				slog.Int("suspended", rt.Len()),
				slog.Int("unrouted", len(sim.Unrouted())))

			if !rt.IsFinished() {
				return fmt.Errorf("%d task(s) still suspended after %ds of virtual time", rt.Len(), cfg.SimSeconds)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&pings, "pings", 3, "Number of pings to send")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Virtual time between pings")
	return cmd
}
