package cli

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"sairun/internal/driver"
	"sairun/internal/job"
	"sairun/internal/sched"
)

// nowFunc is the wall clock handed to the runtime by the UDP commands.
var nowFunc = time.Now

func newPingCmd() *cobra.Command {
	var (
		listen   string
		peer     string
		count    int
		interval time.Duration
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Ping a UDP echo responder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := netip.ParseAddrPort(listen)
			if err != nil {
				return fmt.Errorf("parse --listen: %w", err)
			}
			remote, err := netip.ParseAddrPort(peer)
			if err != nil {
				return fmt.Errorf("parse --peer: %w", err)
			}

			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			d := driver.NewUDP(rt, tickInterval(), logger)
			local, err := d.Bind(addr)
			if err != nil {
				return err
			}
			rt.Spawn(sched.Eff(job.Ping(local, remote, count, interval, printReply(cmd, remote.String()))), nowFunc())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			err = d.Run(ctx)
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("no reply from %s within %s", remote, timeout)
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:0", "Local address to send from")
	cmd.Flags().StringVar(&peer, "peer", "127.0.0.1:9000", "Echo responder address")
	cmd.Flags().IntVar(&count, "count", 3, "Number of pings")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Time between pings")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Give up after this long")
	return cmd
}
