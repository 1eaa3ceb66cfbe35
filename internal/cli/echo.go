package cli

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"sairun/internal/driver"
	"sairun/internal/job"
	"sairun/internal/sched"
)

func newEchoCmd() *cobra.Command {
	var (
		listen string
		count  int
	)

	cmd := &cobra.Command{
		Use:   "echo",
		Short: "Serve a UDP echo responder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := netip.ParseAddrPort(listen)
			if err != nil {
				return fmt.Errorf("parse --listen: %w", err)
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
			rt.Spawn(sched.Eff(job.Echo(local, count)), nowFunc())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			if n := d.Dropped(); n > 0 {
				logger.Warn("datagrams dropped by the receive queue", "count", n)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:9000", "Address to serve on")
	cmd.Flags().IntVar(&count, "count", 0, "Stop after this many replies (0 = forever)")
	return cmd
}
