package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/eepromblk/monitoring"
)

// newMonitor creates a monitor that watches the device of the session.
func (a *app) newMonitor(s *session, port int) *monitoring.Monitor {
	m := monitoring.NewMonitor().
		WithLogger(a.logger).
		WithPortNumber(port)

	m.RegisterDevice(s.device)
	m.RegisterStats(s.device.Name(), s.stats)

	return m
}

// serveMonitor starts m and returns a function that stops it.
func serveMonitor(m *monitoring.Monitor) (func(), error) {
	_, err := m.StartServer()
	if err != nil {
		return nil, err
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		_ = m.StopServer(ctx)
	}, nil
}

func newMonitorCmd(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Serve the state of the device over HTTP until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("port") {
				port = a.cfg.MonitorPort
			}

			s, err := a.openDevice()
			if err != nil {
				return err
			}
			defer s.close()

			stop, err := serveMonitor(a.newMonitor(s, port))
			if err != nil {
				return err
			}
			defer stop()

			ctx, cancel := signal.NotifyContext(cmd.Context(),
				syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop.")
			<-ctx.Done()

			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Port of the monitoring server")

	return cmd
}
