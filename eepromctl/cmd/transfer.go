package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sarchlab/eepromblk/monitoring"
)

// transferFlags are shared by the commands that move a whole chip.
type transferFlags struct {
	monitor bool
	port    int
}

func (f *transferFlags) add(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.monitor, "monitor", false,
		"Serve the progress over HTTP while transferring")
	cmd.Flags().IntVar(&f.port, "port", 0, "Port of the monitoring server")
}

// start prepares a progress bar, serving it if asked to.
func (f *transferFlags) start(
	a *app,
	s *session,
	name string,
	total uint64,
) (*monitoring.ProgressBar, func(), error) {
	port := f.port
	if port == 0 {
		port = a.cfg.MonitorPort
	}

	m := a.newMonitor(s, port)
	bar := m.CreateProgressBar(name, total)
	done := func() { m.CompleteProgressBar(bar) }

	if !f.monitor {
		return bar, done, nil
	}

	stop, err := serveMonitor(m)
	if err != nil {
		return nil, nil, err
	}

	return bar, func() {
		done()
		stop()
	}, nil
}

func newDumpCmd(a *app) *cobra.Command {
	flags := &transferFlags{}

	cmd := &cobra.Command{
		Use:   "dump FILE",
		Short: "Copy every block of the device into a file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openDevice()
			if err != nil {
				return err
			}
			defer s.close()

			bar, done, err := flags.start(a, s, "dump", s.geometry.Capacity())
			if err != nil {
				return err
			}
			defer done()

			data, err := dump(cmd.Context(), s, bar)
			if err != nil {
				return err
			}

			err = os.WriteFile(args[0], data, 0o644)
			if err != nil {
				return errors.Wrapf(err, "cannot write %s", args[0])
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Dumped %s to %s in %s\n",
				humanize.IBytes(uint64(len(data))), args[0], s.busy.BusyTime())

			return nil
		},
	}

	flags.add(cmd)

	return cmd
}

func dump(
	ctx context.Context,
	s *session,
	bar *monitoring.ProgressBar,
) ([]byte, error) {
	g := s.geometry
	data := make([]byte, 0, g.Capacity())

	for block := uint64(0); block < g.BlockCount; block++ {
		bar.IncrementInProgress(g.BlockSize)

		buf, err := s.device.Read(ctx, block, 0, g.BlockSize)
		if err != nil {
			return nil, err
		}

		data = append(data, buf...)
		bar.MoveInProgressToFinished(g.BlockSize)
	}

	return data, nil
}

func newRestoreCmd(a *app) *cobra.Command {
	flags := &transferFlags{}

	cmd := &cobra.Command{
		Use:   "restore FILE",
		Short: "Write a file into the device, starting at block 0.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrapf(err, "cannot read %s", args[0])
			}

			s, err := a.openDevice()
			if err != nil {
				return err
			}
			defer s.close()

			if uint64(len(data)) > s.geometry.Capacity() {
				return errors.Errorf("%s holds %d bytes, the device only %d",
					args[0], len(data), s.geometry.Capacity())
			}

			bar, done, err := flags.start(
				a, s, "restore", uint64(len(data)))
			if err != nil {
				return err
			}
			defer done()

			err = restore(cmd.Context(), s, data, bar)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s from %s in %s\n",
				humanize.IBytes(uint64(len(data))), args[0], s.busy.BusyTime())

			return nil
		},
	}

	flags.add(cmd)

	return cmd
}

func restore(
	ctx context.Context,
	s *session,
	data []byte,
	bar *monitoring.ProgressBar,
) error {
	blockSize := s.geometry.BlockSize

	for block := uint64(0); len(data) > 0; block++ {
		n := min(uint64(len(data)), blockSize)
		bar.IncrementInProgress(n)

		err := s.device.Erase(ctx, block)
		if err != nil {
			return err
		}

		err = s.device.Write(ctx, block, 0, data[:n])
		if err != nil {
			return err
		}

		data = data[n:]
		bar.MoveInProgressToFinished(n)
	}

	return s.device.Sync(ctx)
}
