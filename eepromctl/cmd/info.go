package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the chip and the block layout.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			chip, g, err := a.cfg.Resolve()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Chip:        %s %s\n", chip.Brand, chip.Model)
			fmt.Fprintf(out, "Address:     0x%02x (%d-byte memory address)\n",
				chip.DeviceAddress, chip.AddressWidth())
			fmt.Fprintf(out, "Capacity:    %s\n", humanize.IBytes(chip.Capacity()))
			fmt.Fprintf(out, "Pages:       %d x %d bytes\n",
				chip.PageCount, chip.PageSize)
			fmt.Fprintf(out, "Blocks:      %d x %d bytes (%s)\n",
				g.BlockCount, g.BlockSize, humanize.IBytes(g.Capacity()))

			return nil
		},
	}
}
