package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newChipsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chips",
		Short: "List the known chip models.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := a.cfg.Catalog()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tBRAND\tSIZE\tPAGE\tPAGES\tADDRESS")

			for _, chip := range catalog.Chips() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t0x%02x\n",
					chip.Model,
					chip.Brand,
					humanize.IBytes(chip.Capacity()),
					chip.PageSize,
					chip.PageCount,
					chip.DeviceAddress)
			}

			return w.Flush()
		},
	}
}
