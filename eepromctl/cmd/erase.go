package cmd

import (
	"github.com/spf13/cobra"
)

func newEraseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "erase BLOCK...",
		Short: "Erase blocks.",
		Long: "Erase blocks the way a flash filesystem does before " +
			"programming them. EEPROM cells are rewritten in place, so " +
			"nothing is sent to the chip.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openDevice()
			if err != nil {
				return err
			}
			defer s.close()

			for i := range args {
				block, err := parseArg(args, i, "block", 0)
				if err != nil {
					return err
				}

				err = s.device.Erase(cmd.Context(), block)
				if err != nil {
					return err
				}
			}

			return s.device.Sync(cmd.Context())
		},
	}
}
