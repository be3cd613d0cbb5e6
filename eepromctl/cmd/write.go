package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newWriteCmd(a *app) *cobra.Command {
	var hexData, file string

	cmd := &cobra.Command{
		Use:   "write BLOCK [OFFSET] (--hex DATA | --file PATH)",
		Short: "Write bytes into a block.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := payload(hexData, file)
			if err != nil {
				return err
			}

			block, err := parseArg(args, 0, "block", 0)
			if err != nil {
				return err
			}

			offset, err := parseArg(args, 1, "offset", 0)
			if err != nil {
				return err
			}

			s, err := a.openDevice()
			if err != nil {
				return err
			}
			defer s.close()

			err = s.device.Write(cmd.Context(), block, offset, data)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"Wrote %d bytes to block %d at offset %d\n",
				len(data), block, offset)

			return nil
		},
	}

	cmd.Flags().StringVar(&hexData, "hex", "", "Bytes to write, in hex")
	cmd.Flags().StringVar(&file, "file", "", "File holding the bytes to write")

	return cmd
}
