package cmd

import (
	"encoding/hex"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newReadCmd(a *app) *cobra.Command {
	var (
		outFile string
		raw     bool
	)

	cmd := &cobra.Command{
		Use:   "read BLOCK [OFFSET [LENGTH]]",
		Short: "Read bytes from a block.",
		Long: "Read LENGTH bytes starting at OFFSET within BLOCK. OFFSET " +
			"defaults to 0 and LENGTH to the rest of the block.",
		Args: cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openDevice()
			if err != nil {
				return err
			}
			defer s.close()

			block, err := parseArg(args, 0, "block", 0)
			if err != nil {
				return err
			}

			offset, err := parseArg(args, 1, "offset", 0)
			if err != nil {
				return err
			}

			length := uint64(0)
			if offset < s.geometry.BlockSize {
				length = s.geometry.BlockSize - offset
			}

			length, err = parseArg(args, 2, "length", length)
			if err != nil {
				return err
			}

			data, err := s.device.Read(cmd.Context(), block, offset, length)
			if err != nil {
				return err
			}

			switch {
			case outFile != "":
				err = os.WriteFile(outFile, data, 0o644)
				return errors.Wrapf(err, "cannot write %s", outFile)
			case raw:
				_, err = cmd.OutOrStdout().Write(data)
				return err
			default:
				dumper := hex.Dumper(cmd.OutOrStdout())
				_, err = dumper.Write(data)
				if err != nil {
					return err
				}

				return dumper.Close()
			}
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "", "Write the bytes to a file")
	cmd.Flags().BoolVar(&raw, "raw", false, "Write raw bytes to stdout")

	return cmd
}
