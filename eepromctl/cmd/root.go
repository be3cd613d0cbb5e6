// Package cmd provides the command-line interface of eepromctl.
package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/eepromblk/config"
	"github.com/sarchlab/eepromblk/logging"
)

// app carries the settings shared by all commands.
type app struct {
	envFiles []string
	cfg      config.Config
	logger   *logrus.Logger
}

// NewRootCmd creates the eepromctl command with all its subcommands.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "eepromctl",
		Short: "eepromctl reads and writes I2C EEPROM chips as block devices.",
		Long: `eepromctl reads and writes I2C EEPROM chips as block devices. ` +
			`Every access is split on page boundaries before it reaches the ` +
			`chip, the same way a flash filesystem would issue it.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	a.addFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		newChipsCmd(a),
		newInfoCmd(a),
		newReadCmd(a),
		newWriteCmd(a),
		newEraseCmd(a),
		newDumpCmd(a),
		newRestoreCmd(a),
		newHistoryCmd(a),
		newMonitorCmd(a),
	)

	return rootCmd
}

// Execute runs the root command and exits on error.
func Execute() {
	err := NewRootCmd().Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func (a *app) addFlags(flags *pflag.FlagSet) {
	d := config.Default()

	flags.StringSliceVar(&a.envFiles, "env", nil,
		"Read settings from these .env files (default .env if present)")
	flags.String("chip", d.Chip, "Chip model")
	flags.String("chips-file", "", "TOML file with additional chip models")
	flags.Uint64("block-size", 0, "Block size in bytes (default page size)")
	flags.Uint64("block-count", 0, "Number of blocks (default whole chip)")
	flags.Uint16("address", 0, "7-bit device address (default from chip)")
	flags.String("image", "", "Use an image file instead of a chip")
	flags.String("bus", "", "I2C bus name, such as /dev/i2c-1")
	flags.String("trace-db", "", "Append accesses to this trace database (.sqlite3)")
	flags.String("log-level", d.LogLevel, "Log level")
	flags.String("log-format", d.LogFormat, "Log format, text or json")
}

// setup loads the configuration and lets explicitly set flags override it.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.envFiles...)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	override := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}

	override("chip", func() { cfg.Chip, _ = flags.GetString("chip") })
	override("chips-file", func() { cfg.ChipsFile, _ = flags.GetString("chips-file") })
	override("block-size", func() { cfg.BlockSize, _ = flags.GetUint64("block-size") })
	override("block-count", func() { cfg.BlockCount, _ = flags.GetUint64("block-count") })
	override("address", func() { cfg.DeviceAddress, _ = flags.GetUint16("address") })
	override("image", func() { cfg.Image, _ = flags.GetString("image") })
	override("bus", func() { cfg.Bus, _ = flags.GetString("bus") })
	override("trace-db", func() { cfg.TraceDB, _ = flags.GetString("trace-db") })
	override("log-level", func() { cfg.LogLevel, _ = flags.GetString("log-level") })
	override("log-format", func() { cfg.LogFormat, _ = flags.GetString("log-format") })

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger

	return nil
}
