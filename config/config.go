// Package config collects the settings of eepromctl from .env files and the
// process environment.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/sarchlab/eepromblk/eeprom"
)

// Keys of the settings.
const (
	KeyChip          = "EEPROM_CHIP"
	KeyChipsFile     = "EEPROM_CHIPS_FILE"
	KeyBlockSize     = "EEPROM_BLOCK_SIZE"
	KeyBlockCount    = "EEPROM_BLOCK_COUNT"
	KeyDeviceAddress = "EEPROM_DEVICE_ADDRESS"
	KeyImage         = "EEPROM_IMAGE"
	KeyBus           = "EEPROM_BUS"
	KeyTraceDB       = "EEPROM_TRACE_DB"
	KeyLogLevel      = "EEPROM_LOG_LEVEL"
	KeyLogFormat     = "EEPROM_LOG_FORMAT"
	KeyMonitorPort   = "EEPROM_MONITOR_PORT"
)

// DefaultEnvFile is read by Load when no file is given. It may be absent.
const DefaultEnvFile = ".env"

// Config holds the settings of a device and the tools around it.
type Config struct {
	Chip          string
	ChipsFile     string
	BlockSize     uint64
	BlockCount    uint64
	DeviceAddress uint16
	Image         string
	Bus           string
	TraceDB       string
	LogLevel      string
	LogFormat     string
	MonitorPort   int
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Chip:      "HG24C256",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads the given .env files, then the process environment. Variables in
// the environment win over the files. Without files, DefaultEnvFile is read if
// it exists.
func Load(files ...string) (Config, error) {
	vars := map[string]string{}

	if len(files) == 0 {
		_, err := os.Stat(DefaultEnvFile)
		if err == nil {
			files = []string{DefaultEnvFile}
		}
	}

	for _, f := range files {
		fileVars, err := godotenv.Read(f)
		if err != nil {
			return Config{}, errors.Wrapf(err, "cannot read %s", f)
		}

		for k, v := range fileVars {
			vars[k] = v
		}
	}

	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, "EEPROM_") {
			vars[k] = v
		}
	}

	return Parse(Default(), vars)
}

// Parse applies vars on top of base.
func Parse(base Config, vars map[string]string) (Config, error) {
	c := base
	p := parser{vars: vars}

	p.stringVar(KeyChip, &c.Chip)
	p.stringVar(KeyChipsFile, &c.ChipsFile)
	p.uint64Var(KeyBlockSize, &c.BlockSize)
	p.uint64Var(KeyBlockCount, &c.BlockCount)
	p.addressVar(KeyDeviceAddress, &c.DeviceAddress)
	p.stringVar(KeyImage, &c.Image)
	p.stringVar(KeyBus, &c.Bus)
	p.stringVar(KeyTraceDB, &c.TraceDB)
	p.stringVar(KeyLogLevel, &c.LogLevel)
	p.stringVar(KeyLogFormat, &c.LogFormat)
	p.intVar(KeyMonitorPort, &c.MonitorPort)

	if p.err != nil {
		return Config{}, p.err
	}

	return c, nil
}

type parser struct {
	vars map[string]string
	err  error
}

func (p *parser) lookup(key string) (string, bool) {
	if p.err != nil {
		return "", false
	}

	v, ok := p.vars[key]
	v = strings.TrimSpace(v)

	return v, ok && v != ""
}

func (p *parser) stringVar(key string, dst *string) {
	if v, ok := p.lookup(key); ok {
		*dst = v
	}
}

func (p *parser) uint64Var(key string, dst *uint64) {
	v, ok := p.lookup(key)
	if !ok {
		return
	}

	n, err := strconv.ParseUint(v, 0, 64)
	if err != nil {
		p.err = errors.Wrapf(err, "invalid %s", key)
		return
	}

	*dst = n
}

func (p *parser) addressVar(key string, dst *uint16) {
	v, ok := p.lookup(key)
	if !ok {
		return
	}

	n, err := strconv.ParseUint(v, 0, 7)
	if err != nil {
		p.err = errors.Wrapf(err, "invalid %s", key)
		return
	}

	*dst = uint16(n)
}

func (p *parser) intVar(key string, dst *int) {
	v, ok := p.lookup(key)
	if !ok {
		return
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		p.err = errors.Wrapf(err, "invalid %s", key)
		return
	}

	*dst = n
}

// Catalog returns the built-in chips, plus the chips of ChipsFile if set.
func (c Config) Catalog() (eeprom.Catalog, error) {
	catalog := eeprom.DefaultCatalog()
	if c.ChipsFile == "" {
		return catalog, nil
	}

	extra, err := eeprom.LoadCatalog(c.ChipsFile)
	if err != nil {
		return nil, err
	}

	for _, chip := range extra {
		catalog.Add(chip)
	}

	return catalog, nil
}

// Resolve finds the configured chip and lays the configured blocks over it.
func (c Config) Resolve() (eeprom.Chip, eeprom.Geometry, error) {
	catalog, err := c.Catalog()
	if err != nil {
		return eeprom.Chip{}, eeprom.Geometry{}, err
	}

	chip, ok := catalog.Lookup(c.Chip)
	if !ok {
		return eeprom.Chip{}, eeprom.Geometry{},
			errors.Errorf("unknown chip %q", c.Chip)
	}

	if c.DeviceAddress != 0 {
		chip.DeviceAddress = c.DeviceAddress
	}

	g, err := eeprom.GeometryFor(chip, c.BlockSize)
	if err != nil {
		return eeprom.Chip{}, eeprom.Geometry{}, err
	}

	if c.BlockCount > 0 {
		if c.BlockCount > g.BlockCount {
			return eeprom.Chip{}, eeprom.Geometry{}, errors.Errorf(
				"%d blocks of %d bytes do not fit in %s",
				c.BlockCount, g.BlockSize, chip.Model)
		}

		g.BlockCount = c.BlockCount
	}

	return chip, g, nil
}
