package eeprom

import (
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// DefaultDeviceAddress is the 7-bit bus address of a 24Cxx part with all
// address pins tied low.
const DefaultDeviceAddress = 0x50

// A Catalog maps model names to chips. Lookups ignore case.
type Catalog map[string]Chip

var builtinChips = []Chip{
	{Brand: "HGSEMI", Model: "HG24C256", PageSize: 64, PageCount: 512},
	{Brand: "Atmel", Model: "AT24C02", PageSize: 8, PageCount: 32},
	{Brand: "Atmel", Model: "AT24C04", PageSize: 16, PageCount: 32},
	{Brand: "Atmel", Model: "AT24C08", PageSize: 16, PageCount: 64},
	{Brand: "Atmel", Model: "AT24C16", PageSize: 16, PageCount: 128},
	{Brand: "Atmel", Model: "AT24C32", PageSize: 32, PageCount: 128},
	{Brand: "Atmel", Model: "AT24C64", PageSize: 32, PageCount: 256},
	{Brand: "Atmel", Model: "AT24C128", PageSize: 64, PageCount: 256},
	{Brand: "Atmel", Model: "AT24C256", PageSize: 64, PageCount: 512},
	{Brand: "Atmel", Model: "AT24C512", PageSize: 128, PageCount: 512},
}

// DefaultCatalog returns a catalog of well-known parts.
func DefaultCatalog() Catalog {
	c := make(Catalog)

	for _, chip := range builtinChips {
		chip.DeviceAddress = DefaultDeviceAddress
		c.Add(chip)
	}

	return c
}

// Add registers a chip, replacing any chip with the same model.
func (c Catalog) Add(chip Chip) {
	c[strings.ToUpper(chip.Model)] = chip
}

// Lookup finds a chip by model.
func (c Catalog) Lookup(model string) (Chip, bool) {
	chip, ok := c[strings.ToUpper(model)]
	return chip, ok
}

// Chips returns all chips ordered by capacity, then by model.
func (c Catalog) Chips() []Chip {
	chips := make([]Chip, 0, len(c))
	for _, chip := range c {
		chips = append(chips, chip)
	}

	sort.Slice(chips, func(i, j int) bool {
		if chips[i].Capacity() != chips[j].Capacity() {
			return chips[i].Capacity() < chips[j].Capacity()
		}

		return chips[i].Model < chips[j].Model
	})

	return chips
}

type catalogFile struct {
	Chips []Chip `toml:"chip"`
}

// LoadCatalog reads chips from a TOML file and adds them on top of the
// default catalog. Each chip is a [[chip]] table.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading chip catalog")
	}

	return ParseCatalog(data)
}

// ParseCatalog is LoadCatalog working on the file content.
func ParseCatalog(data []byte) (Catalog, error) {
	f := catalogFile{}

	err := toml.Unmarshal(data, &f)
	if err != nil {
		return nil, errors.Wrap(err, "parsing chip catalog")
	}

	c := DefaultCatalog()
	for i, chip := range f.Chips {
		if chip.Model == "" {
			return nil, errors.Errorf("chip #%d has no model", i)
		}

		if chip.PageSize == 0 || chip.PageCount == 0 {
			return nil, errors.Errorf(
				"chip %s must have a positive page size and page count",
				chip.Model)
		}

		if chip.DeviceAddress == 0 {
			chip.DeviceAddress = DefaultDeviceAddress
		}

		c.Add(chip)
	}

	return c, nil
}
