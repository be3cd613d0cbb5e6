// Package eeprom describes serial EEPROM parts and the block geometry laid
// over them.
package eeprom

// A Chip describes an I2C EEPROM part.
type Chip struct {
	Brand         string `toml:"brand"`
	Model         string `toml:"model"`
	DeviceAddress uint16 `toml:"device_address"`
	PageSize      uint64 `toml:"page_size"`
	PageCount     uint64 `toml:"page_count"`
}

// Info is a summary of a chip.
type Info struct {
	Brand         string `json:"brand"`
	Model         string `json:"model"`
	DeviceAddress uint16 `json:"device_address"`
	TotalSize     uint64 `json:"total_size"`
	PageSize      uint64 `json:"page_size"`
	PageCount     uint64 `json:"page_count"`
}

// PageInfo locates an address within its page.
type PageInfo struct {
	Number    uint64
	Offset    uint64
	Remaining uint64
}

// Capacity returns the number of bytes the chip stores.
func (c Chip) Capacity() uint64 {
	return c.PageSize * c.PageCount
}

// AddressWidth returns the number of memory address bytes the chip expects
// after its device address. Parts up to 2 KiB take one byte and borrow the low
// bits of the device address for the rest.
func (c Chip) AddressWidth() int {
	if c.Capacity() <= 2048 {
		return 1
	}

	return 2
}

// Info returns a summary of the chip.
func (c Chip) Info() Info {
	return Info{
		Brand:         c.Brand,
		Model:         c.Model,
		DeviceAddress: c.DeviceAddress,
		TotalSize:     c.Capacity(),
		PageSize:      c.PageSize,
		PageCount:     c.PageCount,
	}
}

// PhysicalAddress converts a page number and an in-page offset to a byte
// address.
func (c Chip) PhysicalAddress(page, offset uint64) uint64 {
	return page*c.PageSize + offset
}

// IsValidAddress checks if addr falls inside the chip.
func (c Chip) IsValidAddress(addr uint64) bool {
	return addr < c.Capacity()
}

// PageInfo returns where addr sits in its page.
func (c Chip) PageInfo(addr uint64) PageInfo {
	offset := addr % c.PageSize

	return PageInfo{
		Number:    addr / c.PageSize,
		Offset:    offset,
		Remaining: c.PageSize - offset,
	}
}
