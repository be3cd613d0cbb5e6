package eeprom

import (
	"math/bits"

	"github.com/pkg/errors"
)

// Geometry is the block layout a filesystem sees on top of a chip. It is fixed
// once a device is built.
type Geometry struct {
	PageSize      uint64 `json:"page_size"`
	BlockSize     uint64 `json:"block_size"`
	BlockCount    uint64 `json:"block_count"`
	DeviceAddress uint16 `json:"device_address"`
}

// Capacity returns the number of addressable bytes.
func (g Geometry) Capacity() uint64 {
	return g.BlockSize * g.BlockCount
}

// Validate checks that all sizes are positive and that the capacity can be
// represented.
func (g Geometry) Validate() error {
	if g.PageSize == 0 {
		return errors.New("page size must be positive")
	}

	if g.BlockSize == 0 {
		return errors.New("block size must be positive")
	}

	if g.BlockCount == 0 {
		return errors.New("block count must be positive")
	}

	hi, _ := bits.Mul64(g.BlockSize, g.BlockCount)
	if hi != 0 {
		return errors.Errorf("capacity of %d blocks of %d bytes overflows",
			g.BlockCount, g.BlockSize)
	}

	return nil
}

// GeometryFor lays blocks of blockSize bytes over the whole chip. A zero
// blockSize uses one page per block.
func GeometryFor(chip Chip, blockSize uint64) (Geometry, error) {
	if chip.PageSize == 0 || chip.PageCount == 0 {
		return Geometry{}, errors.Errorf("chip %s has no pages", chip.Model)
	}

	if blockSize == 0 {
		blockSize = chip.PageSize
	}

	if blockSize > chip.Capacity() {
		return Geometry{}, errors.Errorf(
			"block size %d exceeds the %d bytes of %s",
			blockSize, chip.Capacity(), chip.Model)
	}

	g := Geometry{
		PageSize:      chip.PageSize,
		BlockSize:     blockSize,
		BlockCount:    chip.Capacity() / blockSize,
		DeviceAddress: chip.DeviceAddress,
	}

	return g, g.Validate()
}
