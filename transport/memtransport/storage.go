// Package memtransport provides an EEPROM simulated in memory.
package memtransport

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErasedValue is the content of a cell that has never been written.
const ErasedValue = 0xff

// ErrBeyondCapacity is returned for an access past the end of the storage.
var ErrBeyondCapacity = errors.New(
	"accessing address beyond the storage capacity")

// A Storage keeps the content of a simulated EEPROM.
//
// The storage manages its content in units. For the units that are not touched
// by ReadBytes and WriteBytes, no memory is allocated.
//
// With page roll-over enabled, the storage behaves like a real chip: a write
// that runs past the end of a page wraps around to the start of that page.
type Storage struct {
	lock     sync.Mutex
	unitSize uint64
	capacity uint64
	pageSize uint64
	data     map[uint64][]byte

	reads  uint64
	writes uint64
}

// NewStorage creates a storage object with the specified capacity.
func NewStorage(capacity uint64) *Storage {
	storage := new(Storage)

	storage.unitSize = 4096
	storage.capacity = capacity
	storage.data = make(map[uint64][]byte)

	return storage
}

// WithPageRollover makes writes wrap within pages of pageSize bytes.
func (s *Storage) WithPageRollover(pageSize uint64) *Storage {
	if pageSize == 0 {
		panic("page size must be positive")
	}

	s.pageSize = pageSize

	return s
}

// Capacity returns the number of bytes the storage holds.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

// Reads returns the number of ReadBytes calls served.
func (s *Storage) Reads() uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.reads
}

// Writes returns the number of WriteBytes calls served.
func (s *Storage) Writes() uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.writes
}

func (s *Storage) checkRange(address, length uint64) error {
	if address > s.capacity || length > s.capacity-address {
		return errors.Wrapf(ErrBeyondCapacity,
			"%d bytes at 0x%x, capacity %d", length, address, s.capacity)
	}

	return nil
}

// createOrGetStorageUnit retrieves a storage unit if the unit has been created
// before. Otherwise it initializes an erased unit.
func (s *Storage) createOrGetStorageUnit(address uint64) []byte {
	baseAddr, _ := s.parseAddress(address)

	unit, ok := s.data[baseAddr]
	if !ok {
		unit = make([]byte, s.unitSize)
		for i := range unit {
			unit[i] = ErasedValue
		}

		s.data[baseAddr] = unit
	}

	return unit
}

func (s *Storage) parseAddress(addr uint64) (baseAddr, inUnitAddr uint64) {
	inUnitAddr = addr % s.unitSize
	baseAddr = addr - inUnitAddr

	return
}

// ReadBytes reads length bytes starting at address.
func (s *Storage) ReadBytes(
	_ context.Context,
	address, length uint64,
) ([]byte, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	err := s.checkRange(address, length)
	if err != nil {
		return nil, err
	}

	s.reads++

	currAddr := address
	lenLeft := length
	dataOffset := uint64(0)
	res := make([]byte, length)

	for lenLeft > 0 {
		unit := s.createOrGetStorageUnit(currAddr)

		baseAddr, inUnitAddr := s.parseAddress(currAddr)
		lenToRead := min(lenLeft, baseAddr+s.unitSize-currAddr)

		copy(res[dataOffset:dataOffset+lenToRead],
			unit[inUnitAddr:inUnitAddr+lenToRead])
		lenLeft -= lenToRead
		dataOffset += lenToRead
		currAddr += lenToRead
	}

	return res, nil
}

// WriteBytes writes data starting at address.
func (s *Storage) WriteBytes(
	_ context.Context,
	address uint64,
	data []byte,
) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	err := s.checkRange(address, uint64(len(data)))
	if err != nil {
		return err
	}

	s.writes++

	if s.pageSize > 0 {
		s.writeWithRollover(address, data)
		return nil
	}

	s.write(address, data)

	return nil
}

// writeWithRollover advances the address within the page only, the same way
// the address counter of a 24Cxx part does. A last page cut short by the
// capacity wraps at the capacity.
func (s *Storage) writeWithRollover(address uint64, data []byte) {
	pageBase := address - address%s.pageSize
	pageLen := min(s.pageSize, s.capacity-pageBase)
	inPage := address - pageBase

	for _, b := range data {
		s.write(pageBase+inPage, []byte{b})
		inPage = (inPage + 1) % pageLen
	}
}

func (s *Storage) write(address uint64, data []byte) {
	currAddr := address
	dataOffset := uint64(0)

	for dataOffset < uint64(len(data)) {
		unit := s.createOrGetStorageUnit(currAddr)

		baseAddr, inUnitAddr := s.parseAddress(currAddr)
		lenLeftInData := uint64(len(data)) - dataOffset
		lenToWrite := min(lenLeftInData, baseAddr+s.unitSize-currAddr)

		copy(unit[inUnitAddr:inUnitAddr+lenToWrite],
			data[dataOffset:dataOffset+lenToWrite])
		dataOffset += lenToWrite
		currAddr += lenToWrite
	}
}
