package blockdev

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sarchlab/eepromblk/paging"
)

// A RangeError reports an access outside the declared geometry. It is a bug in
// the caller and is never retried.
type RangeError struct {
	Op         Op
	Block      uint64
	Offset     uint64
	Length     uint64
	BlockSize  uint64
	BlockCount uint64
}

func (e *RangeError) Error() string {
	if e.Block >= e.BlockCount {
		return fmt.Sprintf("%s: block %d out of range [0, %d)",
			e.Op, e.Block, e.BlockCount)
	}

	return fmt.Sprintf("%s: %d bytes at offset %d exceed block size %d",
		e.Op, e.Length, e.Offset, e.BlockSize)
}

// A TransportError reports that a transfer failed or returned the wrong
// number of bytes. Chunks before the failed one were already transferred; a
// failed write leaves them on the chip.
type TransportError struct {
	Op        Op
	Chunk     paging.Chunk
	Index     int
	Completed uint64
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transfer of chunk %d %s failed after %d bytes: %v",
		e.Op, e.Index, e.Chunk, e.Completed, e.Err)
}

// Unwrap returns the transport failure.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// A StateError reports an operation issued while another was in flight.
type StateError struct {
	Op       Op
	InFlight Op
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: device busy with %s", e.Op, e.InFlight)
}

// IsRangeError checks if err is or wraps a RangeError.
func IsRangeError(err error) bool {
	var target *RangeError
	return errors.As(err, &target)
}

// IsTransportError checks if err is or wraps a TransportError.
func IsTransportError(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

// IsStateError checks if err is or wraps a StateError.
func IsStateError(err error) bool {
	var target *StateError
	return errors.As(err, &target)
}

func errShortRead(got, want uint64) error {
	return errors.Errorf("short read: got %d of %d bytes", got, want)
}
