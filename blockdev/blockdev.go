// Package blockdev presents a paged EEPROM as a block device for a flash
// filesystem.
//
// The filesystem addresses the device in fixed-size blocks. Each call is
// mapped onto a linear byte address, split on page boundaries, and issued to
// the Transport one page-bounded transfer at a time, in ascending address
// order.
//
// The device serves one operation at a time. A call that arrives while
// another is in flight fails with a StateError. Callers must serialize their
// calls; the device does not queue them.
package blockdev

import (
	"context"
)

// A Transport moves bytes to and from the chip. Each call is a single bus
// transaction that never crosses a page boundary.
type Transport interface {
	// ReadBytes reads length bytes starting at address.
	ReadBytes(ctx context.Context, address, length uint64) ([]byte, error)

	// WriteBytes writes data starting at address. The write is durable once
	// the call returns without error.
	WriteBytes(ctx context.Context, address uint64, data []byte) error
}

// A Guard can veto an operation before any transfer happens. A vetoed
// operation succeeds without effect.
type Guard interface {
	BeforeRead(block, offset, length uint64) bool
	BeforeWrite(block, offset, length uint64) bool
	BeforeErase(block uint64) bool
}

// AllowAll is a Guard that never vetoes.
type AllowAll struct{}

// BeforeRead allows the read.
func (AllowAll) BeforeRead(_, _, _ uint64) bool { return true }

// BeforeWrite allows the write.
func (AllowAll) BeforeWrite(_, _, _ uint64) bool { return true }

// BeforeErase allows the erase.
func (AllowAll) BeforeErase(_ uint64) bool { return true }

// GuardFuncs builds a Guard from optional functions. A nil function allows
// the operation.
type GuardFuncs struct {
	Read  func(block, offset, length uint64) bool
	Write func(block, offset, length uint64) bool
	Erase func(block uint64) bool
}

// BeforeRead calls Read if set.
func (g GuardFuncs) BeforeRead(block, offset, length uint64) bool {
	if g.Read == nil {
		return true
	}

	return g.Read(block, offset, length)
}

// BeforeWrite calls Write if set.
func (g GuardFuncs) BeforeWrite(block, offset, length uint64) bool {
	if g.Write == nil {
		return true
	}

	return g.Write(block, offset, length)
}

// BeforeErase calls Erase if set.
func (g GuardFuncs) BeforeErase(block uint64) bool {
	if g.Erase == nil {
		return true
	}

	return g.Erase(block)
}

// Op identifies a block device operation.
type Op int32

// The operations of a block device. OpNone marks an idle device.
const (
	OpNone Op = iota
	OpRead
	OpWrite
	OpErase
	OpSync
)

func (o Op) String() string {
	switch o {
	case OpNone:
		return "none"
	case OpRead:
		return "read"
	case OpWrite:
		return "prog"
	case OpErase:
		return "erase"
	case OpSync:
		return "sync"
	default:
		return "unknown"
	}
}

// State tells if the device is serving an operation.
type State int

// The states of a device.
const (
	StateIdle State = iota
	StateBusy
)

func (s State) String() string {
	if s == StateBusy {
		return "busy"
	}

	return "idle"
}

// Outcomes reported when an operation ends.
const (
	OutcomeOK             = "ok"
	OutcomeVetoed         = "vetoed"
	OutcomeRangeError     = "range_error"
	OutcomeTransportError = "transport_error"
)

// TaskKind is the kind of the tracing tasks a device emits.
const TaskKind = "eeprom"

// StepChunk is the name of the task step recorded for each page-bounded
// transfer.
const StepChunk = "chunk"

// AccessDetail is attached to the tracing task of every operation.
type AccessDetail struct {
	Op      Op
	Block   uint64
	Offset  uint64
	Address uint64
	Length  uint64
}
