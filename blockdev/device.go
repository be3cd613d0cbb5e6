package blockdev

import (
	"context"
	"sync/atomic"

	"github.com/sarchlab/eepromblk/eeprom"
	"github.com/sarchlab/eepromblk/hooking"
	"github.com/sarchlab/eepromblk/paging"
	"github.com/sarchlab/eepromblk/tracing"
)

// A Device is a block device backed by a paged EEPROM.
type Device struct {
	*hooking.Registry

	geometry  eeprom.Geometry
	transport Transport
	guard     Guard

	inFlight atomic.Int32
}

// Geometry returns the layout of the device.
func (d *Device) Geometry() eeprom.Geometry {
	return d.geometry
}

// BlockSize returns the number of bytes in a block.
func (d *Device) BlockSize() uint64 {
	return d.geometry.BlockSize
}

// BlockCount returns the number of blocks.
func (d *Device) BlockCount() uint64 {
	return d.geometry.BlockCount
}

// ReadGranularity returns the smallest read the filesystem should issue.
func (d *Device) ReadGranularity() uint64 {
	return d.geometry.BlockSize
}

// WriteGranularity returns the smallest write the filesystem should issue.
func (d *Device) WriteGranularity() uint64 {
	return d.geometry.BlockSize
}

// State tells if an operation is in flight.
func (d *Device) State() State {
	if d.InFlight() == OpNone {
		return StateIdle
	}

	return StateBusy
}

// InFlight returns the operation being served, or OpNone.
func (d *Device) InFlight() Op {
	return Op(d.inFlight.Load())
}

// Read returns length bytes starting at offset within block. The bytes of all
// chunks are returned together, or not at all. A vetoed read returns an empty
// slice.
func (d *Device) Read(
	ctx context.Context,
	block, offset, length uint64,
) ([]byte, error) {
	err := d.acquire(OpRead)
	if err != nil {
		return nil, err
	}
	defer d.release()

	span := d.begin(OpRead, block, offset, length)

	err = d.checkRange(OpRead, block, offset, length)
	if err != nil {
		span.End(OutcomeRangeError, err)
		return nil, err
	}

	if !d.guard.BeforeRead(block, offset, length) {
		span.End(OutcomeVetoed, nil)
		return []byte{}, nil
	}

	res := make([]byte, 0, length)
	addr := d.linearAddress(block, offset)
	index := 0

	for chunk := range paging.Split(addr, length, d.geometry.PageSize) {
		data, err := d.transport.ReadBytes(ctx, chunk.Address, chunk.Length)
		if err == nil && uint64(len(data)) != chunk.Length {
			err = errShortRead(uint64(len(data)), chunk.Length)
		}

		if err != nil {
			tErr := &TransportError{
				Op:        OpRead,
				Chunk:     chunk,
				Index:     index,
				Completed: uint64(len(res)),
				Err:       err,
			}
			span.End(OutcomeTransportError, tErr)

			return nil, tErr
		}

		res = append(res, data...)
		span.Step(StepChunk, chunk)
		index++
	}

	span.End(OutcomeOK, nil)

	return res, nil
}

// Write programs data starting at offset within block. Chunks are written in
// ascending address order, one after another. If a chunk fails, the chunks
// before it stay written.
func (d *Device) Write(
	ctx context.Context,
	block, offset uint64,
	data []byte,
) error {
	err := d.acquire(OpWrite)
	if err != nil {
		return err
	}
	defer d.release()

	length := uint64(len(data))
	span := d.begin(OpWrite, block, offset, length)

	err = d.checkRange(OpWrite, block, offset, length)
	if err != nil {
		span.End(OutcomeRangeError, err)
		return err
	}

	if !d.guard.BeforeWrite(block, offset, length) {
		span.End(OutcomeVetoed, nil)
		return nil
	}

	addr := d.linearAddress(block, offset)
	index := 0

	for chunk := range paging.Split(addr, length, d.geometry.PageSize) {
		start := chunk.Address - addr

		err := d.transport.WriteBytes(
			ctx, chunk.Address, data[start:start+chunk.Length])
		if err != nil {
			tErr := &TransportError{
				Op:        OpWrite,
				Chunk:     chunk,
				Index:     index,
				Completed: start,
				Err:       err,
			}
			span.End(OutcomeTransportError, tErr)

			return tErr
		}

		span.Step(StepChunk, chunk)
		index++
	}

	span.End(OutcomeOK, nil)

	return nil
}

// Erase prepares a block for programming. EEPROM cells are rewritten in place,
// so there is nothing to do on the chip.
func (d *Device) Erase(_ context.Context, block uint64) error {
	err := d.acquire(OpErase)
	if err != nil {
		return err
	}
	defer d.release()

	span := d.begin(OpErase, block, 0, 0)

	err = d.checkRange(OpErase, block, 0, 0)
	if err != nil {
		span.End(OutcomeRangeError, err)
		return err
	}

	if !d.guard.BeforeErase(block) {
		span.End(OutcomeVetoed, nil)
		return nil
	}

	span.End(OutcomeOK, nil)

	return nil
}

// Sync flushes pending writes. EEPROM writes are durable when the transfer
// completes, so there is never anything pending.
func (d *Device) Sync(_ context.Context) error {
	err := d.acquire(OpSync)
	if err != nil {
		return err
	}
	defer d.release()

	span := d.begin(OpSync, 0, 0, 0)
	span.End(OutcomeOK, nil)

	return nil
}

func (d *Device) acquire(op Op) error {
	if d.inFlight.CompareAndSwap(int32(OpNone), int32(op)) {
		return nil
	}

	return &StateError{Op: op, InFlight: d.InFlight()}
}

func (d *Device) release() {
	d.inFlight.Store(int32(OpNone))
}

func (d *Device) checkRange(op Op, block, offset, length uint64) error {
	g := d.geometry

	if block < g.BlockCount &&
		length <= g.BlockSize &&
		offset <= g.BlockSize-length {
		return nil
	}

	return &RangeError{
		Op:         op,
		Block:      block,
		Offset:     offset,
		Length:     length,
		BlockSize:  g.BlockSize,
		BlockCount: g.BlockCount,
	}
}

func (d *Device) linearAddress(block, offset uint64) uint64 {
	return block*d.geometry.BlockSize + offset
}

func (d *Device) begin(op Op, block, offset, length uint64) tracing.Span {
	if !d.HasHooks() {
		return tracing.Span{}
	}

	return tracing.Begin(d, TaskKind, op.String(), AccessDetail{
		Op:      op,
		Block:   block,
		Offset:  offset,
		Address: d.linearAddress(block, offset),
		Length:  length,
	})
}
