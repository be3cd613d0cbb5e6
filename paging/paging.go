// Package paging splits byte ranges on page boundaries.
//
// An EEPROM commits a write one page at a time. When a write runs past the end
// of a page, the chip does not continue on the next page; it wraps back to the
// start of the current one. Every transfer issued against such a chip must
// therefore stay within a single page.
package paging

import (
	"fmt"
	"iter"
	"math"
	"slices"
)

// A Chunk is a part of a byte range that lies within a single page.
type Chunk struct {
	// Address is the first byte of the chunk.
	Address uint64

	// Length is the number of bytes in the chunk.
	Length uint64

	// Page is the index of the page that holds the chunk.
	Page uint64

	// Offset is the position of Address within its page.
	Offset uint64
}

// End returns the address right after the last byte of the chunk.
func (c Chunk) End() uint64 {
	return c.Address + c.Length
}

func (c Chunk) String() string {
	return fmt.Sprintf("(0x%x, %d)", c.Address, c.Length)
}

// Split returns the chunks that cover length bytes starting at start. The
// sequence is lazy and can be iterated any number of times; each iteration
// produces the same chunks in ascending address order.
//
// A zero length yields no chunk. Split panics if pageSize is zero or if the
// range runs past the end of the address space.
func Split(start, length, pageSize uint64) iter.Seq[Chunk] {
	mustBeValidRange(start, length, pageSize)

	return func(yield func(Chunk) bool) {
		curr := start
		remaining := length

		for remaining > 0 {
			offset := curr % pageSize
			n := min(remaining, pageSize-offset)

			chunk := Chunk{
				Address: curr,
				Length:  n,
				Page:    curr / pageSize,
				Offset:  offset,
			}
			if !yield(chunk) {
				return
			}

			curr += n
			remaining -= n
		}
	}
}

// Chunks collects the chunks produced by Split.
func Chunks(start, length, pageSize uint64) []Chunk {
	return slices.Collect(Split(start, length, pageSize))
}

// PageOf returns the index of the page that holds addr.
func PageOf(addr, pageSize uint64) uint64 {
	mustHavePositivePageSize(pageSize)

	return addr / pageSize
}

// PageCrossLength returns the number of bytes from addr to the end of its page.
func PageCrossLength(addr, pageSize uint64) uint64 {
	mustHavePositivePageSize(pageSize)

	return pageSize - addr%pageSize
}

func mustBeValidRange(start, length, pageSize uint64) {
	mustHavePositivePageSize(pageSize)

	if length > math.MaxUint64-start {
		panic(fmt.Sprintf(
			"range 0x%x+%d overflows the address space", start, length))
	}
}

func mustHavePositivePageSize(pageSize uint64) {
	if pageSize == 0 {
		panic("page size must be positive")
	}
}
