// Package i2ceeprom reaches a 24Cxx serial EEPROM over an I2C bus.
//
// Each transfer is one bus transaction: the memory address bytes followed by
// the data for a write, or the memory address bytes followed by a repeated
// start and a sequential read. Bus framing is left to the periph.io bus
// driver.
package i2ceeprom

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sarchlab/eepromblk/eeprom"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// DefaultWriteCycle is the time a 24Cxx part needs to commit a page.
const DefaultWriteCycle = 5 * time.Millisecond

// A Transport issues page-bounded transfers to one EEPROM on a bus.
type Transport struct {
	bus           i2c.Bus
	deviceAddress uint16
	addressWidth  int
	capacity      uint64
	writeCycle    time.Duration
	maxReadSize   uint64
}

// New creates a transport that talks to chip over bus.
func New(bus i2c.Bus, chip eeprom.Chip) *Transport {
	return &Transport{
		bus:           bus,
		deviceAddress: chip.DeviceAddress,
		addressWidth:  chip.AddressWidth(),
		capacity:      chip.Capacity(),
		writeCycle:    DefaultWriteCycle,
	}
}

// WithWriteCycle sets how long to wait after each write.
func (t *Transport) WithWriteCycle(d time.Duration) *Transport {
	t.writeCycle = d
	return t
}

// WithMaxReadSize limits the number of bytes read in one transaction. Some
// USB bridges cannot carry long reads. Zero means no limit.
func (t *Transport) WithMaxReadSize(n uint64) *Transport {
	t.maxReadSize = n
	return t
}

// OpenBus initializes the host drivers and opens an I2C bus by name. An empty
// name opens the first bus found.
func OpenBus(name string) (i2c.BusCloser, error) {
	_, err := host.Init()
	if err != nil {
		return nil, errors.Wrap(err, "initializing host drivers")
	}

	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "opening I2C bus %q", name)
	}

	return bus, nil
}

// target returns the bus address and the memory address bytes for a memory
// address. Single-byte parts carry address bits 8 to 10 in the bus address.
func (t *Transport) target(address uint64) (uint16, []byte) {
	if t.addressWidth == 1 {
		dev := t.deviceAddress | uint16((address>>8)&0x7)
		return dev, []byte{byte(address)}
	}

	return t.deviceAddress, []byte{byte(address >> 8), byte(address)}
}

func (t *Transport) checkRange(address, length uint64) error {
	if address > t.capacity || length > t.capacity-address {
		return errors.Errorf("%d bytes at 0x%x exceed chip size %d",
			length, address, t.capacity)
	}

	return nil
}

// ReadBytes reads length bytes starting at address.
func (t *Transport) ReadBytes(
	ctx context.Context,
	address, length uint64,
) ([]byte, error) {
	err := t.checkRange(address, length)
	if err != nil {
		return nil, err
	}

	res := make([]byte, length)
	done := uint64(0)

	for done < length {
		err := ctx.Err()
		if err != nil {
			return nil, err
		}

		n := length - done
		if t.maxReadSize > 0 {
			n = min(n, t.maxReadSize)
		}

		dev, prefix := t.target(address + done)

		err = t.bus.Tx(dev, prefix, res[done:done+n])
		if err != nil {
			return nil, errors.Wrapf(err,
				"reading %d bytes at 0x%x from device 0x%02x",
				n, address+done, dev)
		}

		done += n
	}

	return res, nil
}

// WriteBytes writes data starting at address and waits for the chip to
// commit it. The data must not cross a page boundary.
func (t *Transport) WriteBytes(
	ctx context.Context,
	address uint64,
	data []byte,
) error {
	err := t.checkRange(address, uint64(len(data)))
	if err != nil {
		return err
	}

	err = ctx.Err()
	if err != nil {
		return err
	}

	dev, prefix := t.target(address)
	w := make([]byte, 0, len(prefix)+len(data))
	w = append(w, prefix...)
	w = append(w, data...)

	err = t.bus.Tx(dev, w, nil)
	if err != nil {
		return errors.Wrapf(err,
			"writing %d bytes at 0x%x to device 0x%02x",
			len(data), address, dev)
	}

	return t.waitWriteCycle(ctx)
}

func (t *Transport) waitWriteCycle(ctx context.Context) error {
	if t.writeCycle <= 0 {
		return nil
	}

	timer := time.NewTimer(t.writeCycle)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
