package blockdev

import (
	"github.com/sarchlab/eepromblk/eeprom"
	"github.com/sarchlab/eepromblk/hooking"
)

// A Builder can build block devices.
type Builder struct {
	geometry  eeprom.Geometry
	transport Transport
	guard     Guard
}

// MakeBuilder returns a new Builder.
func MakeBuilder() Builder {
	return Builder{
		guard: AllowAll{},
	}
}

// WithGeometry sets the page and block layout of the device.
func (b Builder) WithGeometry(g eeprom.Geometry) Builder {
	b.geometry = g
	return b
}

// WithTransport sets the transport that reaches the chip.
func (b Builder) WithTransport(t Transport) Builder {
	b.transport = t
	return b
}

// WithGuard sets the guard that can veto operations. A nil guard allows
// everything.
func (b Builder) WithGuard(g Guard) Builder {
	if g == nil {
		g = AllowAll{}
	}

	b.guard = g
	return b
}

// Build creates a device with the given name.
func (b Builder) Build(name string) *Device {
	if b.transport == nil {
		panic("block device requires a transport")
	}

	err := b.geometry.Validate()
	if err != nil {
		panic(err)
	}

	d := &Device{
		Registry:  hooking.NewRegistry(name),
		geometry:  b.geometry,
		transport: b.transport,
		guard:     b.guard,
	}

	return d
}
