// Package imagefile keeps the content of an EEPROM in a file on the host.
//
// An image is a flat dump of the chip: byte n of the file is the cell at
// address n.
package imagefile

import (
	"bytes"
	"context"
	"os"

	"github.com/pkg/errors"
)

// ErasedValue is the content of a freshly created image.
const ErasedValue = 0xff

// An Image is an EEPROM image file.
type Image struct {
	file     *os.File
	capacity uint64
}

// Create creates a new image of capacity bytes, all erased. It fails if the
// file exists.
func Create(path string, capacity uint64) (*Image, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "creating image")
	}

	_, err = f.Write(bytes.Repeat([]byte{ErasedValue}, int(capacity)))
	if err == nil {
		err = f.Sync()
	}

	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "filling image")
	}

	return &Image{file: f, capacity: capacity}, nil
}

// Open opens an existing image. Its size is its capacity.
func Open(path string) (*Image, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrap(err, "opening image")
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "opening image")
	}

	return &Image{file: f, capacity: uint64(info.Size())}, nil
}

// OpenOrCreate opens the image at path, creating it with capacity bytes if it
// does not exist.
func OpenOrCreate(path string, capacity uint64) (*Image, error) {
	_, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return Create(path, capacity)
	}

	return Open(path)
}

// Capacity returns the size of the image.
func (i *Image) Capacity() uint64 {
	return i.capacity
}

// Close closes the image file.
func (i *Image) Close() error {
	return i.file.Close()
}

func (i *Image) checkRange(address, length uint64) error {
	if address > i.capacity || length > i.capacity-address {
		return errors.Errorf("%d bytes at 0x%x exceed image size %d",
			length, address, i.capacity)
	}

	return nil
}

// ReadBytes reads length bytes starting at address.
func (i *Image) ReadBytes(
	_ context.Context,
	address, length uint64,
) ([]byte, error) {
	err := i.checkRange(address, length)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, length)

	n, err := i.file.ReadAt(buf, int64(address))
	if err != nil {
		return buf[:n], errors.Wrapf(err, "reading image at 0x%x", address)
	}

	return buf, nil
}

// WriteBytes writes data at address and syncs the file, so that the data is
// on disk when the call returns.
func (i *Image) WriteBytes(
	_ context.Context,
	address uint64,
	data []byte,
) error {
	err := i.checkRange(address, uint64(len(data)))
	if err != nil {
		return err
	}

	_, err = i.file.WriteAt(data, int64(address))
	if err != nil {
		return errors.Wrapf(err, "writing image at 0x%x", address)
	}

	return errors.Wrap(i.file.Sync(), "syncing image")
}
