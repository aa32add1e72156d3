// Package flash is a minimal block-erase storage driver.
//
// An Area behaves like NOR flash: erased bytes read as 0xff, a write can
// only clear bits, and the only way to set bits back is to erase.
// Area is addressed with offsets relative to its start.
package flash

import (
	"errors"
	"fmt"
	"io"
)

// ErasedByte is the value of every byte after Erase
const ErasedByte = 0xff

var (
	ErrOutOfBounds = errors.New("flash: access out of bounds")
	ErrClosed      = errors.New("flash: area is closed")
)

type Area interface {
	io.ReaderAt
	io.WriterAt
	// Erase sets size bytes starting at off to ErasedByte
	Erase(off int64, size int64) error
	Size() int64
}

// Sector is one erase unit of an Area
type Sector struct {
	Off  int64
	Size int64
}

// End returns offset one past the last byte of the sector
func (s Sector) End() int64 {
	return s.Off + s.Size
}

// Sectors splits an area into equally sized sectors.
// Area size must be a multiple of sectorSize.
func Sectors(a Area, sectorSize int64) ([]Sector, error) {
	if sectorSize <= 0 {
		return nil, fmt.Errorf("flash: invalid sector size %d", sectorSize)
	}
	size := a.Size()
	if size < sectorSize || size%sectorSize != 0 {
		return nil, fmt.Errorf("flash: area size %d is not a multiple of sector size %d", size, sectorSize)
	}
	n := size / sectorSize
	res := make([]Sector, n)
	for i := range res {
		res[i] = Sector{
			Off:  int64(i) * sectorSize,
			Size: sectorSize,
		}
	}
	return res, nil
}

func checkBounds(size int64, off int64, n int64) error {
	if off < 0 || n < 0 || off+n > size {
		return fmt.Errorf("%w: off %d, len %d, area size %d", ErrOutOfBounds, off, n, size)
	}
	return nil
}

// program applies NOR semantics: a write can only turn 1 bits into 0 bits
func program(dst []byte, src []byte) {
	for i, b := range src {
		dst[i] &= b
	}
}

func fillErased(d []byte) {
	for i := range d {
		d[i] = ErasedByte
	}
}
