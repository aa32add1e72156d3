package flash

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert"
)

func TestMemNorSemantics(t *testing.T) {
	m := NewMem(64)
	buf := make([]byte, 4)
	_, err := m.ReadAt(buf, 0)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, buf)

	_, err = m.WriteAt([]byte{0xf0, 0x0f}, 10)
	assert.NoError(t, err)
	// writing again can only clear bits
	_, err = m.WriteAt([]byte{0x3c, 0xff}, 10)
	assert.NoError(t, err)
	_, err = m.ReadAt(buf[:2], 10)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x30, 0x0f}, buf[:2])

	assert.NoError(t, m.Erase(8, 8))
	_, err = m.ReadAt(buf[:2], 10)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xff}, buf[:2])
}

func TestMemBounds(t *testing.T) {
	m := NewMem(16)
	_, err := m.WriteAt([]byte{1, 2}, 15)
	assert.True(t, errors.Is(err, ErrOutOfBounds))
	_, err = m.ReadAt(make([]byte, 1), -1)
	assert.True(t, errors.Is(err, ErrOutOfBounds))
	err = m.Erase(0, 17)
	assert.True(t, errors.Is(err, ErrOutOfBounds))
}

func TestSectors(t *testing.T) {
	m := NewMem(4096 * 3)
	sectors, err := Sectors(m, 4096)
	assert.NoError(t, err)
	assert.Equal(t, 3, len(sectors))
	assert.Equal(t, int64(8192), sectors[2].Off)
	assert.Equal(t, int64(4096*3), sectors[2].End())

	_, err = Sectors(m, 5000)
	assert.Error(t, err)
	_, err = Sectors(m, 0)
	assert.Error(t, err)
}

func TestFilePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "part", "logs.bin")
	f, err := OpenFile(path, 1024)
	assert.NoError(t, err)
	d := make([]byte, 8)
	_, err = f.ReadAt(d, 1000)
	assert.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{ErasedByte}, 8), d)

	_, err = f.WriteAt([]byte("hello"), 100)
	assert.NoError(t, err)
	assert.NoError(t, f.Close())
	assert.NoError(t, f.Close())
	_, err = f.ReadAt(d, 0)
	assert.True(t, errors.Is(err, ErrClosed))

	f, err = OpenFile(path, 1024)
	assert.NoError(t, err)
	defer f.Close()
	_, err = f.ReadAt(d[:5], 100)
	assert.NoError(t, err)
	assert.Equal(t, "hello", string(d[:5]))

	_, err = OpenFile(path, 2048)
	assert.Error(t, err)
}
