package flash

import "sync"

// Mem is an in-memory Area, handy for tests and for hosts without
// a dedicated partition
type Mem struct {
	mu  sync.Mutex
	buf []byte
}

var _ Area = &Mem{}

// NewMem returns an erased area of a given size
func NewMem(size int64) *Mem {
	buf := make([]byte, size)
	fillErased(buf)
	return &Mem{buf: buf}
}

func (m *Mem) Size() int64 {
	return int64(len(m.buf))
}

func (m *Mem) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkBounds(int64(len(m.buf)), off, int64(len(p))); err != nil {
		return 0, err
	}
	return copy(p, m.buf[off:]), nil
}

func (m *Mem) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkBounds(int64(len(m.buf)), off, int64(len(p))); err != nil {
		return 0, err
	}
	program(m.buf[off:off+int64(len(p))], p)
	return len(p), nil
}

func (m *Mem) Erase(off int64, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkBounds(int64(len(m.buf)), off, size); err != nil {
		return err
	}
	fillErased(m.buf[off : off+size])
	return nil
}

// Bytes returns a copy of the raw content
func (m *Mem) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte{}, m.buf...)
}
