package flash

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File is an Area backed by a regular file of a fixed size.
// It emulates NOR semantics so that data written by File and by Mem
// is interchangeable.
type File struct {
	Path string

	size int64
	file *os.File
	mu   sync.Mutex
}

var _ Area = &File{}

// OpenFile opens (or creates) a file-backed area. A new file is
// created in erased state. An existing file must have exactly size bytes.
func OpenFile(path string, size int64) (*File, error) {
	if size <= 0 {
		return nil, fmt.Errorf("flash: invalid size %d", size)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	st, err := os.Stat(path)
	isNew := os.IsNotExist(err)
	if err != nil && !isNew {
		return nil, err
	}
	if !isNew && st.Size() != size {
		return nil, fmt.Errorf("flash: '%s' has size %d, expected %d", path, st.Size(), size)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	res := &File{
		Path: path,
		size: size,
		file: f,
	}
	if isNew {
		if err = res.Erase(0, size); err != nil {
			f.Close()
			return nil, err
		}
	}
	return res, nil
}

func (f *File) Size() int64 {
	return f.size
}

func (f *File) ReadAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return 0, ErrClosed
	}
	if err := checkBounds(f.size, off, int64(len(p))); err != nil {
		return 0, err
	}
	return f.file.ReadAt(p, off)
}

func (f *File) WriteAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return 0, ErrClosed
	}
	if err := checkBounds(f.size, off, int64(len(p))); err != nil {
		return 0, err
	}
	// read-modify-write to keep NOR semantics
	cur := make([]byte, len(p))
	if _, err := f.file.ReadAt(cur, off); err != nil {
		return 0, err
	}
	program(cur, p)
	return f.file.WriteAt(cur, off)
}

func (f *File) Erase(off int64, size int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return ErrClosed
	}
	if err := checkBounds(f.size, off, size); err != nil {
		return err
	}
	buf := make([]byte, size)
	fillErased(buf)
	if _, err := f.file.WriteAt(buf, off); err != nil {
		return err
	}
	return f.file.Sync()
}

// Sync flushes the file to disk
func (f *File) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return ErrClosed
	}
	return f.file.Sync()
}

// Close closes the underlying file. It's safe to call multiple times.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}
