// Package atomicfile writes files so that readers see either the old
// content or the complete new content, never a partial write.
//
// Data goes to a temporary file in the destination directory which is
// renamed over the destination on a successful Close. Any error in
// Write, Sync or Close removes the temporary file instead.
//
//	w, err := atomicfile.New(path)
//	if err != nil {
//		return err
//	}
//	// calling Close() twice is a no-op
//	defer w.Close()
//	if _, err = w.Write(d); err != nil {
//		return err
//	}
//	return w.Close()
package atomicfile

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

// ErrCancelled is returned by calls after Cancel
var ErrCancelled = errors.New("atomicfile: cancelled")

var _ io.WriteCloser = &File{}

type File struct {
	dstPath string
	dir     string
	tmp     *os.File
	tmpPath string
	// first error, sticky
	err error
}

func New(path string) (*File, error) {
	dir, name := filepath.Split(path)
	if name == "" {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrInvalid}
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return nil, err
	}
	return &File{
		dstPath: path,
		dir:     dir,
		tmp:     tmp,
		tmpPath: tmp.Name(),
	}, nil
}

func (f *File) fail(err error) error {
	if err == nil {
		return nil
	}
	if f.err == nil {
		f.err = err
	}
	_ = f.Close()
	return err
}

func (f *File) Write(d []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	n, err := f.tmp.Write(d)
	return n, f.fail(err)
}

func (f *File) Sync() error {
	if f.err != nil {
		return f.err
	}
	return f.fail(f.tmp.Sync())
}

func (f *File) closed() bool {
	return f.tmp == nil
}

// Cancel removes the temporary file without creating the destination.
// Use it with defer to clean up on early returns and panics.
// Cancel after Close is a no-op.
func (f *File) Cancel() {
	if f == nil || f.closed() {
		return
	}
	f.err = ErrCancelled
	_ = f.Close()
}

// Close commits the file. It can be called multiple times and returns
// the first error.
func (f *File) Close() error {
	if f.closed() {
		return f.err
	}
	tmp := f.tmp
	f.tmp = nil

	errSync := tmp.Sync()
	errClose := tmp.Close()

	renamed := false
	defer func() {
		if !renamed {
			_ = os.Remove(f.tmpPath)
		}
	}()

	if f.err != nil {
		return f.err
	}
	err := errSync
	if err == nil {
		err = errClose
	}
	if err == nil {
		err = os.Rename(f.tmpPath, f.dstPath)
		renamed = err == nil
		// make the rename durable, best effort
		if dir, _ := os.Open(f.dir); dir != nil {
			_ = dir.Sync()
			_ = dir.Close()
		}
	}
	f.err = err
	return err
}

// WriteFile is an atomic os.WriteFile
func WriteFile(path string, d []byte) error {
	f, err := New(path)
	if err != nil {
		return err
	}
	defer f.Cancel()
	if _, err = f.Write(d); err != nil {
		return err
	}
	return f.Close()
}
