package dump

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}

func fileExt(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// NewCompressWriter returns a writer compressing with a format picked
// by extension of path: .zst/.zstd, .br or .gz. Other extensions are
// not compressed. Close flushes the compressor but doesn't close w.
func NewCompressWriter(w io.Writer, path string) (io.WriteCloser, error) {
	switch fileExt(path) {
	case ".zst", ".zstd":
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	case ".br":
		return brotli.NewWriterLevel(w, brotli.BestCompression), nil
	case ".gz":
		return gzip.NewWriterLevel(w, gzip.BestCompression)
	}
	return nopWriteCloser{w}, nil
}

// compress compresses d with a format picked by extension of path
func compress(d []byte, path string) ([]byte, error) {
	var buf bytes.Buffer
	w, err := NewCompressWriter(&buf, path)
	if err != nil {
		return nil, err
	}
	if _, err = w.Write(d); err != nil {
		w.Close()
		return nil, err
	}
	if err = w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// implement io.ReadCloser over os.File wrapped with io.Reader.
// io.Closer goes to os.File, io.Reader goes to wrapping reader
type readerWrappedFile struct {
	f *os.File
	r io.Reader
	// zstd decoder runs goroutines until closed
	zr *zstd.Decoder
}

func (rc *readerWrappedFile) Close() error {
	if rc.zr != nil {
		rc.zr.Close()
		rc.zr = nil
	}
	return rc.f.Close()
}

func (rc *readerWrappedFile) Read(p []byte) (int, error) {
	return rc.r.Read(p)
}

// OpenFile opens a dump file, decompressing based on extension
func OpenFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	var r io.Reader
	var zr *zstd.Decoder
	switch fileExt(path) {
	case ".zst", ".zstd":
		zr, err = zstd.NewReader(f)
		r = zr
	case ".br":
		r = brotli.NewReader(f)
	case ".gz":
		r, err = gzip.NewReader(f)
	default:
		return f, nil
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	return &readerWrappedFile{f: f, r: r, zr: zr}, nil
}

// ReadFile reads and decompresses a dump file
func ReadFile(path string) ([]byte, error) {
	r, err := OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
