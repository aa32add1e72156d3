package dump

import (
	"os"
	"path/filepath"

	"github.com/kjk/flashlog/atomicfile"
	"github.com/kjk/flashlog/logstore"
)

// WriteFile drains the store to a file at path, compressed according to
// its extension (see NewCompressWriter). The file is written atomically:
// on error the previous content of path is preserved.
// Returns number of uncompressed bytes.
func WriteFile(s *logstore.Store, path string, opts *Options) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, err
	}
	f, err := atomicfile.New(path)
	if err != nil {
		return 0, err
	}
	defer f.Cancel()

	w, err := NewCompressWriter(f, path)
	if err != nil {
		return 0, err
	}
	n, err := Drain(s, w, opts)
	if err != nil {
		return n, err
	}
	if err = w.Close(); err != nil {
		return n, err
	}
	return n, f.Close()
}
