package atomicfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kjk/flashlog/require"
)

func tmpFiles(t *testing.T, dir string) []string {
	t.Helper()
	res, err := filepath.Glob(filepath.Join(dir, "*.tmp-*"))
	require.NoError(t, err)
	return res
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.txt")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	err := WriteFile(path, []byte("new content"))
	require.NoError(t, err)
	d, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "new content", string(d))
	require.Len(t, tmpFiles(t, dir), 0)
}

func TestCancelKeepsOld(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dump.bin")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	f, err := New(path)
	require.NoError(t, err)
	_, err = f.Write([]byte("partial"))
	require.NoError(t, err)
	require.Len(t, tmpFiles(t, dir), 1)
	f.Cancel()
	require.True(t, errors.Is(f.Close(), ErrCancelled))
	f.Cancel()

	d, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "old", string(d))
	require.Len(t, tmpFiles(t, dir), 0)
}

func TestStickyError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.txt")
	f, err := New(path)
	require.NoError(t, err)
	errSimulated := errors.New("simulated")
	f.err = errSimulated
	_, err = f.Write([]byte("x"))
	require.Equal(t, errSimulated, err)
	require.Equal(t, errSimulated, f.Close())
	require.Equal(t, errSimulated, f.Close())
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
	require.Len(t, tmpFiles(t, dir), 0)
}

func TestNewInvalidPath(t *testing.T) {
	_, err := New(t.TempDir() + string(filepath.Separator))
	require.Error(t, err)
	_, err = New(filepath.Join(t.TempDir(), "missing-dir", "x.txt"))
	require.Error(t, err)
}
