package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/assert"
)

var testTime = time.Date(2025, 3, 4, 5, 6, 7, 8_000_000, time.UTC)

func newTestRegistry() (*Registry, *bytes.Buffer) {
	var buf bytes.Buffer
	r := NewRegistry()
	r.Stdout = &buf
	r.Now = func() time.Time { return testTime }
	return r, &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		s   string
		exp Level
	}{
		{"off", LevelOff},
		{"ERR", LevelErr},
		{"Wrn", LevelWrn},
		{" inf ", LevelInf},
		{"dbg", LevelDbg},
		{"0", LevelOff},
		{"4", LevelDbg},
	}
	for _, tc := range tests {
		got, err := ParseLevel(tc.s)
		assert.NoError(t, err, tc.s)
		assert.Equal(t, tc.exp, got, tc.s)
	}
	for _, s := range []string{"", "5", "-1", "debug", "1x"} {
		_, err := ParseLevel(s)
		assert.Error(t, err, s)
	}
	assert.Equal(t, "WRN", LevelWrn.String())
	assert.Equal(t, "UNK", Level(9).String())
	assert.Equal(t, 5, len(LevelNames()))
}

func TestFormatLine(t *testing.T) {
	got := string(FormatLine(testTime, LevelWrn, "mod", "hello"))
	assert.Equal(t, "[2025-03-04T05:06:07.008Z] <wrn> mod: hello\n", got)
	got = string(FormatLine(testTime, LevelErr, "mod", "bye\n"))
	assert.Equal(t, "[2025-03-04T05:06:07.008Z] <err> mod: bye\n", got)
}

func TestSourceLevels(t *testing.T) {
	r, buf := newTestRegistry()
	s := r.Register("net", LevelInf)
	assert.Equal(t, s, r.Register("net", LevelDbg))
	assert.Equal(t, LevelInf, s.Level())

	s.Dbgf("not logged %d", 1)
	assert.Equal(t, "", buf.String())
	s.Inff("logged %d", 2)
	assert.Equal(t, "[2025-03-04T05:06:07.008Z] <inf> net: logged 2\n", buf.String())

	// capped at compiled level
	assert.Equal(t, LevelInf, s.SetLevel(LevelDbg))
	assert.Equal(t, LevelErr, s.SetLevel(LevelErr))
	buf.Reset()
	s.Wrnf("dropped")
	s.Errf("kept")
	assert.True(t, strings.Contains(buf.String(), "<err> net: kept"))
	assert.False(t, strings.Contains(buf.String(), "dropped"))

	s.SetLevel(LevelOff)
	assert.False(t, s.Enabled(LevelErr))
}

func TestRegistrySetLevelAndSinks(t *testing.T) {
	r, _ := newTestRegistry()
	r.Register("a", LevelDbg)
	r.Register("b", LevelWrn)
	r.Register("c", LevelDbg)
	assert.Equal(t, 2, r.SetLevel(LevelDbg))
	assert.Equal(t, LevelWrn, r.Source("b").Level())
	assert.Equal(t, 3, r.SetLevel(LevelErr))
	assert.Nil(t, r.Source("missing"))

	var lines []string
	sink := SinkFunc(func(d []byte) error {
		lines = append(lines, string(d))
		return nil
	})
	r.AddSink(sink)
	r.Source("a").Errf("one")
	assert.Equal(t, 1, len(lines))

	// sink errors don't propagate
	r.AddSink(SinkFunc(func(d []byte) error { return os.ErrClosed }))
	r.Source("a").Errf("two")
	assert.Equal(t, 2, len(lines))
}

func TestEvent(t *testing.T) {
	r, buf := newTestRegistry()
	s := r.Register("app", LevelDbg)
	assert.NoError(t, s.Event("boot", "reason", "power", "count", 3))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "[2025-03-04T05:06:07.008Z] <inf> app: event boot\n"), out)
	assert.True(t, strings.Contains(out, "reason"), out)
	assert.True(t, strings.Contains(out, "power"), out)

	assert.Error(t, s.Event("bad", "k"))
	assert.Error(t, s.Event("bad", []int{1}, 2))
}

func TestWriteDaily(t *testing.T) {
	dir := t.TempDir()
	day := testTime
	w := NewWriteDaily(dir)
	w.now = func() time.Time { return day }
	assert.NoError(t, w.WriteLog([]byte("line 1\n")))
	day = day.Add(24 * time.Hour)
	assert.NoError(t, w.WriteLog([]byte("line 2\n")))
	assert.NoError(t, w.Close())

	d, err := os.ReadFile(filepath.Join(dir, "2025-03-04.txt"))
	assert.NoError(t, err)
	assert.Equal(t, "line 1\n", string(d))
	d, err = os.ReadFile(filepath.Join(dir, "2025-03-05.txt"))
	assert.NoError(t, err)
	assert.Equal(t, "line 2\n", string(d))

	var nilW *WriteDaily
	assert.NoError(t, nilW.WriteLog([]byte("x")))
	assert.NoError(t, nilW.Close())
}
