package fcb

import (
	"errors"
	"fmt"
	"testing"

	"github.com/alecthomas/assert"
	"github.com/davecgh/go-spew/spew"
	"github.com/kjk/flashlog/flash"
)

const testMagic = 0x1ee71065

func a(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func openTest(t *testing.T, area flash.Area, sectorSize int64) *FCB {
	t.Helper()
	sectors, err := flash.Sectors(area, sectorSize)
	assert.NoError(t, err)
	f, err := Open(area, &Config{
		Magic:        testMagic,
		Sectors:      sectors,
		ScratchCount: 1,
	})
	assert.NoError(t, err)
	return f
}

func appendData(f *FCB, d []byte) error {
	e, err := f.Append(len(d))
	if err != nil {
		return err
	}
	if _, err = f.area.WriteAt(d, e.DataOff()); err != nil {
		return err
	}
	return f.AppendFinish(&e)
}

func readAll(t *testing.T, f *FCB) []string {
	t.Helper()
	var res []string
	var e Entry
	for {
		err := f.GetNext(&e)
		if errors.Is(err, ErrNotFound) {
			return res
		}
		assert.NoError(t, err)
		d := make([]byte, e.Len)
		_, err = f.area.ReadAt(d, e.DataOff())
		assert.NoError(t, err)
		res = append(res, string(d))
	}
}

func TestAppendAndIterate(t *testing.T) {
	f := openTest(t, flash.NewMem(4*256), 256)
	var exp []string
	for i := 0; i < 20; i++ {
		s := fmt.Sprintf("record %d\n", i)
		assert.NoError(t, appendData(f, []byte(s)))
		exp = append(exp, s)
	}
	got := readAll(t, f)
	a(t, len(got) == len(exp), "expected %d entries, got %d\n%s", len(exp), len(got), spew.Sdump(f.ids))
	assert.Equal(t, exp, got)

	st := f.Stats()
	assert.Equal(t, 4, st.Sectors)
	assert.True(t, st.UsedSectors >= 1)
	assert.True(t, st.Used > 0 && st.Used <= st.Capacity)
}

func TestReopen(t *testing.T) {
	m := flash.NewMem(4 * 128)
	f := openTest(t, m, 128)
	for i := 0; i < 8; i++ {
		assert.NoError(t, appendData(f, []byte(fmt.Sprintf("entry-%d", i))))
	}
	exp := readAll(t, f)

	f2 := openTest(t, m, 128)
	assert.Equal(t, exp, readAll(t, f2))
	assert.Equal(t, f.oldest, f2.oldest)
	assert.Equal(t, f.active, f2.active)
	assert.Equal(t, f.appendOff, f2.appendOff)

	assert.NoError(t, appendData(f2, []byte("after reopen")))
	got := readAll(t, f2)
	assert.Equal(t, "after reopen", got[len(got)-1])
}

func TestUnfinishedEntryIsSkipped(t *testing.T) {
	m := flash.NewMem(2 * 128)
	f := openTest(t, m, 128)
	assert.NoError(t, appendData(f, []byte("one")))
	e, err := f.Append(5)
	assert.NoError(t, err)
	_, err = m.WriteAt([]byte("torn!"), e.DataOff())
	assert.NoError(t, err)
	// no AppendFinish
	assert.NoError(t, appendData(f, []byte("three")))
	assert.Equal(t, []string{"one", "three"}, readAll(t, f))
	// also after reload
	assert.Equal(t, []string{"one", "three"}, readAll(t, openTest(t, m, 128)))
}

func TestNoSpaceThenRotate(t *testing.T) {
	// 4 sectors of 64 bytes, 1 scratch => 3 usable sectors
	// each 10 byte entry takes 16 bytes, 3 fit in a sector
	f := openTest(t, flash.NewMem(4*64), 64)
	n := 0
	for {
		err := appendData(f, []byte(fmt.Sprintf("%010d", n)))
		if errors.Is(err, ErrNoSpace) {
			break
		}
		assert.NoError(t, err)
		n++
		a(t, n < 100, "never ran out of space")
	}
	assert.Equal(t, 9, n)
	assert.Equal(t, 3, f.Stats().UsedSectors)

	assert.NoError(t, f.Rotate())
	assert.NoError(t, appendData(f, []byte("0000000009")))
	got := readAll(t, f)
	// first sector with 3 entries is gone
	assert.Equal(t, 7, len(got))
	assert.Equal(t, "0000000003", got[0])
	assert.Equal(t, "0000000009", got[6])
}

func TestRotateSingleSector(t *testing.T) {
	f := openTest(t, flash.NewMem(3*64), 64)
	assert.NoError(t, appendData(f, []byte("lonely")))
	assert.Equal(t, f.oldest, f.active)
	assert.NoError(t, f.Rotate())
	assert.Equal(t, 0, len(readAll(t, f)))
	assert.NoError(t, appendData(f, []byte("fresh")))
	assert.Equal(t, []string{"fresh"}, readAll(t, f))
}

func TestStaleEntryRestartsAtOldest(t *testing.T) {
	f := openTest(t, flash.NewMem(4*64), 64)
	for i := 0; i < 6; i++ {
		assert.NoError(t, appendData(f, []byte(fmt.Sprintf("%010d", i))))
	}
	var e Entry
	assert.NoError(t, f.GetNext(&e))
	assert.True(t, f.Live(e))
	assert.NoError(t, f.Rotate())
	assert.False(t, f.Live(e))

	assert.NoError(t, f.GetNext(&e))
	d := make([]byte, e.Len)
	_, err := f.area.ReadAt(d, e.DataOff())
	assert.NoError(t, err)
	assert.Equal(t, "0000000003", string(d))
}

func TestClear(t *testing.T) {
	m := flash.NewMem(4 * 64)
	f := openTest(t, m, 64)
	for i := 0; i < 5; i++ {
		assert.NoError(t, appendData(f, []byte("abc")))
	}
	var e Entry
	assert.NoError(t, f.GetNext(&e))
	assert.NoError(t, f.Clear())
	assert.False(t, f.Live(e))
	assert.Equal(t, 0, len(readAll(t, f)))
	assert.Equal(t, 1, f.Stats().UsedSectors)

	assert.NoError(t, appendData(f, []byte("new")))
	assert.Equal(t, []string{"new"}, readAll(t, openTest(t, m, 64)))
}

func TestAppendInvalid(t *testing.T) {
	f := openTest(t, flash.NewMem(2*64), 64)
	assert.Equal(t, 64-sectorHeaderSize-entryOverhead, f.MaxDataLen())
	_, err := f.Append(0)
	assert.True(t, errors.Is(err, ErrInvalid))
	_, err = f.Append(f.MaxDataLen() + 1)
	assert.True(t, errors.Is(err, ErrNoSpace))
	assert.NoError(t, appendData(f, make([]byte, f.MaxDataLen())))
	assert.True(t, errors.Is(f.GetNext(nil), ErrInvalid))
}

func TestOpenInvalidConfig(t *testing.T) {
	m := flash.NewMem(4 * 64)
	sectors, _ := flash.Sectors(m, 64)
	_, err := Open(m, &Config{Magic: testMagic, Sectors: sectors[:1]})
	assert.True(t, errors.Is(err, ErrInvalid))
	_, err = Open(m, &Config{Magic: testMagic, Sectors: sectors, ScratchCount: 4})
	assert.True(t, errors.Is(err, ErrInvalid))
	_, err = Open(nil, nil)
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestSerialAfter(t *testing.T) {
	assert.True(t, serialAfter(1, 0))
	assert.True(t, serialAfter(0, 0xffff))
	assert.False(t, serialAfter(0xffff, 0))
	assert.False(t, serialAfter(5, 5))
}
