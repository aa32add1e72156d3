package logstore

import (
	"errors"
	"io"

	"github.com/kjk/flashlog/fcb"
)

// Export copies data through a buffer of this size
const exportChunkSize = 64

// cursor is the position of Fetch: the current entry and how many
// of its bytes were already returned.
// Zero value means "before the first entry".
type cursor struct {
	entry     fcb.Entry
	delivered int
}

func (c *cursor) reset() {
	*c = cursor{}
}

func (c *cursor) exhausted() bool {
	return c.entry.IsZero() || c.delivered >= c.entry.Len
}

// Fetch copies the next chunk of stored data into dst and returns the
// number of bytes copied. A chunk never spans two records, so n can be
// smaller than len(dst) even if there's more data.
// Call it until it returns ErrNotFound.
func (s *Store) Fetch(dst []byte) (int, error) {
	if len(dst) == 0 {
		return 0, ErrInvalidArgument
	}
	if !s.ready.Load() {
		return 0, ErrNotReady
	}
	if err := s.guard.lock(); err != nil {
		s.Log.Wrnf("failed to lock store")
		return 0, err
	}
	defer s.guard.unlock()

	c := &s.cursor
	if !c.exhausted() && !s.Floor.Live(c.entry) {
		// the sector was rotated away, rest of the entry is gone
		c.delivered = c.entry.Len
	}
	if c.exhausted() {
		next := c.entry
		if err := s.Floor.GetNext(&next); err != nil {
			if errors.Is(err, fcb.ErrNotFound) {
				return 0, ErrNotFound
			}
			return 0, ioErr(err)
		}
		c.entry = next
		c.delivered = 0
	}

	n := min(c.entry.Len-c.delivered, len(dst))
	if _, err := s.Area.ReadAt(dst[:n], c.entry.DataOff()+int64(c.delivered)); err != nil {
		s.Log.Errf("failed to read from flash: %v", err)
		return 0, ioErr(err)
	}
	c.delivered += n
	return n, nil
}

// ResetRead moves the read cursor back before the oldest record.
// It waits for operations in progress to finish.
func (s *Store) ResetRead() {
	if !s.ready.Load() {
		return
	}
	s.guard.lockWait()
	s.cursor.reset()
	s.guard.unlock()
}

// Export writes all stored records to w in one pass, holding the lock
// for the duration. Appends are suppressed while it runs.
// It doesn't move the read cursor used by Fetch.
func (s *Store) Export(w io.Writer) (int64, error) {
	if !s.ready.Load() {
		return 0, ErrNotReady
	}
	if err := s.guard.lock(); err != nil {
		return 0, err
	}
	defer s.guard.unlock()
	prev := s.exportInProgress.Swap(true)
	defer s.exportInProgress.Store(prev)

	var buf [exportChunkSize]byte
	var e fcb.Entry
	var total int64
	for {
		err := s.Floor.GetNext(&e)
		if errors.Is(err, fcb.ErrNotFound) {
			return total, nil
		}
		if err != nil {
			return total, ioErr(err)
		}
		for pos := 0; pos < e.Len; {
			n := min(len(buf), e.Len-pos)
			if _, err = s.Area.ReadAt(buf[:n], e.DataOff()+int64(pos)); err != nil {
				s.Log.Errf("failed to read log entry: %v", err)
				return total, ioErr(err)
			}
			nw, err := w.Write(buf[:n])
			total += int64(nw)
			if err != nil {
				return total, err
			}
			pos += n
		}
	}
}
