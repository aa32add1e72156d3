package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// WriteDaily is a Sink that appends lines to a file per day,
// named YYYY-MM-DD.txt in Dir
type WriteDaily struct {
	Dir string

	currentDate int // YYYYMMDD format
	file        *os.File
	mu          sync.Mutex
	now         func() time.Time
}

var _ Sink = &WriteDaily{}

func NewWriteDaily(dir string) *WriteDaily {
	return &WriteDaily{
		Dir: dir,
		now: time.Now,
	}
}

// dayFromTime converts a time.Time to YYYYMMDD integer format
func dayFromTime(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// writer returns today's file, rotating if the day changed
func (w *WriteDaily) writer() (io.Writer, error) {
	now := time.Now().UTC()
	if w.now != nil {
		now = w.now().UTC()
	}
	today := dayFromTime(now)

	if w.file != nil && w.currentDate != today {
		if err := w.close(); err != nil {
			return nil, err
		}
	}

	if w.file == nil {
		filename := filepath.Join(w.Dir, now.Format("2006-01-02")+".txt")
		if err := os.MkdirAll(w.Dir, 0755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		w.file = f
		w.currentDate = today
	}
	return w.file, nil
}

// WriteLog appends d to today's file
// it's safe to call on nil receiver
func (w *WriteDaily) WriteLog(d []byte) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	wr, err := w.writer()
	if err != nil {
		return err
	}
	_, err = wr.Write(d)
	return err
}

func (w *WriteDaily) close() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	w.currentDate = 0
	return err
}

// Close closes the current file
// it's safe to call on nil receiver
func (w *WriteDaily) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		if err := w.file.Sync(); err != nil {
			w.close()
			return fmt.Errorf("sync failed: %w", err)
		}
	}
	return w.close()
}
