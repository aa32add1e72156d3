// Package dump exports everything stored in a logstore.Store: to a
// writer, a (compressed) file, an HTTP endpoint or an S3 bucket.
package dump

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kjk/flashlog/logstore"
)

const (
	DefaultBufSize     = 64
	DefaultBusyRetries = 10
	DefaultBusyBackoff = 20 * time.Millisecond
)

type Options struct {
	// size of buffer passed to Fetch, defaults to DefaultBufSize
	BufSize int
	// how many times in a row to retry when the store is busy
	BusyRetries int
	BusyBackoff time.Duration
}

func (o *Options) withDefaults() Options {
	var res Options
	if o != nil {
		res = *o
	}
	if res.BufSize <= 0 {
		res.BufSize = DefaultBufSize
	}
	if res.BusyRetries <= 0 {
		res.BusyRetries = DefaultBusyRetries
	}
	if res.BusyBackoff <= 0 {
		res.BusyBackoff = DefaultBusyBackoff
	}
	return res
}

// Drain writes all stored records to w, from the oldest.
// New records are dropped while it runs so that the export doesn't
// chase its own tail. opts can be nil.
func Drain(s *logstore.Store, w io.Writer, opts *Options) (int64, error) {
	o := opts.withDefaults()

	prev := s.ExportInProgress()
	s.SetExportInProgress(true)
	defer s.SetExportInProgress(prev)
	s.ResetRead()

	buf := make([]byte, o.BufSize)
	var total int64
	busy := 0
	for {
		n, err := s.Fetch(buf)
		if errors.Is(err, logstore.ErrNotFound) {
			return total, nil
		}
		if errors.Is(err, logstore.ErrBusy) {
			busy++
			if busy > o.BusyRetries {
				return total, fmt.Errorf("store busy after %d retries: %w", o.BusyRetries, err)
			}
			time.Sleep(o.BusyBackoff)
			continue
		}
		if err != nil {
			return total, err
		}
		busy = 0
		nw, err := w.Write(buf[:n])
		total += int64(nw)
		if err != nil {
			return total, err
		}
	}
}
