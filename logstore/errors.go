package logstore

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned for caller errors, e.g. a record
	// larger than a sector or an empty destination buffer
	ErrInvalidArgument = errors.New("logstore: invalid argument")
	// ErrBusy is returned when the store lock wasn't acquired in time.
	// It's transient, callers should back off and retry.
	ErrBusy = errors.New("logstore: busy")
	// ErrNotFound is returned by Fetch when all data has been read.
	// It's the expected end of stream, not a failure.
	ErrNotFound = errors.New("logstore: no more data")
	// ErrIO wraps failures of the underlying storage
	ErrIO = errors.New("logstore: i/o error")
	// ErrOutOfSpace is returned when there was no room even after
	// rotating the oldest sector. The store has been cleared and is
	// usable again.
	ErrOutOfSpace = errors.New("logstore: out of space, store was cleared")
	// ErrNotReady is returned before Init
	ErrNotReady = errors.New("logstore: not initialized")
)

func ioErr(err error) error {
	return fmt.Errorf("%w: %w", ErrIO, err)
}
