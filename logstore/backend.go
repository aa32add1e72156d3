package logstore

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/kjk/flashlog/log"
)

const DefaultBackendQueueSize = 1000

var (
	ErrBackendClosed = errors.New("logstore: backend is closed")
	ErrBackendFull   = errors.New("logstore: backend queue is full")
)

// op is a line to append or, if flushed is set, a request to signal
// when everything queued before it was processed
type op struct {
	d       []byte
	flushed chan struct{}
}

// Backend is a log.Sink that writes lines to a Store.
// Lines are appended from a separate goroutine so logging never waits
// for the store lock, and diagnostics logged by the store itself don't
// deadlock.
type Backend struct {
	store *Store
	ch    chan op
	done  chan struct{}

	mu     sync.RWMutex
	closed bool

	dropped atomic.Int64
	failed  atomic.Int64
}

var _ log.Sink = &Backend{}

// NewBackend starts a backend. Call Close to stop it.
func NewBackend(s *Store, queueSize int) *Backend {
	if queueSize <= 0 {
		queueSize = DefaultBackendQueueSize
	}
	b := &Backend{
		store: s,
		ch:    make(chan op, queueSize),
		done:  make(chan struct{}),
	}
	go b.worker()
	return b
}

func (b *Backend) worker() {
	defer close(b.done)
	for o := range b.ch {
		if o.flushed != nil {
			close(o.flushed)
			continue
		}
		if err := b.store.Append(o.d); err != nil {
			b.failed.Add(1)
		}
	}
}

// WriteLog queues a line. If the queue is full the line is dropped.
func (b *Backend) WriteLog(d []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBackendClosed
	}
	// caller may re-use d
	d = append([]byte(nil), d...)
	select {
	case b.ch <- op{d: d}:
		return nil
	default:
		b.dropped.Add(1)
		return ErrBackendFull
	}
}

// Flush waits until lines queued so far were handed to the store
func (b *Backend) Flush() {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	flushed := make(chan struct{})
	b.ch <- op{flushed: flushed}
	b.mu.RUnlock()
	<-flushed
}

// Close stops accepting lines and waits for queued lines to be written.
// It's safe to call multiple times.
func (b *Backend) Close() {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.ch)
	}
	b.mu.Unlock()
	<-b.done
}

// Dropped returns number of lines dropped because the queue was full
func (b *Backend) Dropped() int64 {
	return b.dropped.Load()
}

// Failed returns number of lines the store didn't accept
func (b *Backend) Failed() int64 {
	return b.failed.Load()
}
