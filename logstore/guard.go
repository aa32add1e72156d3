package logstore

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
)

// guard is a mutex with bounded wait
type guard struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

func newGuard(timeout time.Duration) *guard {
	return &guard{
		sem:     semaphore.NewWeighted(1),
		timeout: timeout,
	}
}

// lock returns ErrBusy if the lock isn't acquired within timeout
func (g *guard) lock() error {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: lock not acquired within %s", ErrBusy, g.timeout)
	}
	return nil
}

// lockWait waits for the lock for as long as it takes
func (g *guard) lockWait() {
	_ = g.sem.Acquire(context.Background(), 1)
}

func (g *guard) unlock() {
	g.sem.Release(1)
}
