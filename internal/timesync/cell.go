package timesync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// ErrNotSynced indicates no decoder time arrived within the wait budget.
var ErrNotSynced = errors.New("decoder time not synced")

type snapshot struct {
	micros int64
	refAt  time.Time
}

// Cell holds the most recently learned decoder time as an atomically swapped
// snapshot. Reads extrapolate from the snapshot using the monotonic clock, so
// a Cell set once a few seconds ago still answers with a current decoder time.
type Cell struct {
	staleAfter time.Duration
	snap       atomic.Pointer[snapshot]
}

// NewCell returns an unsynced cell. staleAfter bounds how long a snapshot
// keeps answering without a fresh report; zero disables the bound.
func NewCell(staleAfter time.Duration) *Cell {
	return &Cell{staleAfter: staleAfter}
}

// Set records a decoder time report, in microseconds.
func (c *Cell) Set(micros int64) {
	c.snap.Store(&snapshot{micros: micros, refAt: time.Now()})
}

// Invalidate discards the current snapshot. Now reports not-ok until the
// next Set.
func (c *Cell) Invalidate() {
	c.snap.Store(nil)
}

// Now returns the extrapolated decoder time in microseconds. ok is false
// when the cell was never set, was invalidated, or the snapshot is stale.
func (c *Cell) Now() (int64, bool) {
	snap := c.snap.Load()
	if snap == nil {
		return 0, false
	}
	elapsed := time.Since(snap.refAt)
	if c.staleAfter > 0 && elapsed > c.staleAfter {
		return 0, false
	}
	return snap.micros + elapsed.Microseconds(), true
}

// Age returns how long ago the snapshot was taken.
func (c *Cell) Age() (time.Duration, bool) {
	snap := c.snap.Load()
	if snap == nil {
		return 0, false
	}
	return time.Since(snap.refAt), true
}

// Wait blocks until the cell answers or the timeout elapses. It is used at
// startup so window math never runs against an unsynced clock.
func (c *Cell) Wait(ctx context.Context, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	poll := time.NewTicker(50 * time.Millisecond)
	defer poll.Stop()

	for {
		if _, ok := c.Now(); ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w after %s", ErrNotSynced, timeout)
		case <-poll.C:
		}
	}
}
