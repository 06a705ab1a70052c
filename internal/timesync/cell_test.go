package timesync_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"trackside/internal/timesync"
)

func TestCellStartsUnsynced(t *testing.T) {
	cell := timesync.NewCell(0)
	if _, ok := cell.Now(); ok {
		t.Fatal("fresh cell should not answer")
	}
	if _, ok := cell.Age(); ok {
		t.Fatal("fresh cell should have no age")
	}
}

func TestCellExtrapolates(t *testing.T) {
	cell := timesync.NewCell(0)
	cell.Set(1_000_000)

	first, ok := cell.Now()
	if !ok {
		t.Fatal("cell should answer after Set")
	}
	if first < 1_000_000 || first > 3_000_000 {
		t.Fatalf("extrapolated time out of range: %d", first)
	}

	time.Sleep(30 * time.Millisecond)
	second, ok := cell.Now()
	if !ok {
		t.Fatal("cell should still answer")
	}
	if second <= first {
		t.Fatalf("time did not advance: %d then %d", first, second)
	}

	age, ok := cell.Age()
	if !ok || age <= 0 {
		t.Fatalf("expected positive age, got %v ok=%v", age, ok)
	}
}

func TestCellInvalidate(t *testing.T) {
	cell := timesync.NewCell(0)
	cell.Set(42_000_000)
	cell.Invalidate()
	if _, ok := cell.Now(); ok {
		t.Fatal("invalidated cell should not answer")
	}

	// A later report brings it back.
	cell.Set(43_000_000)
	if _, ok := cell.Now(); !ok {
		t.Fatal("cell should answer after a fresh Set")
	}
}

func TestCellStaleness(t *testing.T) {
	cell := timesync.NewCell(40 * time.Millisecond)
	cell.Set(1_000_000)
	if _, ok := cell.Now(); !ok {
		t.Fatal("fresh snapshot should answer")
	}
	time.Sleep(100 * time.Millisecond)
	if _, ok := cell.Now(); ok {
		t.Fatal("stale snapshot should not answer")
	}
}

func TestCellWait(t *testing.T) {
	cell := timesync.NewCell(0)

	err := cell.Wait(context.Background(), 80*time.Millisecond)
	if !errors.Is(err, timesync.ErrNotSynced) {
		t.Fatalf("expected ErrNotSynced, got %v", err)
	}

	go func() {
		time.Sleep(30 * time.Millisecond)
		cell.Set(1_000_000)
	}()
	if err := cell.Wait(context.Background(), 2*time.Second); err != nil {
		t.Fatalf("Wait failed after Set: %v", err)
	}
}

func TestCellWaitHonorsContext(t *testing.T) {
	cell := timesync.NewCell(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := cell.Wait(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
