package testsupport

import (
	"context"
	"testing"
	"time"

	"trackside/internal/config"
	"trackside/internal/race"
)

// MustOpenStore opens a race.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *race.Store {
	t.Helper()

	store, err := race.Open(cfg)
	if err != nil {
		t.Fatalf("race.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// InsertPass records a pass for tests using the provided store.
func InsertPass(t testing.TB, store *race.Store, passID, transponder, rtcTime int64) *race.Pass {
	t.Helper()

	pass := &race.Pass{
		PassID:      passID,
		Transponder: transponder,
		RTCTime:     rtcTime,
		Strength:    100,
		Hits:        20,
		ReceivedAt:  time.Now().UTC(),
	}
	created, err := store.InsertPass(context.Background(), pass)
	if err != nil {
		t.Fatalf("store.InsertPass: %v", err)
	}
	if !created {
		t.Fatalf("pass %d already present", passID)
	}
	return pass
}
