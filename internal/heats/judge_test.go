package heats_test

import (
	"context"
	"testing"

	"trackside/internal/config"
	"trackside/internal/heats"
	"trackside/internal/race"
	"trackside/internal/testsupport"
)

const micros = int64(1_000_000)

func newStore(t *testing.T) (*config.Config, *race.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return cfg, testsupport.MustOpenStore(t, cfg)
}

func mustCreateHeat(t *testing.T, store *race.Store, firstPassID, startMicros int64) *race.Heat {
	t.Helper()
	heat, err := store.CreateHeat(
		context.Background(),
		firstPassID,
		startMicros,
		startMicros+590*micros,
		startMicros+680*micros,
	)
	if err != nil {
		t.Fatalf("CreateHeat: %v", err)
	}
	return heat
}

func crossing(passID, transponder, rtcMicros int64) *race.Pass {
	return &race.Pass{PassID: passID, Transponder: transponder, RTCTime: rtcMicros}
}

func TestJudgeAcceptsFirstCrossingPerTransponder(t *testing.T) {
	t.Parallel()

	_, store := newStore(t)
	ctx := context.Background()
	heat := mustCreateHeat(t, store, 1, 1000*micros)
	judge := heats.NewJudge(store, heat.ID, 10*micros)

	for _, pass := range []*race.Pass{
		crossing(1, 3438895, 1000*micros),
		crossing(2, 7086479, 1001*micros),
	} {
		accept, err := judge.Evaluate(ctx, pass)
		if err != nil {
			t.Fatalf("Evaluate pass %d: %v", pass.PassID, err)
		}
		if !accept {
			t.Fatalf("expected first crossing of transponder %d to be accepted", pass.Transponder)
		}
		judge.Commit(pass)
	}
}

func TestJudgeSkipsUnderMinimumAndRemembers(t *testing.T) {
	t.Parallel()

	_, store := newStore(t)
	ctx := context.Background()
	heat := mustCreateHeat(t, store, 1, 1000*micros)
	judge := heats.NewJudge(store, heat.ID, 10*micros)

	first := crossing(1, 3438895, 1000*micros)
	if accept, err := judge.Evaluate(ctx, first); err != nil || !accept {
		t.Fatalf("Evaluate first crossing: accept=%v err=%v", accept, err)
	}
	judge.Commit(first)

	tooSoon := crossing(2, 3438895, 1005*micros)
	accept, err := judge.Evaluate(ctx, tooSoon)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if accept {
		t.Fatal("expected 5s crossing to be rejected with a 10s minimum")
	}
	if !judge.Skipped(tooSoon.PassID) {
		t.Fatal("expected the rejected pass to be remembered")
	}

	// The rejection must not move the lap clock: 11s after the accepted lap
	// is still a valid lap even though only 6s passed since the rejection.
	next := crossing(3, 3438895, 1011*micros)
	if accept, err := judge.Evaluate(ctx, next); err != nil || !accept {
		t.Fatalf("Evaluate crossing after rejection: accept=%v err=%v", accept, err)
	}
}

func TestJudgeSeedsFromStoredLaps(t *testing.T) {
	t.Parallel()

	_, store := newStore(t)
	ctx := context.Background()
	heat := mustCreateHeat(t, store, 1, 2000*micros)
	if _, err := store.InsertLap(ctx, &race.Lap{
		HeatID:      heat.ID,
		PassID:      50,
		Transponder: 3438895,
		RTCTime:     2000 * micros,
	}); err != nil {
		t.Fatalf("InsertLap: %v", err)
	}

	judge := heats.NewJudge(store, heat.ID, 10*micros)

	accept, err := judge.Evaluate(ctx, crossing(51, 3438895, 2005*micros))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if accept {
		t.Fatal("expected crossing 5s after the stored lap to be rejected")
	}

	if accept, err := judge.Evaluate(ctx, crossing(52, 3438895, 2012*micros)); err != nil || !accept {
		t.Fatalf("Evaluate crossing past the minimum: accept=%v err=%v", accept, err)
	}
}

func TestJudgeAdvancesOnlyOnCommit(t *testing.T) {
	t.Parallel()

	_, store := newStore(t)
	ctx := context.Background()
	heat := mustCreateHeat(t, store, 1, 3000*micros)
	judge := heats.NewJudge(store, heat.ID, 10*micros)

	pass := crossing(1, 3438895, 3000*micros)
	for range 2 {
		accept, err := judge.Evaluate(ctx, pass)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if !accept {
			t.Fatal("expected uncommitted verdict to be repeatable")
		}
	}
	judge.Commit(pass)

	if accept, err := judge.Evaluate(ctx, crossing(2, 3438895, 3005*micros)); err != nil || accept {
		t.Fatalf("expected commit to start the lap clock: accept=%v err=%v", accept, err)
	}
}
