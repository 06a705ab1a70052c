package main

import (
	"context"
	"strings"
	"testing"

	"trackside/internal/race"
	"trackside/internal/testsupport"
)

const testMicros = int64(1_000_000)

func TestHeatsCommandListsHeats(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"heats"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("heats: %v", err)
	}
	requireContains(t, out, "No heats recorded")

	ctx := context.Background()
	if _, err := env.store.CreateHeat(ctx, 1, 1000*testMicros, 1590*testMicros, 1680*testMicros); err != nil {
		t.Fatalf("create heat: %v", err)
	}

	out, _, err = runCLI(t, []string{"heats"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("heats: %v", err)
	}
	requireContains(t, out, "green")
	requireContains(t, out, "no")
}

func TestLapsCommandJoinsKarts(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	heat, err := env.store.CreateHeat(ctx, 1, 1000*testMicros, 1590*testMicros, 1680*testMicros)
	if err != nil {
		t.Fatalf("create heat: %v", err)
	}
	kart := race.Kart{Transponder: 7086479, Name: "Red Baron", Number: 7}
	if err := env.store.UpsertKart(ctx, kart); err != nil {
		t.Fatalf("upsert kart: %v", err)
	}

	testsupport.InsertPass(t, env.store, 1, 7086479, 1000*testMicros)
	testsupport.InsertPass(t, env.store, 2, 7086479, 1075*testMicros+500_000)
	for _, lap := range []race.Lap{
		{HeatID: heat.ID, PassID: 1, Transponder: 7086479, RTCTime: 1000 * testMicros},
		{HeatID: heat.ID, PassID: 2, Transponder: 7086479, RTCTime: 1075*testMicros + 500_000},
	} {
		if _, err := env.store.InsertLap(ctx, &lap); err != nil {
			t.Fatalf("insert lap %d: %v", lap.PassID, err)
		}
	}

	out, _, err := runCLI(t, []string{"laps", "--heat", "1"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("laps: %v", err)
	}
	requireContains(t, out, "Red Baron")
	requireContains(t, out, "1:15.500")
	requireContains(t, out, "7086479")
}

func TestLapsCommandDefaultsToActiveHeat(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"laps"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "no active heat") {
		t.Fatalf("expected no active heat error, got %v", err)
	}

	ctx := context.Background()
	heat, err := env.store.CreateHeat(ctx, 5, 2000*testMicros, 2590*testMicros, 2680*testMicros)
	if err != nil {
		t.Fatalf("create heat: %v", err)
	}
	lap := race.Lap{HeatID: heat.ID, PassID: 5, Transponder: 3438895, RTCTime: 2000 * testMicros}
	if _, err := env.store.InsertLap(ctx, &lap); err != nil {
		t.Fatalf("insert lap: %v", err)
	}

	out, _, err := runCLI(t, []string{"laps"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("laps: %v", err)
	}
	requireContains(t, out, "3438895")
}

func TestPassesCommandListsRecent(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"passes"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("passes: %v", err)
	}
	requireContains(t, out, "No passes recorded")

	testsupport.InsertPass(t, env.store, 11, 3438895, 3000*testMicros)
	testsupport.InsertPass(t, env.store, 12, 7086479, 3010*testMicros)

	out, _, err = runCLI(t, []string{"passes", "--limit", "1"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("passes: %v", err)
	}
	requireContains(t, out, "7086479")
	if strings.Contains(out, "3438895") {
		t.Fatalf("expected only the newest pass, got:\n%s", out)
	}
}

func TestKartsCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"karts", "set", "3438895", "team rocket", "--number", "12"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("karts set: %v", err)
	}
	requireContains(t, out, "Team Rocket")

	out, _, err = runCLI(t, []string{"karts", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("karts list: %v", err)
	}
	requireContains(t, out, "Team Rocket")
	requireContains(t, out, "3438895")
	requireContains(t, out, "12")
}

func TestKartsSetRejectsBadTransponder(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"karts", "set", "nope", "Red Baron"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "invalid transponder") {
		t.Fatalf("expected invalid transponder error, got %v", err)
	}
}

func TestFlagCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"flag"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("flag: %v", err)
	}
	requireContains(t, out, "not raised")

	out, _, err = runCLI(t, []string{"flag", "green"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("flag green: %v", err)
	}
	requireContains(t, out, "Green flag raised")

	raised, err := env.store.GreenFlag(context.Background())
	if err != nil {
		t.Fatalf("green flag: %v", err)
	}
	if !raised {
		t.Fatal("green flag not persisted")
	}

	out, _, err = runCLI(t, []string{"flag", "clear"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("flag clear: %v", err)
	}
	requireContains(t, out, "Green flag cleared")
}

func TestSettingCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"setting", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("setting list: %v", err)
	}
	requireContains(t, out, "No settings stored")

	if _, _, err := runCLI(t, []string{"setting", "set", race.SettingHeatDuration, "300"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("setting set: %v", err)
	}

	out, _, err = runCLI(t, []string{"setting", "get", race.SettingHeatDuration}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("setting get: %v", err)
	}
	requireContains(t, out, "300")

	out, _, err = runCLI(t, []string{"setting", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("setting list: %v", err)
	}
	requireContains(t, out, race.SettingHeatDuration)

	_, _, err = runCLI(t, []string{"setting", "get", "unset_key"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "not stored") {
		t.Fatalf("expected not stored error, got %v", err)
	}
}
