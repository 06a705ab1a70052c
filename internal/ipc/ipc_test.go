package ipc_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"trackside/internal/config"
	"trackside/internal/daemon"
	"trackside/internal/ipc"
	"trackside/internal/race"
	"trackside/internal/testsupport"
	"trackside/internal/timesync"
)

type harness struct {
	cfg     *config.Config
	store   *race.Store
	daemon  *daemon.Daemon
	client  *ipc.Client
	stopped chan struct{}
}

func startHarness(t *testing.T, logPath string) *harness {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	cell := timesync.NewCell(0)

	d, err := daemon.New(daemon.Options{
		Config:  cfg,
		Store:   store,
		Cell:    cell,
		LogPath: logPath,
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)

	stopped := make(chan struct{})
	server, err := ipc.NewServer(context.Background(), cfg.SocketPath(), d, func() { close(stopped) }, nil)
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	server.Serve()
	t.Cleanup(server.Close)

	client, err := ipc.Dial(cfg.SocketPath())
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return &harness{cfg: cfg, store: store, daemon: d, client: client, stopped: stopped}
}

func TestStatusOverSocket(t *testing.T) {
	h := startHarness(t, "")
	ctx := context.Background()

	if err := h.store.SetGreenFlag(ctx, true); err != nil {
		t.Fatalf("SetGreenFlag: %v", err)
	}

	status, err := h.client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Running {
		t.Fatal("daemon reported running before Start")
	}
	if status.PID <= 0 {
		t.Fatalf("PID = %d", status.PID)
	}
	if status.DatabasePath != h.store.Path() {
		t.Fatalf("database path = %q, want %q", status.DatabasePath, h.store.Path())
	}
	if !status.GreenFlag {
		t.Fatal("expected green flag to surface in status")
	}
	if status.Clock.Synced {
		t.Fatal("clock reported synced with no time set")
	}
}

func TestStopShutsDownDaemon(t *testing.T) {
	h := startHarness(t, "")

	if err := h.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	resp, err := h.client.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !resp.Stopped {
		t.Fatal("expected stopped response")
	}

	select {
	case <-h.stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown callback not invoked")
	}

	status := h.daemon.Status(context.Background())
	if status.Running {
		t.Fatal("daemon still running after IPC stop")
	}
}

func TestLogTailOverSocket(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "trackside.log")
	if err := os.WriteFile(logPath, []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	h := startHarness(t, logPath)

	resp, err := h.client.LogTail(ipc.LogTailRequest{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("LogTail: %v", err)
	}
	if len(resp.Lines) != 2 || resp.Lines[0] != "two" || resp.Lines[1] != "three" {
		t.Fatalf("lines = %#v, want the last two", resp.Lines)
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("four\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = f.Close()

	next, err := h.client.LogTail(ipc.LogTailRequest{Offset: resp.Offset})
	if err != nil {
		t.Fatalf("LogTail from offset: %v", err)
	}
	if len(next.Lines) != 1 || next.Lines[0] != "four" {
		t.Fatalf("lines = %#v, want only the appended line", next.Lines)
	}
}

func TestDatabaseHealthOverSocket(t *testing.T) {
	h := startHarness(t, "")

	health, err := h.client.DatabaseHealth()
	if err != nil {
		t.Fatalf("DatabaseHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable {
		t.Fatalf("health = %+v, want an existing readable database", health)
	}
	if len(health.MissingTables) != 0 {
		t.Fatalf("missing tables: %v", health.MissingTables)
	}
	if !health.IntegrityCheck {
		t.Fatal("integrity check failed on a fresh database")
	}
}

func TestTestNotificationOverSocket(t *testing.T) {
	h := startHarness(t, "")

	resp, err := h.client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if resp.Sent || resp.Message != "ntfy topic not configured" {
		t.Fatalf("resp = %+v, want unsent with explanation", resp)
	}
}
