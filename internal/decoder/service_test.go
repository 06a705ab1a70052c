package decoder_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"trackside/internal/config"
	"trackside/internal/decoder"
	"trackside/internal/p3"
	"trackside/internal/testsupport"
	"trackside/internal/timesync"
)

func timeFrame(micros uint64) []byte {
	return p3.Encode(0x02, 0, p3.RecordTime, []p3.Field{
		p3.Uint64Field(p3.TimeTagRTCTime, micros),
	})
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func serviceConfig(t *testing.T, addr string) *config.Config {
	t.Helper()
	host, portText, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portText)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	cfg := testsupport.NewConfig(t, testsupport.WithDecoderAddr(host, port))
	cfg.Decoder.ReadTimeout = 1
	cfg.Decoder.GetTimeInterval = 1
	cfg.Decoder.ReconnectMinDelay = 1
	cfg.Decoder.ReconnectMaxDelay = 1
	return cfg
}

func TestServicePersistsPassingsAndClock(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	cfg := serviceConfig(t, ln.Addr().String())
	store := testsupport.MustOpenStore(t, cfg)
	cell := timesync.NewCell(time.Minute)
	svc := decoder.NewService(cfg, store, cell, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	conn, err := ln.Accept()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	defer conn.Close()

	// The first bytes from the service are its immediate clock request.
	want := p3.BuildGetTime()
	got := make([]byte, len(want))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.ReadFull(conn, got); err != nil {
		t.Fatalf("read get-time request: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("get-time request mismatch: got %x want %x", got, want)
	}
	go func() { _, _ = io.Copy(io.Discard, conn) }()

	if _, err := conn.Write(passingFrame(t, 5001)); err != nil {
		t.Fatalf("write passing: %v", err)
	}
	if _, err := conn.Write(timeFrame(86_400_000_000)); err != nil {
		t.Fatalf("write time: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		pass, err := store.PassByPassID(ctx, 5001)
		return err == nil && pass != nil
	})
	pass, err := store.PassByPassID(ctx, 5001)
	if err != nil {
		t.Fatalf("load pass: %v", err)
	}
	if pass.Transponder != 3438895 {
		t.Fatalf("unexpected transponder: %d", pass.Transponder)
	}
	if pass.RTCTime != 5001*1_000_000 {
		t.Fatalf("unexpected rtc time: %d", pass.RTCTime)
	}

	waitFor(t, 5*time.Second, func() bool {
		_, ok := cell.Now()
		return ok
	})
	micros, ok := cell.Now()
	if !ok || micros < 86_400_000_000 {
		t.Fatalf("cell not fed from TIME record: %d synced=%v", micros, ok)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("service run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}
}

func TestServiceIgnoresDuplicatePassings(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	cfg := serviceConfig(t, ln.Addr().String())
	store := testsupport.MustOpenStore(t, cfg)
	cell := timesync.NewCell(time.Minute)
	svc := decoder.NewService(cfg, store, cell, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	conn, err := ln.Accept()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	defer conn.Close()
	go func() { _, _ = io.Copy(io.Discard, conn) }()

	replayed := passingFrame(t, 6001)
	if _, err := conn.Write(replayed); err != nil {
		t.Fatalf("write passing: %v", err)
	}
	if _, err := conn.Write(replayed); err != nil {
		t.Fatalf("replay passing: %v", err)
	}
	if _, err := conn.Write(passingFrame(t, 6002)); err != nil {
		t.Fatalf("write sentinel passing: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		pass, err := store.PassByPassID(ctx, 6002)
		return err == nil && pass != nil
	})

	passes, err := store.RecentPasses(ctx, 10)
	if err != nil {
		t.Fatalf("recent passes: %v", err)
	}
	if len(passes) != 2 {
		t.Fatalf("expected 2 stored passes, got %d", len(passes))
	}

	cancel()
	<-done
}

func TestServiceStrictChecksumDropsFrames(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	cfg := serviceConfig(t, ln.Addr().String())
	cfg.Decoder.CRCStrict = true
	store := testsupport.MustOpenStore(t, cfg)
	cell := timesync.NewCell(time.Minute)
	svc := decoder.NewService(cfg, store, cell, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	conn, err := ln.Accept()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	defer conn.Close()
	go func() { _, _ = io.Copy(io.Discard, conn) }()

	// Flip a body byte after encoding so the embedded checksum no longer
	// matches. The frame stays structurally valid.
	raw := p3.Unescape(passingFrame(t, 7001))
	raw[12] ^= 0xFF
	corrupt := p3.Escape(raw)

	if _, err := conn.Write(corrupt); err != nil {
		t.Fatalf("write corrupt passing: %v", err)
	}
	if _, err := conn.Write(passingFrame(t, 7002)); err != nil {
		t.Fatalf("write valid passing: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		pass, err := store.PassByPassID(ctx, 7002)
		return err == nil && pass != nil
	})

	passes, err := store.RecentPasses(ctx, 10)
	if err != nil {
		t.Fatalf("recent passes: %v", err)
	}
	if len(passes) != 1 {
		t.Fatalf("expected only the valid pass, got %d rows", len(passes))
	}

	cancel()
	<-done
}

type recordingNotifier struct {
	mu        sync.Mutex
	connected int
	lost      int
}

func (r *recordingNotifier) NotifyHeatStarted(context.Context, int64) error       { return nil }
func (r *recordingNotifier) NotifyHeatFinished(context.Context, int64, int) error { return nil }
func (r *recordingNotifier) NotifyError(context.Context, error, string) error     { return nil }
func (r *recordingNotifier) TestNotification(context.Context) error               { return nil }

func (r *recordingNotifier) NotifyDecoderConnected(context.Context, string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected++
	return nil
}

func (r *recordingNotifier) NotifyDecoderLost(context.Context, error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lost++
	return nil
}

func (r *recordingNotifier) counts() (connected, lost int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected, r.lost
}

func TestServiceNotifiesConnectionEvents(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	cfg := serviceConfig(t, ln.Addr().String())
	cfg.Decoder.ReconnectMaxAttempts = 1
	store := testsupport.MustOpenStore(t, cfg)
	cell := timesync.NewCell(time.Minute)
	notifier := &recordingNotifier{}
	svc := decoder.NewService(cfg, store, cell, notifier, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	conn, err := ln.Accept()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	go func() { _, _ = io.Copy(io.Discard, conn) }()

	waitFor(t, 5*time.Second, func() bool {
		connected, _ := notifier.counts()
		return connected >= 1
	})

	// Take the decoder away entirely so the budget runs out.
	_ = conn.Close()
	_ = ln.Close()

	select {
	case err := <-done:
		if !errors.Is(err, decoder.ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("service did not give up")
	}

	waitFor(t, 5*time.Second, func() bool {
		_, lost := notifier.counts()
		return lost >= 1
	})
}
