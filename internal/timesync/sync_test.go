package timesync_test

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"trackside/internal/timesync"
)

func startServer(t *testing.T, cell *timesync.Cell) (addr string, stop func()) {
	t.Helper()

	server := timesync.NewServer(cell, nil)
	addr, err := server.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = server.Serve(ctx)
	}()
	return addr, func() {
		cancel()
		<-done
	}
}

func request(t *testing.T, conn net.Conn, reader *bufio.Reader) string {
	t.Helper()

	if _, err := conn.Write([]byte("time\n")); err != nil {
		t.Fatalf("write request: %v", err)
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	return strings.TrimSpace(line)
}

func TestServerAnswersRequests(t *testing.T) {
	cell := timesync.NewCell(0)
	cell.Set(5_000_000_000)

	addr, stop := startServer(t, cell)
	defer stop()

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	reader := bufio.NewReader(conn)

	reply := request(t, conn, reader)
	fields := strings.Fields(reply)
	if len(fields) != 2 || fields[0] != "time" {
		t.Fatalf("malformed reply: %q", reply)
	}
	micros, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		t.Fatalf("reply not numeric: %q", reply)
	}
	if micros < 5_000_000_000 || micros > 5_002_000_000 {
		t.Fatalf("decoder time out of range: %d", micros)
	}

	// Several requests on one connection.
	again := request(t, conn, reader)
	if !strings.HasPrefix(again, "time ") {
		t.Fatalf("second reply malformed: %q", again)
	}

	cell.Invalidate()
	if reply := request(t, conn, reader); reply != "time unknown" {
		t.Fatalf("expected unknown reply, got %q", reply)
	}
}

func TestServerIgnoresUnknownRequests(t *testing.T) {
	cell := timesync.NewCell(0)
	cell.Set(1_000_000)

	addr, stop := startServer(t, cell)
	defer stop()

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	reader := bufio.NewReader(conn)

	if _, err := conn.Write([]byte("bogus\n")); err != nil {
		t.Fatalf("write bogus request: %v", err)
	}
	// The bogus line gets no reply; the next real request is answered.
	if reply := request(t, conn, reader); !strings.HasPrefix(reply, "time ") {
		t.Fatalf("expected time reply after bogus request, got %q", reply)
	}
}

func TestClientFeedsCell(t *testing.T) {
	source := timesync.NewCell(0)
	source.Set(7_000_000_000)

	addr, stop := startServer(t, source)
	defer stop()

	sink := timesync.NewCell(0)
	client := timesync.NewClient(sink, addr, 20*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = client.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	waitFor(t, 3*time.Second, func() bool {
		_, ok := sink.Now()
		return ok
	})
	micros, _ := sink.Now()
	if micros < 7_000_000_000 || micros > 7_005_000_000 {
		t.Fatalf("synced time out of range: %d", micros)
	}

	// When the source loses the decoder clock the sink follows.
	source.Invalidate()
	waitFor(t, 3*time.Second, func() bool {
		_, ok := sink.Now()
		return !ok
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
	t.Fatal("condition not reached before timeout")
}
