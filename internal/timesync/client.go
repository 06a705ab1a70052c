package timesync

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"trackside/internal/logging"
)

const requestTimeout = 5 * time.Second

// Client polls a time server and feeds a cell. It absorbs every transport
// failure by invalidating the cell and redialing; it never publishes a time
// it could not parse.
type Client struct {
	cell         *Cell
	addr         string
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewClient configures a poller against addr.
func NewClient(cell *Cell, addr string, pollInterval time.Duration, logger *slog.Logger) *Client {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		cell:         cell,
		addr:         addr,
		pollInterval: pollInterval,
		logger:       logger.With(logging.String(logging.FieldComponent, "timesync")),
	}
}

// Run polls until the context is canceled.
func (c *Client) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var (
		conn   net.Conn
		reader *bufio.Reader
	)
	closeConn := func() {
		if conn != nil {
			_ = conn.Close()
			conn = nil
			reader = nil
		}
	}
	defer closeConn()

	for {
		if conn == nil {
			dialer := net.Dialer{Timeout: requestTimeout}
			newConn, err := dialer.DialContext(ctx, "tcp", c.addr)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.cell.Invalidate()
				c.logger.Warn("time server unreachable",
					logging.String("addr", c.addr),
					logging.Error(err))
			} else {
				conn = newConn
				reader = bufio.NewReader(conn)
				c.logger.Info("connected to time server", logging.String("addr", c.addr))
			}
		}

		if conn != nil {
			micros, synced, err := request(conn, reader)
			switch {
			case err != nil:
				c.cell.Invalidate()
				c.logger.Warn("time poll failed, redialing", logging.Error(err))
				closeConn()
			case !synced:
				c.cell.Invalidate()
				c.logger.Debug("time server has no decoder time yet")
			default:
				c.cell.Set(micros)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Query performs a single request against a time server. synced is false
// when the server answered but has no decoder time yet.
func Query(ctx context.Context, addr string, timeout time.Duration) (micros int64, synced bool, err error) {
	if timeout <= 0 {
		timeout = requestTimeout
	}
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return 0, false, err
	}
	defer conn.Close()
	return request(conn, bufio.NewReader(conn))
}

func request(conn net.Conn, reader *bufio.Reader) (int64, bool, error) {
	if err := conn.SetWriteDeadline(time.Now().Add(requestTimeout)); err != nil {
		return 0, false, fmt.Errorf("set write deadline: %w", err)
	}
	if _, err := conn.Write([]byte(requestToken + "\n")); err != nil {
		return 0, false, fmt.Errorf("send request: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(requestTimeout)); err != nil {
		return 0, false, fmt.Errorf("set read deadline: %w", err)
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		return 0, false, fmt.Errorf("read reply: %w", err)
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, false, fmt.Errorf("empty reply")
	}
	last := fields[len(fields)-1]
	if last == "unknown" {
		return 0, false, nil
	}
	micros, err := strconv.ParseInt(last, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse reply %q: %w", strings.TrimSpace(line), err)
	}
	if micros <= 0 {
		return 0, false, fmt.Errorf("non-positive decoder time %d", micros)
	}
	return micros, true, nil
}
