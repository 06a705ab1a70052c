package decoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"trackside/internal/config"
	"trackside/internal/logging"
	"trackside/internal/metrics"
	"trackside/internal/p3"
)

const (
	// readChunk sizes the socket read buffer. Frames are tens of bytes, so
	// one chunk holds many.
	readChunk = 4096
	// maxCarry bounds buffered bytes while waiting for a frame end. A stream
	// that exceeds it without closing a frame is noise, not protocol.
	maxCarry = 64 << 10

	writeTimeout = 5 * time.Second
)

var (
	// ErrIdleTimeout reports that no bytes arrived within the configured read
	// timeout. The session stays up and the caller is expected to retry.
	ErrIdleTimeout = errors.New("decoder: read idle timeout")
	// ErrUnavailable reports a session that could not be established within
	// the reconnect budget, or a write attempted with no session up.
	ErrUnavailable = errors.New("decoder: unavailable")
)

// Conn maintains one TCP session to the decoder and reassembles its byte
// stream into whole frames. ReadFrame must have a single caller; Write may be
// called from any goroutine.
type Conn struct {
	cfg    config.Decoder
	addr   string
	logger *slog.Logger

	// OnConnect and OnDisconnect observe session changes. Set them before
	// Dial; they run on connection goroutines and must not block.
	OnConnect    func()
	OnDisconnect func(cause error)

	mu        sync.Mutex
	tcp       net.Conn
	sessionID string

	writeMu sync.Mutex

	// carry and pending belong to the ReadFrame caller.
	carry   []byte
	pending [][]byte

	sessions   atomic.Uint64
	frames     atomic.Uint64
	dropped    atomic.Uint64
	reconnects atomic.Uint64
}

// Stats is a point-in-time connection snapshot.
type Stats struct {
	Connected  bool
	SessionID  string
	Frames     uint64
	Dropped    uint64
	Reconnects uint64
}

// NewConn prepares a connection to the decoder endpoint in cfg. No network
// activity happens until Dial or ReadFrame.
func NewConn(cfg config.Decoder, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Conn{
		cfg:    cfg,
		addr:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		logger: logger.With(logging.String(logging.FieldComponent, "decoder")),
	}
}

// Addr returns the decoder endpoint in host:port form.
func (c *Conn) Addr() string {
	return c.addr
}

// Dial establishes the first session, honoring the reconnect budget.
func (c *Conn) Dial(ctx context.Context) error {
	return c.redial(ctx)
}

// ReadFrame returns the next whole frame, start marker through end marker,
// still escaped as read off the wire. A dead session is re-established
// transparently within the reconnect budget. The returned slice is owned by
// the caller.
func (c *Conn) ReadFrame(ctx context.Context) ([]byte, error) {
	buf := make([]byte, readChunk)
	for {
		if frame := c.nextPending(); frame != nil {
			return frame, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tcp := c.session()
		if tcp == nil {
			if err := c.redial(ctx); err != nil {
				return nil, err
			}
			if c.sessions.Load() > 1 {
				c.reconnects.Add(1)
				metrics.RecordReconnect()
			}
			continue
		}

		if c.cfg.ReadTimeout > 0 {
			_ = tcp.SetReadDeadline(time.Now().Add(time.Duration(c.cfg.ReadTimeout) * time.Second))
		}
		n, err := tcp.Read(buf)
		if n > 0 {
			c.absorb(buf[:n])
		}
		if err == nil {
			continue
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			if len(c.pending) > 0 {
				continue
			}
			return nil, ErrIdleTimeout
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.teardown(tcp, err)
	}
}

// Write sends one frame on the current session. There is no queueing; writes
// while the session is down fail with ErrUnavailable and the caller retries
// after the read side reconnects.
func (c *Conn) Write(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	tcp := c.session()
	if tcp == nil {
		return ErrUnavailable
	}
	_ = tcp.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := tcp.Write(frame); err != nil {
		c.teardown(tcp, err)
		return fmt.Errorf("decoder: write: %w", err)
	}
	return nil
}

// Close tears down the session without firing OnDisconnect; a deliberate
// shutdown is not a lost decoder.
func (c *Conn) Close() error {
	c.mu.Lock()
	tcp := c.tcp
	c.tcp = nil
	c.sessionID = ""
	c.mu.Unlock()
	if tcp == nil {
		return nil
	}
	metrics.SetDecoderConnected(false)
	return tcp.Close()
}

// Stats reports connection counters for status surfaces.
func (c *Conn) Stats() Stats {
	c.mu.Lock()
	connected := c.tcp != nil
	session := c.sessionID
	c.mu.Unlock()
	return Stats{
		Connected:  connected,
		SessionID:  session,
		Frames:     c.frames.Load(),
		Dropped:    c.dropped.Load(),
		Reconnects: c.reconnects.Load(),
	}
}

func (c *Conn) session() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tcp
}

func (c *Conn) nextPending() []byte {
	if len(c.pending) == 0 {
		return nil
	}
	frame := c.pending[0]
	c.pending = c.pending[1:]
	c.frames.Add(1)
	return frame
}

func (c *Conn) connect(ctx context.Context) error {
	dialer := net.Dialer{Timeout: time.Duration(c.cfg.ConnectTimeout) * time.Second}
	tcp, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.addr, err)
	}
	c.configureKeepalive(tcp)

	c.mu.Lock()
	c.tcp = tcp
	c.sessionID = uuid.NewString()
	session := c.sessionID
	c.mu.Unlock()
	c.sessions.Add(1)

	c.logger.Info("decoder session established",
		logging.String(logging.FieldRemoteAddr, c.addr),
		logging.String(logging.FieldSessionID, session),
	)
	metrics.SetDecoderConnected(true)
	if c.OnConnect != nil {
		c.OnConnect()
	}
	return nil
}

// redial retries connect with doubling delays between the configured bounds.
// A max attempt count of zero retries until the context ends.
func (c *Conn) redial(ctx context.Context) error {
	minDelay := time.Duration(c.cfg.ReconnectMinDelay) * time.Second
	maxDelay := time.Duration(c.cfg.ReconnectMaxDelay) * time.Second
	if minDelay <= 0 {
		minDelay = time.Second
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}

	delay := minDelay
	for attempt := 1; ; attempt++ {
		err := c.connect(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("decoder connect failed",
			logging.String(logging.FieldRemoteAddr, c.addr),
			logging.Int("attempt", attempt),
			logging.Error(err),
		)
		if c.cfg.ReconnectMaxAttempts > 0 && attempt >= c.cfg.ReconnectMaxAttempts {
			return fmt.Errorf("%w: %d connect attempts to %s failed", ErrUnavailable, attempt, c.addr)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// teardown closes a failed session so the read loop redials. A session
// already replaced by a concurrent teardown is left alone.
func (c *Conn) teardown(failed net.Conn, cause error) {
	c.mu.Lock()
	if c.tcp == nil || c.tcp != failed {
		c.mu.Unlock()
		return
	}
	tcp := c.tcp
	session := c.sessionID
	c.tcp = nil
	c.sessionID = ""
	c.mu.Unlock()

	_ = tcp.Close()
	c.logger.Warn("decoder session lost",
		logging.String(logging.FieldSessionID, session),
		logging.Error(cause),
	)
	metrics.SetDecoderConnected(false)
	if c.OnDisconnect != nil {
		c.OnDisconnect(cause)
	}
}

// absorb appends raw bytes to the carry buffer and cuts out every complete
// frame. Interior marker bytes are escaped on the wire, so a start marker
// always opens a frame and an end marker always closes one; anything before
// a start marker is line noise.
func (c *Conn) absorb(data []byte) {
	c.carry = append(c.carry, data...)
	for {
		start := bytes.IndexByte(c.carry, p3.SOR)
		if start < 0 {
			c.drop(len(c.carry))
			c.carry = c.carry[:0]
			return
		}
		if start > 0 {
			c.drop(start)
			c.carry = c.carry[start:]
		}
		end := bytes.IndexByte(c.carry[1:], p3.EOR)
		if end < 0 {
			if len(c.carry) > maxCarry {
				c.drop(len(c.carry))
				c.carry = c.carry[:0]
			}
			return
		}
		frame := make([]byte, end+2)
		copy(frame, c.carry[:end+2])
		c.pending = append(c.pending, frame)
		c.carry = c.carry[end+2:]
	}
}

func (c *Conn) drop(n int) {
	if n <= 0 {
		return
	}
	c.dropped.Add(uint64(n))
	metrics.RecordBytesDropped(n)
	c.logger.Debug("dropped bytes outside frame", logging.Int("bytes", n))
}
