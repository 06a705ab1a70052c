package timesync

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"trackside/internal/logging"
)

// requestToken is the fixed request a client sends, one per line. The reply
// is one line whose last whitespace-delimited token is the decimal decoder
// time in microseconds, or "unknown" when the cell is unsynced.
const requestToken = "time"

const connIdleLimit = 2 * time.Minute

// Server answers decoder-time requests from the heats role over TCP.
type Server struct {
	cell   *Cell
	logger *slog.Logger

	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer wraps a cell for serving. The server owns no lifecycle until
// Listen is called.
func NewServer(cell *Cell, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Server{cell: cell, logger: logger.With(logging.String(logging.FieldComponent, "timesync"))}
}

// Listen binds the configured address and returns the bound address, which
// differs from the request when the port was 0.
func (s *Server) Listen(addr string) (string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.listener = listener
	return listener.Addr().String(), nil
}

// Serve accepts connections until the context is canceled. Listen must have
// succeeded first.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return fmt.Errorf("serve before listen")
	}
	s.logger.Info("time server listening", logging.String("addr", s.listener.Addr().String()))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-ctx.Done()
		_ = s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			default:
			}
			s.logger.Warn("accept failed", logging.Error(err))
			continue
		}
		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			s.handle(ctx, c)
		}(conn)
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for {
		if err := conn.SetReadDeadline(time.Now().Add(connIdleLimit)); err != nil {
			return
		}
		if !scanner.Scan() {
			return
		}
		if ctx.Err() != nil {
			return
		}
		request := strings.TrimSpace(scanner.Text())
		if request != requestToken {
			s.logger.Debug("ignoring unknown request",
				logging.String("request", request),
				logging.String(logging.FieldRemoteAddr, conn.RemoteAddr().String()))
			continue
		}

		reply := requestToken + " unknown\n"
		if micros, ok := s.cell.Now(); ok {
			reply = requestToken + " " + strconv.FormatInt(micros, 10) + "\n"
		}
		if err := conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
			return
		}
		if _, err := conn.Write([]byte(reply)); err != nil {
			s.logger.Debug("time reply failed",
				logging.Error(err),
				logging.String(logging.FieldRemoteAddr, conn.RemoteAddr().String()))
			return
		}
	}
}
