//go:build !linux

package decoder

import (
	"net"
	"time"

	"trackside/internal/logging"
)

// configureKeepalive uses the portable keepalive knobs where the Linux
// socket options are not available.
func (c *Conn) configureKeepalive(conn net.Conn) {
	tcp, ok := conn.(*net.TCPConn)
	if !ok || c.cfg.KeepaliveIdle <= 0 {
		return
	}
	if err := tcp.SetKeepAlive(true); err != nil {
		c.logger.Debug("keepalive setup failed", logging.Error(err))
		return
	}
	if err := tcp.SetKeepAlivePeriod(time.Duration(c.cfg.KeepaliveIdle) * time.Second); err != nil {
		c.logger.Debug("keepalive setup failed", logging.Error(err))
	}
}
