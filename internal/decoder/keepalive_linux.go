//go:build linux

package decoder

import (
	"net"

	"golang.org/x/sys/unix"

	"trackside/internal/logging"
)

// configureKeepalive arms kernel keepalive probes so a decoder that vanishes
// without a FIN is detected between frames. Failures degrade to no keepalive.
func (c *Conn) configureKeepalive(conn net.Conn) {
	tcp, ok := conn.(*net.TCPConn)
	if !ok || c.cfg.KeepaliveIdle <= 0 {
		return
	}
	raw, err := tcp.SyscallConn()
	if err != nil {
		c.logger.Debug("keepalive unavailable", logging.Error(err))
		return
	}
	var optErr error
	err = raw.Control(func(fd uintptr) {
		optErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
		if optErr == nil {
			optErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, c.cfg.KeepaliveIdle)
		}
		if optErr == nil && c.cfg.KeepaliveInterval > 0 {
			optErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, c.cfg.KeepaliveInterval)
		}
		if optErr == nil && c.cfg.KeepaliveCount > 0 {
			optErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPCNT, c.cfg.KeepaliveCount)
		}
	})
	if err == nil {
		err = optErr
	}
	if err != nil {
		c.logger.Debug("keepalive setup failed", logging.Error(err))
	}
}
