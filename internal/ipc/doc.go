// Package ipc exposes daemon control over a Unix domain socket using
// JSON-RPC. The server wraps the daemon; the client side is what the
// trackside CLI talks to for status, stop, health, notification tests,
// and log tailing. Race data queries do not pass through here: the CLI
// reads the SQLite store directly.
package ipc
