// Package daemon supervises the long-running trackside roles under one
// lifecycle: the decoder session, the heat engine, the time-sync endpoints,
// and the metrics listener. A file lock enforces a single instance per data
// directory; the IPC server calls into Daemon for status and control.
package daemon
