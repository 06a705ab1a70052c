// Package logging assembles structured slog loggers and formatting helpers
// used across trackside services.
//
// It owns the configurable console/JSON handlers, centralizes level and
// output plumbing, and exposes attribute helpers plus shared field-name
// constants so the decoder client, heat engine, and time sync components emit
// log lines with the same shape. The package also provides a no-op logger for
// tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup to ensure new
// components emit data with the same shape and routing guarantees as the rest
// of the system.
package logging
