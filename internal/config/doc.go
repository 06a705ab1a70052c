// Package config loads, validates, and normalizes trackside configuration.
//
// Configuration lives in a TOML file (default ~/.config/trackside/config.toml)
// with sections per subsystem: decoder connection, time sync, heat engine,
// notifications, metrics, and logging. Load applies defaults first, then the
// file, then normalization (path expansion, trimming) and validation, so
// callers always receive a usable Config or an error naming the offending key.
package config
