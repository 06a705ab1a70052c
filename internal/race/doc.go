// Package race persists timing data in SQLite and exposes the queries the
// heat engine and CLI are built on.
//
// The Store manages database connections, schema migrations, and the tables
// shared between the two daemon roles: raw transponder passes, accepted laps,
// heats, karts, and operator settings. Passes are append-only; a pass the lap
// judge rejects stays in the table untouched so a replay reaches the same
// verdict. Everything downstream (heat windows, lap joins, starter counts)
// is derived by query rather than by mutating rows.
//
// Times are decoder RTC microseconds stored as INTEGER columns. Both roles
// may open the same database file concurrently; WAL mode plus idempotent
// inserts keep cross-process writes safe without in-process coordination.
package race
