// Package logs reads daemon log files for the CLI.
//
// Tail serves both one-shot "last N lines" reads and the polling reads
// behind `trackside logs --follow`. Results carry the byte offset where
// reading stopped so the next call resumes without re-scanning the file.
package logs
