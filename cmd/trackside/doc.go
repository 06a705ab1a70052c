// Package main hosts the trackside CLI entrypoint and command graph.
//
// The cobra-based command tree translates terminal invocations into IPC
// calls against the daemon, direct race database queries, offline P3 frame
// decoding, and configuration scaffolding. It centralizes configuration
// resolution and socket discovery so subcommands can focus on presentation.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
