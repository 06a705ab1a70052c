// Package heats runs the race lifecycle over recorded passes. The Engine
// polls the repository and drives one heat at a time through waiting,
// running, and cooldown; the Judge decides which passes count as laps.
//
// The engine holds no state the repository cannot rebuild: a restart resumes
// the unfinished heat and re-derives its phase from decoder time, and every
// lap decision is deterministic given the stored passes, so crashing between
// poll cycles loses nothing.
package heats
