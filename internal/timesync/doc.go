// Package timesync distributes the decoder's RTC clock between the daemon
// roles.
//
// The decoder reports its clock in TIME records; the decoder role stores each
// report in a Cell and serves it over a small TCP line protocol. The heats
// role polls that server and feeds its own Cell, which the heat engine reads
// for every window decision. A Cell extrapolates between reports using the
// local monotonic clock and refuses to answer when it has never been set,
// has been invalidated, or the last report is older than the staleness bound.
// Zero is never a valid decoder time.
package timesync
