// Package decoder maintains the TCP session to the timing decoder and turns
// its byte stream into persisted passings, health readings, and clock
// samples for the rest of the daemon.
//
// Conn handles the wire: framing, reconnects, and keepalive. Service handles
// the records: PASSING rows go to the race store, STATUS readings feed the
// metrics gauges, and TIME responses feed the shared clock cell.
package decoder
