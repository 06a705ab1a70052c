// Package p3 implements the AMB/MyLaps P3 wire protocol: framing, escaping,
// checksums, and record decoding.
//
// A frame is SOR (0x8E), a ten-byte header, a TLV body, and EOR (0x8F). All
// multi-byte header and body integers are little-endian except the CRC, which
// is embedded big-endian. Interior bytes that collide with the framing
// markers travel escaped as 0x8D followed by the value plus 0x20.
//
// The package is pure: no sockets, no clocks. The decoder connection feeds it
// byte buffers and receives Messages; everything here is safe for concurrent
// use.
package p3
