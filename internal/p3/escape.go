package p3

// Escape rewrites interior framing-marker bytes (0x8D, 0x8E, 0x8F) as the
// escape byte followed by the value plus 0x20. The first and last bytes of
// the frame are the real SOR/EOR markers and are never escaped.
func Escape(frame []byte) []byte {
	if len(frame) < 3 {
		out := make([]byte, len(frame))
		copy(out, frame)
		return out
	}
	out := make([]byte, 0, len(frame)+4)
	out = append(out, frame[0])
	for _, b := range frame[1 : len(frame)-1] {
		switch b {
		case esc, sor, eor:
			out = append(out, esc, b+escOffset)
		default:
			out = append(out, b)
		}
	}
	return append(out, frame[len(frame)-1])
}

// Unescape reverses Escape: every interior escape byte is dropped and 0x20 is
// subtracted from the byte that follows it. A dangling escape byte directly
// before EOR is passed through unchanged; well-formed frames never produce
// one.
func Unescape(frame []byte) []byte {
	if len(frame) < 3 {
		out := make([]byte, len(frame))
		copy(out, frame)
		return out
	}
	out := make([]byte, 0, len(frame))
	out = append(out, frame[0])
	interior := frame[1 : len(frame)-1]
	for i := 0; i < len(interior); {
		b := interior[i]
		if b == esc && i+1 < len(interior) {
			out = append(out, interior[i+1]-escOffset)
			i += 2
			continue
		}
		out = append(out, b)
		i++
	}
	return append(out, frame[len(frame)-1])
}
