package p3

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	sor       = 0x8E
	eor       = 0x8F
	esc       = 0x8D
	escOffset = 0x20

	// headerLen covers SOR through the type-of-record field.
	headerLen = 10
	// minFrameLen is a header plus the closing EOR.
	minFrameLen = headerLen + 1
)

// Markers exported for connection-level buffer handling.
const (
	SOR = sor
	EOR = eor
)

var (
	// ErrFraming reports a missing or misplaced SOR/EOR marker.
	ErrFraming = errors.New("p3: bad framing")
	// ErrTruncated reports a frame or TLV shorter than its own declared size.
	ErrTruncated = errors.New("p3: truncated frame")
	// ErrLength reports a header length that contradicts the frame size.
	ErrLength = errors.New("p3: length mismatch")
	// ErrChecksum reports a CRC mismatch under strict verification.
	ErrChecksum = errors.New("p3: checksum mismatch")
)

// Header is the fixed portion of every frame.
type Header struct {
	Version byte
	Length  uint16
	CRC     uint16
	Flags   uint16
	Type    RecordType
}

// Field is one TLV from a frame body. Value bytes are little-endian on the
// wire and retained verbatim.
type Field struct {
	Tag   byte
	Value []byte
}

// Uint returns the field value as an integer. Values longer than eight bytes
// return the low eight.
func (f Field) Uint() uint64 {
	var v uint64
	n := len(f.Value)
	if n > 8 {
		n = 8
	}
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(f.Value[i])
	}
	return v
}

// NewField builds a TLV with a copied value.
func NewField(tag byte, value []byte) Field {
	v := make([]byte, len(value))
	copy(v, value)
	return Field{Tag: tag, Value: v}
}

// Uint16Field builds a two-byte little-endian TLV.
func Uint16Field(tag byte, v uint16) Field {
	value := make([]byte, 2)
	binary.LittleEndian.PutUint16(value, v)
	return Field{Tag: tag, Value: value}
}

// Uint32Field builds a four-byte little-endian TLV.
func Uint32Field(tag byte, v uint32) Field {
	value := make([]byte, 4)
	binary.LittleEndian.PutUint32(value, v)
	return Field{Tag: tag, Value: value}
}

// Uint64Field builds an eight-byte little-endian TLV.
func Uint64Field(tag byte, v uint64) Field {
	value := make([]byte, 8)
	binary.LittleEndian.PutUint64(value, v)
	return Field{Tag: tag, Value: value}
}

// Message is a decoded frame.
type Message struct {
	Header
	Fields []Field
	// CRCOK records whether the embedded checksum matched. Lenient decoding
	// keeps mismatching frames and leaves the policy decision to the caller.
	CRCOK bool
	// Raw is the unescaped frame the message was decoded from.
	Raw []byte
}

// Field returns the last field carrying the given tag.
func (m *Message) Field(tag byte) (Field, bool) {
	for i := len(m.Fields) - 1; i >= 0; i-- {
		if m.Fields[i].Tag == tag {
			return m.Fields[i], true
		}
	}
	return Field{}, false
}

// Uint returns the integer value of the last field carrying the given tag.
func (m *Message) Uint(tag byte) (uint64, bool) {
	f, ok := m.Field(tag)
	if !ok {
		return 0, false
	}
	return f.Uint(), true
}

// Decode parses one escaped frame into a Message. Structural problems
// (framing, truncation, length contradiction) are errors; a checksum mismatch
// is not, it is reported through Message.CRCOK so callers can apply their
// verification policy.
func Decode(frame []byte) (*Message, error) {
	if len(frame) < 2 || frame[0] != sor {
		return nil, fmt.Errorf("%w: frame does not start with SOR", ErrFraming)
	}
	if frame[len(frame)-1] != eor {
		return nil, fmt.Errorf("%w: frame does not end with EOR", ErrFraming)
	}

	raw := Unescape(frame)
	if len(raw) < minFrameLen {
		return nil, fmt.Errorf("%w: %d bytes after unescaping", ErrTruncated, len(raw))
	}

	hdr := Header{
		Version: raw[1],
		Length:  binary.LittleEndian.Uint16(raw[2:4]),
		CRC:     binary.BigEndian.Uint16(raw[4:6]),
		Flags:   binary.LittleEndian.Uint16(raw[6:8]),
		Type:    RecordType(binary.LittleEndian.Uint16(raw[8:10])),
	}

	// The get-time request quirk: some frames carry a zero length field and
	// the decoder accepts them, so zero is tolerated here too.
	if hdr.Length != 0 && int(hdr.Length) != len(raw) {
		return nil, fmt.Errorf("%w: header says %d, frame is %d", ErrLength, hdr.Length, len(raw))
	}

	msg := &Message{
		Header: hdr,
		CRCOK:  checksumZeroed(raw) == hdr.CRC,
		Raw:    raw,
	}

	body := raw[headerLen : len(raw)-1]
	for i := 0; i < len(body); {
		if i+2 > len(body) {
			return nil, fmt.Errorf("%w: dangling tag 0x%02x", ErrTruncated, body[i])
		}
		tag, vlen := body[i], int(body[i+1])
		if i+2+vlen > len(body) {
			return nil, fmt.Errorf("%w: field 0x%02x wants %d bytes, %d remain", ErrTruncated, tag, vlen, len(body)-i-2)
		}
		value := make([]byte, vlen)
		copy(value, body[i+2:i+2+vlen])
		msg.Fields = append(msg.Fields, Field{Tag: tag, Value: value})
		i += 2 + vlen
	}

	return msg, nil
}

// DecodeStrict is Decode with checksum mismatches promoted to ErrChecksum.
func DecodeStrict(frame []byte) (*Message, error) {
	msg, err := Decode(frame)
	if err != nil {
		return nil, err
	}
	if !msg.CRCOK {
		return nil, fmt.Errorf("%w: header 0x%04x computed 0x%04x", ErrChecksum, msg.CRC, checksumZeroed(msg.Raw))
	}
	return msg, nil
}

// Encode builds one escaped frame carrying the given record type and fields.
// The length and checksum header fields describe the unescaped frame, which
// is how the decoder computes them.
func Encode(version byte, flags uint16, tor RecordType, fields []Field) []byte {
	bodyLen := 0
	for _, f := range fields {
		bodyLen += 2 + len(f.Value)
	}

	raw := make([]byte, 0, headerLen+bodyLen+1)
	raw = append(raw, sor, version)
	raw = binary.LittleEndian.AppendUint16(raw, uint16(headerLen+bodyLen+1))
	raw = append(raw, 0, 0) // checksum backfilled below
	raw = binary.LittleEndian.AppendUint16(raw, flags)
	raw = binary.LittleEndian.AppendUint16(raw, uint16(tor))
	for _, f := range fields {
		raw = append(raw, f.Tag, byte(len(f.Value)))
		raw = append(raw, f.Value...)
	}
	raw = append(raw, eor)

	binary.BigEndian.PutUint16(raw[4:6], Checksum(raw))

	return Escape(raw)
}

// SplitRecords splits a buffer of concatenated frames at every EOR,SOR
// adjacency. The EOR stays with the preceding segment. Segments alias buf.
// A buffer without any adjacency comes back as a single segment.
func SplitRecords(buf []byte) [][]byte {
	if len(buf) == 0 {
		return nil
	}
	var segments [][]byte
	start := 0
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == eor && buf[i+1] == sor {
			segments = append(segments, buf[start:i+1])
			start = i + 1
		}
	}
	return append(segments, buf[start:])
}

// buildGetTime is the request the reference firmware expects, kept verbatim:
// the header carries a zero length field and the body is three zero-length
// TLVs (tags 0x01, 0x04, 0x05).
var buildGetTime = []byte{
	sor, 0x00, 0x00, 0x00, 0x5B, 0xEB, 0x00, 0x00,
	0x24, 0x00, 0x01, 0x00, 0x04, 0x00, 0x05, 0x00, eor,
}

// BuildGetTime returns a GET_TIME request frame.
func BuildGetTime() []byte {
	out := make([]byte, len(buildGetTime))
	copy(out, buildGetTime)
	return out
}
