package p3

import (
	"errors"
	"fmt"
)

// ErrMissingField reports a typed view built from a frame lacking a field the
// view requires.
var ErrMissingField = errors.New("p3: missing field")

// Passing is the typed view of a PASSING record: one transponder crossing the
// loop. Times are decoder RTC microseconds.
type Passing struct {
	Number      uint32
	Transponder uint32
	RTCTime     uint64
	Strength    uint16
	Hits        uint16
	Flags       uint16
	UTCTime     uint64
	DecoderID   uint32
}

// AsPassing extracts the passing view. Number, transponder, and RTC time are
// required; the rest default to zero when absent.
func (m *Message) AsPassing() (*Passing, error) {
	if m.Type != RecordPassing {
		return nil, fmt.Errorf("p3: record type %s is not PASSING", m.Type)
	}
	number, ok := m.Uint(PassingTagNumber)
	if !ok {
		return nil, fmt.Errorf("%w: passing_number", ErrMissingField)
	}
	transponder, ok := m.Uint(PassingTagTransponder)
	if !ok {
		return nil, fmt.Errorf("%w: transponder", ErrMissingField)
	}
	rtc, ok := m.Uint(PassingTagRTCTime)
	if !ok {
		return nil, fmt.Errorf("%w: rtc_time", ErrMissingField)
	}

	p := &Passing{
		Number:      uint32(number),
		Transponder: uint32(transponder),
		RTCTime:     rtc,
	}
	if v, ok := m.Uint(PassingTagStrength); ok {
		p.Strength = uint16(v)
	}
	if v, ok := m.Uint(PassingTagHits); ok {
		p.Hits = uint16(v)
	}
	if v, ok := m.Uint(PassingTagFlags); ok {
		p.Flags = uint16(v)
	}
	if v, ok := m.Uint(PassingTagUTCTime); ok {
		p.UTCTime = v
	}
	if v, ok := m.Uint(GeneralTagDecoderID); ok {
		p.DecoderID = uint32(v)
	}
	return p, nil
}

// Status is the typed view of a STATUS record: periodic decoder health.
type Status struct {
	Noise        uint16
	GPS          uint8
	Temperature  uint16
	LoopTriggers uint16
	InputVoltage uint8
	DecoderID    uint32
}

// AsStatus extracts the status view. Every field is optional.
func (m *Message) AsStatus() (*Status, error) {
	if m.Type != RecordStatus {
		return nil, fmt.Errorf("p3: record type %s is not STATUS", m.Type)
	}
	s := &Status{}
	if v, ok := m.Uint(StatusTagNoise); ok {
		s.Noise = uint16(v)
	}
	if v, ok := m.Uint(StatusTagGPS); ok {
		s.GPS = uint8(v)
	}
	if v, ok := m.Uint(StatusTagTemperature); ok {
		s.Temperature = uint16(v)
	}
	if v, ok := m.Uint(StatusTagLoopTriggers); ok {
		s.LoopTriggers = uint16(v)
	}
	if v, ok := m.Uint(StatusTagInputVoltage); ok {
		s.InputVoltage = uint8(v)
	}
	if v, ok := m.Uint(GeneralTagDecoderID); ok {
		s.DecoderID = uint32(v)
	}
	return s, nil
}

// TimeInfo is the typed view of a TIME record: the decoder RTC clock.
type TimeInfo struct {
	RTCTime   uint64
	DecoderID uint32
}

// AsTime extracts the time view. The RTC value is required.
func (m *Message) AsTime() (*TimeInfo, error) {
	if m.Type != RecordTime {
		return nil, fmt.Errorf("p3: record type %s is not TIME", m.Type)
	}
	rtc, ok := m.Uint(TimeTagRTCTime)
	if !ok {
		return nil, fmt.Errorf("%w: rtc_time", ErrMissingField)
	}
	t := &TimeInfo{RTCTime: rtc}
	if v, ok := m.Uint(GeneralTagDecoderID); ok {
		t.DecoderID = uint32(v)
	}
	return t, nil
}
