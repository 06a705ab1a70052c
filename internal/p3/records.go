package p3

import "fmt"

// RecordType is the type-of-record header field.
type RecordType uint16

// Record types emitted or consumed by this system. The decoder defines more;
// unknown types decode generically and are surfaced by name "0xNNNN".
const (
	RecordPassing    RecordType = 0x0001
	RecordStatus     RecordType = 0x0002
	RecordVersion    RecordType = 0x0003
	RecordReset      RecordType = 0x0004
	RecordGeneralSet RecordType = 0x0013
	RecordTime       RecordType = 0x0024
	RecordSignals    RecordType = 0x002D
)

func (t RecordType) String() string {
	switch t {
	case RecordPassing:
		return "PASSING"
	case RecordStatus:
		return "STATUS"
	case RecordVersion:
		return "VERSION"
	case RecordReset:
		return "RESET"
	case RecordGeneralSet:
		return "GENERAL_SET"
	case RecordTime:
		return "TIME"
	case RecordSignals:
		return "SIGNALS"
	default:
		return fmt.Sprintf("0x%04x", uint16(t))
	}
}

// Body field tags. Tag values are scoped to their record type; 0x81 and above
// are general fields shared by every record type.
const (
	PassingTagNumber      = 0x01
	PassingTagTransponder = 0x03
	PassingTagRTCTime     = 0x04
	PassingTagStrength    = 0x05
	PassingTagHits        = 0x06
	PassingTagFlags       = 0x08
	PassingTagUTCTime     = 0x10

	StatusTagNoise        = 0x01
	StatusTagGPS          = 0x06
	StatusTagTemperature  = 0x07
	StatusTagLoopTriggers = 0x0B
	StatusTagInputVoltage = 0x0C

	TimeTagRTCTime = 0x01

	GeneralTagDecoderID = 0x81
)

// FieldName returns the human name of a tag within the given record type, or
// "" when the tag is unknown.
func FieldName(t RecordType, tag byte) string {
	if tag >= 0x81 {
		switch tag {
		case GeneralTagDecoderID:
			return "decoder_id"
		default:
			return ""
		}
	}
	switch t {
	case RecordPassing:
		switch tag {
		case PassingTagNumber:
			return "passing_number"
		case PassingTagTransponder:
			return "transponder"
		case PassingTagRTCTime:
			return "rtc_time"
		case PassingTagStrength:
			return "strength"
		case PassingTagHits:
			return "hits"
		case PassingTagFlags:
			return "flags"
		case PassingTagUTCTime:
			return "utc_time"
		}
	case RecordStatus:
		switch tag {
		case StatusTagNoise:
			return "noise"
		case StatusTagGPS:
			return "gps"
		case StatusTagTemperature:
			return "temperature"
		case StatusTagLoopTriggers:
			return "loop_triggers"
		case StatusTagInputVoltage:
			return "input_voltage"
		}
	case RecordTime:
		switch tag {
		case TimeTagRTCTime:
			return "rtc_time"
		}
	}
	return ""
}
