package logging

import (
	"context"
	"log/slog"
	"time"
)

// Standardized structured logging keys shared across components.
const (
	// FieldComponent names the subsystem emitting the record.
	FieldComponent = "component"
	// FieldEventType tags significant state changes for log filtering.
	FieldEventType = "event_type"
	// FieldErrorHint points operators at the next diagnostic step.
	FieldErrorHint = "error_hint"
	// FieldSessionID carries the decoder connection session identifier.
	FieldSessionID = "session_id"
	// FieldRemoteAddr is the decoder or time-server endpoint in use.
	FieldRemoteAddr = "remote_addr"
	// FieldRecordType is the decoded P3 type-of-record, hex encoded.
	FieldRecordType = "record_type"
	// FieldFrameHex holds raw frame bytes for wire-level debugging.
	FieldFrameHex = "frame_hex"
	// FieldPassID is the protocol-assigned passing number.
	FieldPassID = "pass_id"
	// FieldTransponder is the transponder identifier on a passing.
	FieldTransponder = "transponder"
	// FieldHeatID identifies the heat a record belongs to.
	FieldHeatID = "heat_id"
	// FieldDecoderID is the reporting decoder's identifier.
	FieldDecoderID = "decoder_id"
	// FieldRTCTime is a decoder clock value in microseconds.
	FieldRTCTime = "rtc_time"
)

type Attr = slog.Attr

type Value = slog.Value

func Any(key string, value any) Attr { return slog.Any(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Float64(key string, value float64) Attr { return slog.Float64(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func Uint64(key string, value uint64) Attr { return slog.Uint64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Group(key string, attrs ...Attr) Attr {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return slog.Group(key, args...)
}

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

func attrsToArgs(attrs []Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return args
}

func Args(attrs ...Attr) []any {
	return attrsToArgs(attrs)
}

func NewNop() *slog.Logger {
	return slog.New(NoopHandler{})
}

// NewComponentLogger creates a logger with a standardized component attribute.
// If logger is nil, a no-op logger is used as the base.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// NoopHandler discards all log output.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }

func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler { return NoopHandler{} }

func (NoopHandler) WithGroup(string) slog.Handler { return NoopHandler{} }
