package decoder

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"
	"time"

	"trackside/internal/config"
	"trackside/internal/logging"
	"trackside/internal/metrics"
	"trackside/internal/notifications"
	"trackside/internal/p3"
	"trackside/internal/race"
	"trackside/internal/timesync"
)

const (
	passInsertAttempts = 3
	passInsertBackoff  = 100 * time.Millisecond
)

// Service owns the decoder session for the daemon. It persists every passing,
// publishes decoder health readings, and feeds the shared clock cell from
// TIME responses.
type Service struct {
	cfg      *config.Config
	store    *race.Store
	cell     *timesync.Cell
	conn     *Conn
	notifier notifications.Service
	logger   *slog.Logger
}

// NewService wires a decoder service. The notifier may be nil.
func NewService(cfg *config.Config, store *race.Store, cell *timesync.Cell, notifier notifications.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Service{
		cfg:      cfg,
		store:    store,
		cell:     cell,
		conn:     NewConn(cfg.Decoder, logger),
		notifier: notifier,
		logger:   logger.With(logging.String(logging.FieldComponent, "decoder")),
	}
	s.conn.OnConnect = s.onConnect
	s.conn.OnDisconnect = s.onDisconnect
	return s
}

// Conn exposes the underlying connection for status snapshots and manual
// frame sends over IPC.
func (s *Service) Conn() *Conn {
	return s.conn
}

// Run connects and processes frames until the context is canceled or the
// reconnect budget is exhausted.
func (s *Service) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := s.conn.Dial(runCtx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.requestTimeLoop(runCtx)
	}()

	err := s.readLoop(runCtx)
	cancel()
	wg.Wait()
	_ = s.conn.Close()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Service) readLoop(ctx context.Context) error {
	for {
		frame, err := s.conn.ReadFrame(ctx)
		switch {
		case err == nil:
			s.handleFrame(ctx, frame)
		case errors.Is(err, ErrIdleTimeout):
			s.logger.Debug("no frames within read timeout")
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			return err
		}
	}
}

// requestTimeLoop asks the decoder for its clock immediately and then on the
// configured interval. Failed writes are expected while the session is down;
// the next tick retries.
func (s *Service) requestTimeLoop(ctx context.Context) {
	interval := time.Duration(s.cfg.Decoder.GetTimeInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := s.conn.Write(p3.BuildGetTime()); err != nil {
			s.logger.Debug("get-time request not sent", logging.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Service) handleFrame(ctx context.Context, frame []byte) {
	msg, err := p3.Decode(frame)
	if err != nil {
		metrics.RecordFrameError()
		s.logger.Warn("frame decode failed",
			logging.Error(err),
			logging.String(logging.FieldFrameHex, hex.EncodeToString(frame)),
		)
		return
	}
	if !msg.CRCOK {
		metrics.RecordCRCMismatch()
		if s.cfg.Decoder.CRCStrict {
			s.logger.Warn("frame dropped on checksum mismatch",
				logging.String(logging.FieldRecordType, msg.Type.String()),
				logging.String(logging.FieldFrameHex, hex.EncodeToString(frame)),
			)
			return
		}
		s.logger.Debug("checksum mismatch tolerated",
			logging.String(logging.FieldRecordType, msg.Type.String()),
		)
	}
	metrics.RecordFrame(msg.Type.String())

	switch msg.Type {
	case p3.RecordPassing:
		s.handlePassing(ctx, msg)
	case p3.RecordStatus:
		s.handleStatus(msg)
	case p3.RecordTime:
		s.handleTime(msg)
	default:
		s.logger.Debug("unhandled record type",
			logging.String(logging.FieldRecordType, msg.Type.String()),
			logging.String(logging.FieldFrameHex, hex.EncodeToString(frame)),
		)
	}
}

func (s *Service) handlePassing(ctx context.Context, msg *p3.Message) {
	passing, err := msg.AsPassing()
	if err != nil {
		metrics.RecordFrameError()
		s.logger.Warn("passing record rejected", logging.Error(err))
		return
	}

	pass := &race.Pass{
		PassID:      int64(passing.Number),
		Transponder: int64(passing.Transponder),
		RTCTime:     int64(passing.RTCTime),
		Strength:    int64(passing.Strength),
		Hits:        int64(passing.Hits),
		Flags:       int64(passing.Flags),
		DecoderID:   int64(passing.DecoderID),
	}
	created, err := s.insertPass(ctx, pass)
	if err != nil {
		s.logger.Error("pass not persisted",
			logging.Int64(logging.FieldPassID, pass.PassID),
			logging.Int64(logging.FieldTransponder, pass.Transponder),
			logging.Error(err),
		)
		if s.notifier != nil {
			go func() {
				_ = s.notifier.NotifyError(context.Background(), err, "pass ingest")
			}()
		}
		return
	}
	metrics.RecordPass(created)
	if !created {
		s.logger.Debug("duplicate pass ignored", logging.Int64(logging.FieldPassID, pass.PassID))
		return
	}
	s.logger.Info("pass recorded",
		logging.Int64(logging.FieldPassID, pass.PassID),
		logging.Int64(logging.FieldTransponder, pass.Transponder),
		logging.Int64(logging.FieldRTCTime, pass.RTCTime),
	)
}

// insertPass retries briefly on storage errors. SQLite held briefly by a
// sibling process is the common cause; anything persistent bubbles up.
func (s *Service) insertPass(ctx context.Context, pass *race.Pass) (bool, error) {
	var lastErr error
	for attempt := 0; attempt < passInsertAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(passInsertBackoff):
			}
		}
		created, err := s.store.InsertPass(ctx, pass)
		if err == nil {
			return created, nil
		}
		lastErr = err
	}
	return false, lastErr
}

func (s *Service) handleStatus(msg *p3.Message) {
	status, err := msg.AsStatus()
	if err != nil {
		metrics.RecordFrameError()
		s.logger.Warn("status record rejected", logging.Error(err))
		return
	}
	metrics.SetDecoderHealth(float64(status.Noise), float64(status.Temperature), float64(status.InputVoltage), float64(status.GPS))
	s.logger.Debug("decoder status",
		logging.Int("noise", int(status.Noise)),
		logging.Int("temperature", int(status.Temperature)),
		logging.Int("input_voltage", int(status.InputVoltage)),
		logging.Int("gps", int(status.GPS)),
		logging.Uint64(logging.FieldDecoderID, uint64(status.DecoderID)),
	)
}

func (s *Service) handleTime(msg *p3.Message) {
	info, err := msg.AsTime()
	if err != nil {
		metrics.RecordFrameError()
		s.logger.Warn("time record rejected", logging.Error(err))
		return
	}
	if info.RTCTime == 0 {
		s.logger.Debug("zero decoder time ignored")
		return
	}
	s.cell.Set(int64(info.RTCTime))
	metrics.SetClockSynced(true)
	s.logger.Debug("decoder clock updated", logging.Int64(logging.FieldRTCTime, int64(info.RTCTime)))
}

func (s *Service) onConnect() {
	if s.notifier == nil {
		return
	}
	go func() {
		_ = s.notifier.NotifyDecoderConnected(context.Background(), s.conn.Addr())
	}()
}

func (s *Service) onDisconnect(cause error) {
	s.cell.Invalidate()
	metrics.SetClockSynced(false)
	if s.notifier == nil {
		return
	}
	go func() {
		_ = s.notifier.NotifyDecoderLost(context.Background(), cause)
	}()
}
