package heats

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"trackside/internal/config"
	"trackside/internal/logging"
	"trackside/internal/metrics"
	"trackside/internal/notifications"
	"trackside/internal/race"
)

const (
	lapInsertAttempts = 3
	lapInsertBackoff  = 100 * time.Millisecond

	microsPerSecond = int64(1_000_000)
)

// Phase is the engine's position in the heat lifecycle.
type Phase int

const (
	// PhaseWaiting polls the green flag until a heat can open.
	PhaseWaiting Phase = iota
	// PhaseRunning records laps inside the heat duration.
	PhaseRunning
	// PhaseCooldown records the final crossings until the heat finishes.
	PhaseCooldown
)

func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting_for_green"
	case PhaseRunning:
		return "running"
	case PhaseCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Snapshot reports the engine state for status surfaces. HeatID is zero
// while no heat is active.
type Snapshot struct {
	Phase  Phase
	HeatID int64
}

// Engine drives the heat lifecycle: it waits for the green flag, opens a
// heat on the first pass after it, turns window passes into laps through the
// judge, waves yellow past the heat duration, and finishes the heat when the
// field is home or the cooldown runs out.
type Engine struct {
	cfg      *config.Config
	repo     Repository
	clock    Clock
	notifier notifications.Service
	logger   *slog.Logger

	mu    sync.Mutex
	phase Phase
	heat  *race.Heat

	judge      *Judge
	started    bool
	greenSince int64
}

// NewEngine wires a heat engine. The notifier may be nil.
func NewEngine(cfg *config.Config, repo Repository, clock Clock, notifier notifications.Service, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		cfg:      cfg,
		repo:     repo,
		clock:    clock,
		notifier: notifier,
		logger:   logger.With(logging.String(logging.FieldComponent, "heats")),
	}
}

// Run polls until the context ends. Cycle errors are logged and retried on
// the next poll; the repository holds all durable state, so no cycle is
// load-bearing.
func (e *Engine) Run(ctx context.Context) error {
	pollHeat := time.Duration(e.cfg.Heats.PollInterval) * time.Second
	if pollHeat <= 0 {
		pollHeat = 3 * time.Second
	}
	pollGreen := time.Duration(e.cfg.Heats.GreenPollInterval) * time.Second
	if pollGreen <= 0 {
		pollGreen = pollHeat
	}

	for {
		if err := e.Step(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			e.logger.Error("heat cycle failed", logging.Error(err))
		}

		wait := pollHeat
		if phase, _ := e.current(); phase == PhaseWaiting {
			wait = pollGreen
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// Step advances the lifecycle by one poll cycle. The first step resumes any
// unfinished heat left by a previous run. Step is what Run calls on a timer;
// it is exported so callers can drive the engine deterministically.
func (e *Engine) Step(ctx context.Context) error {
	if !e.started {
		if err := e.resume(ctx); err != nil {
			return err
		}
		e.started = true
	}

	now, synced := e.clock.Now()
	if !synced {
		e.logger.Warn("decoder time unavailable, skipping heat cycle")
		return nil
	}

	phase, heat := e.current()
	if phase == PhaseWaiting {
		return e.stepWaiting(ctx, now)
	}
	return e.stepActive(ctx, now, heat)
}

// Snapshot reports the current phase and heat for status surfaces.
func (e *Engine) Snapshot() Snapshot {
	phase, heat := e.current()
	snap := Snapshot{Phase: phase}
	if heat != nil {
		snap.HeatID = heat.ID
	}
	return snap
}

func (e *Engine) current() (Phase, *race.Heat) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase, e.heat
}

func (e *Engine) setPhase(phase Phase, heat *race.Heat) {
	e.mu.Lock()
	e.phase = phase
	e.heat = heat
	e.mu.Unlock()
}

// resume picks up the unfinished heat from a previous run and derives its
// phase from the current decoder time.
func (e *Engine) resume(ctx context.Context) error {
	heat, err := e.repo.ActiveHeat(ctx)
	if err != nil {
		return err
	}
	if heat == nil {
		e.setPhase(PhaseWaiting, nil)
		return nil
	}

	minLap, err := e.minimumLapMicros(ctx)
	if err != nil {
		return err
	}
	e.judge = NewJudge(e.repo, heat.ID, minLap)

	phase := PhaseRunning
	if heat.RaceFlag == race.FlagYellow {
		phase = PhaseCooldown
	}
	e.setPhase(phase, heat)
	metrics.SetActiveHeat(heat.ID)
	e.logger.Info("resuming unfinished heat",
		logging.Int64(logging.FieldHeatID, heat.ID),
		logging.String("phase", phase.String()),
	)
	return nil
}

// stepWaiting watches for the green flag and opens a heat on the first pass
// recorded after it was observed. Passes already consumed as laps by earlier
// heats can never reopen a race.
func (e *Engine) stepWaiting(ctx context.Context, now int64) error {
	green, err := e.repo.GreenFlag(ctx)
	if err != nil {
		return err
	}
	if !green {
		e.greenSince = 0
		return nil
	}
	if e.greenSince == 0 {
		e.greenSince = now
		e.logger.Info("green flag raised, waiting for first pass",
			logging.Int64(logging.FieldRTCTime, now),
		)
	}

	maxLapPass, err := e.repo.MaxLapPassID(ctx)
	if err != nil {
		return err
	}
	first, err := e.repo.FirstPassAfter(ctx, maxLapPass, e.greenSince)
	if err != nil {
		return err
	}
	if first == nil {
		return nil
	}

	duration, err := e.repo.SettingInt64(ctx, race.SettingHeatDuration, int64(e.cfg.Heats.HeatDuration))
	if err != nil {
		return err
	}
	cooldown, err := e.repo.SettingInt64(ctx, race.SettingHeatCooldown, int64(e.cfg.Heats.HeatCooldown))
	if err != nil {
		return err
	}

	start := first.RTCTime
	end := start + duration*microsPerSecond
	maxEnd := end + cooldown*microsPerSecond
	heat, err := e.repo.CreateHeat(ctx, first.PassID, start, end, maxEnd)
	if err != nil {
		return err
	}

	minLap, err := e.minimumLapMicros(ctx)
	if err != nil {
		return err
	}
	e.judge = NewJudge(e.repo, heat.ID, minLap)
	e.greenSince = 0
	e.setPhase(PhaseRunning, heat)

	metrics.RecordHeatStarted()
	metrics.SetActiveHeat(heat.ID)
	e.logger.Info("heat started",
		logging.Int64(logging.FieldHeatID, heat.ID),
		logging.Int64(logging.FieldPassID, heat.FirstPassID),
		logging.Int64("rtc_time_start", heat.RTCTimeStart),
		logging.Int64("rtc_time_end", heat.RTCTimeEnd),
	)
	if e.notifier != nil {
		id := heat.ID
		go func() {
			_ = e.notifier.NotifyHeatStarted(context.Background(), id)
		}()
	}

	// Process the opening pass in this same cycle so the first lap registers
	// without waiting a poll interval.
	return e.stepActive(ctx, now, heat)
}

// stepActive turns window passes into laps and moves the heat through
// yellow and checkered. A pass beyond the cooldown window is left untouched
// for the next heat; seeing one, or decoder time crossing the window, always
// finishes the heat.
func (e *Engine) stepActive(ctx context.Context, now int64, heat *race.Heat) error {
	cooldown := heat.RaceFlag == race.FlagYellow

	passes, err := e.repo.UnprocessedPasses(ctx, heat.FirstPassID, heat.RTCTimeMaxEnd)
	if err != nil {
		return err
	}

	beyondWindow := false
	for _, pass := range passes {
		if pass.RTCTime > heat.RTCTimeMaxEnd {
			beyondWindow = true
			continue
		}
		if !cooldown && pass.RTCTime > heat.RTCTimeEnd {
			if err := e.waveYellow(ctx, heat); err != nil {
				return err
			}
			cooldown = true
		}
		if e.judge.Skipped(pass.PassID) {
			continue
		}
		if err := e.processPass(ctx, heat, pass); err != nil {
			return err
		}
	}

	if !cooldown && now > heat.RTCTimeEnd {
		if err := e.waveYellow(ctx, heat); err != nil {
			return err
		}
		cooldown = true
	}
	if !cooldown {
		return nil
	}

	if beyondWindow || now > heat.RTCTimeMaxEnd {
		return e.finishHeat(ctx, heat)
	}
	done, err := e.allStartersFinished(ctx, heat)
	if err != nil {
		return err
	}
	if done {
		return e.finishHeat(ctx, heat)
	}
	return nil
}

func (e *Engine) processPass(ctx context.Context, heat *race.Heat, pass *race.Pass) error {
	accept, err := e.judge.Evaluate(ctx, pass)
	if err != nil {
		return err
	}
	if !accept {
		metrics.RecordLap(false)
		e.logger.Info("pass under minimum lap time skipped",
			logging.Int64(logging.FieldHeatID, heat.ID),
			logging.Int64(logging.FieldPassID, pass.PassID),
			logging.Int64(logging.FieldTransponder, pass.Transponder),
		)
		return nil
	}

	lap := &race.Lap{
		HeatID:      heat.ID,
		PassID:      pass.PassID,
		Transponder: pass.Transponder,
		RTCTime:     pass.RTCTime,
	}
	created, err := e.insertLap(ctx, lap)
	if err != nil {
		if e.notifier != nil {
			go func() {
				_ = e.notifier.NotifyError(context.Background(), err, "lap insert")
			}()
		}
		return err
	}
	e.judge.Commit(pass)
	if created {
		metrics.RecordLap(true)
		e.logger.Info("lap recorded",
			logging.Int64(logging.FieldHeatID, heat.ID),
			logging.Int64(logging.FieldPassID, pass.PassID),
			logging.Int64(logging.FieldTransponder, pass.Transponder),
			logging.Int64(logging.FieldRTCTime, pass.RTCTime),
		)
	}
	return nil
}

// insertLap retries briefly before escalating; a sibling process holding
// SQLite is the common transient cause.
func (e *Engine) insertLap(ctx context.Context, lap *race.Lap) (bool, error) {
	var lastErr error
	for attempt := 0; attempt < lapInsertAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(lapInsertBackoff):
			}
		}
		created, err := e.repo.InsertLap(ctx, lap)
		if err == nil {
			return created, nil
		}
		lastErr = err
	}
	return false, lastErr
}

func (e *Engine) waveYellow(ctx context.Context, heat *race.Heat) error {
	heat.RaceFlag = race.FlagYellow
	if err := e.repo.UpdateHeat(ctx, heat); err != nil {
		return err
	}
	e.setPhase(PhaseCooldown, heat)
	e.logger.Info("heat past its duration, yellow flag",
		logging.Int64(logging.FieldHeatID, heat.ID),
		logging.Int64("rtc_time_end", heat.RTCTimeEnd),
	)
	return nil
}

// allStartersFinished reports whether every transponder that started the
// heat has a lap past the heat end. Zero on either side means the answer is
// not determinable yet, never an early finish.
func (e *Engine) allStartersFinished(ctx context.Context, heat *race.Heat) (bool, error) {
	starters, err := e.repo.HeatStarters(ctx, heat.ID)
	if err != nil {
		return false, err
	}
	if starters == 0 {
		return false, nil
	}
	finishers, err := e.repo.HeatFinishers(ctx, heat.ID, heat.RTCTimeEnd)
	if err != nil {
		return false, err
	}
	if finishers == 0 {
		return false, nil
	}
	return finishers >= starters, nil
}

func (e *Engine) finishHeat(ctx context.Context, heat *race.Heat) error {
	lastPass, err := e.repo.MaxLapPassIDForHeat(ctx, heat.ID)
	if err != nil {
		return err
	}
	heat.Finished = true
	heat.RaceFlag = race.FlagCheckered
	heat.LastPassID = lastPass
	if err := e.repo.UpdateHeat(ctx, heat); err != nil {
		return err
	}

	laps, err := e.repo.LapCount(ctx, heat.ID)
	if err != nil {
		return err
	}

	e.judge = nil
	e.setPhase(PhaseWaiting, nil)
	metrics.RecordHeatFinished()
	metrics.SetActiveHeat(0)
	e.logger.Info("heat finished",
		logging.Int64(logging.FieldHeatID, heat.ID),
		logging.Int("laps", laps),
		logging.Int64("last_pass_id", lastPass),
	)
	if e.notifier != nil {
		id := heat.ID
		go func() {
			_ = e.notifier.NotifyHeatFinished(context.Background(), id, laps)
		}()
	}
	return nil
}

func (e *Engine) minimumLapMicros(ctx context.Context) (int64, error) {
	seconds, err := e.repo.SettingInt64(ctx, race.SettingMinimumLapTime, int64(e.cfg.Heats.MinimumLapTime))
	if err != nil {
		return 0, err
	}
	return seconds * microsPerSecond, nil
}
