package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"trackside/internal/config"
	"trackside/internal/decoder"
	"trackside/internal/heats"
	"trackside/internal/logging"
	"trackside/internal/metrics"
	"trackside/internal/notifications"
	"trackside/internal/race"
	"trackside/internal/timesync"
)

// Options carries the components the daemon supervises. Decoder, Engine,
// TimeServer, and TimeClient are roles; a nil role is simply not run.
type Options struct {
	Config     *config.Config
	Store      *race.Store
	Cell       *timesync.Cell
	Decoder    *decoder.Service
	Engine     *heats.Engine
	TimeServer *timesync.Server
	TimeClient *timesync.Client
	Notifier   notifications.Service
	Logger     *slog.Logger

	// LogPath is the daemon log file served to `trackside logs`.
	LogPath string
}

// Daemon runs the configured roles and enforces single-instance execution
// through a lock file in the data directory.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *race.Store
	cell     *timesync.Cell
	decoder  *decoder.Service
	engine   *heats.Engine
	timeSrv  *timesync.Server
	timeCli  *timesync.Client
	notifier notifications.Service

	logPath  string
	lockPath string
	lock     *flock.Flock

	metricsLn  net.Listener
	metricsSrv *http.Server

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status is the daemon runtime snapshot served over IPC.
type Status struct {
	Running      bool
	PID          int
	Roles        []string
	DatabasePath string
	LockPath     string
	GreenFlag    bool
	Decoder      DecoderStatus
	Clock        ClockStatus
	Heat         HeatStatus
}

// DecoderStatus reports the decoder session when that role is enabled.
type DecoderStatus struct {
	Enabled    bool
	Address    string
	Connected  bool
	SessionID  string
	Frames     uint64
	Dropped    uint64
	Reconnects uint64
}

// ClockStatus reports the decoder clock cell.
type ClockStatus struct {
	Synced      bool
	DecoderTime int64
	Age         time.Duration
}

// HeatStatus reports the heat engine when that role is enabled.
type HeatStatus struct {
	Active bool
	ID     int64
	Phase  string
}

// New constructs a daemon from its components.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil || opts.Store == nil || opts.Cell == nil {
		return nil, errors.New("daemon requires config, store, and clock cell")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logPath := opts.LogPath
	if logPath == "" {
		logPath = filepath.Join(opts.Config.Paths.LogDir, "trackside.log")
	}

	lockPath := opts.Config.LockPath()
	return &Daemon{
		cfg:      opts.Config,
		logger:   logger.With(logging.String(logging.FieldComponent, "daemon")),
		store:    opts.Store,
		cell:     opts.Cell,
		decoder:  opts.Decoder,
		engine:   opts.Engine,
		timeSrv:  opts.TimeServer,
		timeCli:  opts.TimeClient,
		notifier: opts.Notifier,
		logPath:  logPath,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and launches every configured role.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !ok {
		return errors.New("another trackside daemon is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if d.cfg.Metrics.Enabled {
		if err := d.startMetrics(); err != nil {
			cancel()
			d.cancel = nil
			_ = d.lock.Unlock()
			return err
		}
	}

	if d.timeSrv != nil {
		d.runRole(runCtx, "timesync", d.timeSrv.Serve)
	}
	if d.timeCli != nil {
		d.runRole(runCtx, "timesync", d.timeCli.Run)
	}
	if d.decoder != nil {
		d.runRole(runCtx, "decoder", d.decoder.Run)
	}
	if d.engine != nil {
		d.runRole(runCtx, "heats", d.engine.Run)
	}

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("roles", strings.Join(d.Roles(), ",")),
		logging.String("lock", d.lockPath),
	)
	return nil
}

// runRole runs one role to completion. A role that fails while the daemon
// is still up is reported but does not take the other roles down; the
// status surface shows what stopped.
func (d *Daemon) runRole(ctx context.Context, name string, run func(context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := run(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error("role stopped",
				logging.String("role", name),
				logging.Error(err),
			)
			if d.notifier != nil {
				_ = d.notifier.NotifyError(context.Background(), err, name+" role")
			}
		}
	}()
}

func (d *Daemon) startMetrics() error {
	listener, err := net.Listen("tcp", d.cfg.Metrics.Bind)
	if err != nil {
		return fmt.Errorf("metrics listener on %s: %w", d.cfg.Metrics.Bind, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	d.metricsLn = listener
	d.metricsSrv = server
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Warn("metrics server stopped", logging.Error(err))
		}
	}()
	d.logger.Info("metrics listening", logging.String("bind", listener.Addr().String()))
	return nil
}

// MetricsAddr returns the bound metrics address, or empty when disabled.
func (d *Daemon) MetricsAddr() string {
	if d.metricsLn == nil {
		return ""
	}
	return d.metricsLn.Addr().String()
}

// Stop cancels every role, waits for them, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.metricsSrv != nil {
		_ = d.metricsSrv.Close()
		d.metricsSrv = nil
		d.metricsLn = nil
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Roles names the components this daemon instance runs.
func (d *Daemon) Roles() []string {
	var roles []string
	if d.decoder != nil {
		roles = append(roles, "decoder")
	}
	if d.engine != nil {
		roles = append(roles, "heats")
	}
	if d.timeSrv != nil || d.timeCli != nil {
		roles = append(roles, "timesync")
	}
	return roles
}

// LogPath returns the daemon log file path served to the CLI.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status assembles the runtime snapshot.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Roles:        d.Roles(),
		DatabasePath: d.store.Path(),
		LockPath:     d.lockPath,
	}
	if green, err := d.store.GreenFlag(ctx); err == nil {
		status.GreenFlag = green
	}
	if d.decoder != nil {
		conn := d.decoder.Conn()
		stats := conn.Stats()
		status.Decoder = DecoderStatus{
			Enabled:    true,
			Address:    conn.Addr(),
			Connected:  stats.Connected,
			SessionID:  stats.SessionID,
			Frames:     stats.Frames,
			Dropped:    stats.Dropped,
			Reconnects: stats.Reconnects,
		}
	}
	if micros, ok := d.cell.Now(); ok {
		status.Clock.Synced = true
		status.Clock.DecoderTime = micros
	}
	if age, ok := d.cell.Age(); ok {
		status.Clock.Age = age
	}
	if d.engine != nil {
		snap := d.engine.Snapshot()
		status.Heat = HeatStatus{
			Active: snap.HeatID != 0,
			ID:     snap.HeatID,
			Phase:  snap.Phase.String(),
		}
	}
	return status
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (race.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// TestNotification sends a test message with the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := d.notifier
	if notifier == nil {
		notifier = notifications.NewService(d.cfg)
	}
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
