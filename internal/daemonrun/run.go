// Package daemonrun boots the trackside daemon process: logging, store,
// role construction per config, IPC, and signal handling. Both
// `tracksided` and `trackside run` call into Run.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"trackside/internal/config"
	"trackside/internal/daemon"
	"trackside/internal/decoder"
	"trackside/internal/heats"
	"trackside/internal/ipc"
	"trackside/internal/logging"
	"trackside/internal/notifications"
	"trackside/internal/race"
	"trackside/internal/timesync"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel overrides the configured log level when non-empty.
	LogLevel string
}

// Run starts the trackside daemon and blocks until a signal or an IPC stop.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("trackside-%s.log", runID))

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update trackside.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "trackside-*.log", Exclude: []string{logPath}},
	)

	pidPath := filepath.Join(cfg.Paths.LogDir, "trackside.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := race.Open(cfg)
	if err != nil {
		logger.Error("open race store", logging.Error(err))
		return err
	}
	defer store.Close()

	notifier := notifications.NewService(cfg)
	cell := timesync.NewCell(time.Duration(cfg.TimeSync.StaleAfter) * time.Second)

	var (
		decoderService *decoder.Service
		engine         *heats.Engine
		timeServer     *timesync.Server
		timeClient     *timesync.Client
	)
	if cfg.Decoder.Enabled {
		decoderService = decoder.NewService(cfg, store, cell, notifier, logger)
		timeServer = timesync.NewServer(cell, logger)
		bound, err := timeServer.Listen(cfg.TimeSync.Listen)
		if err != nil {
			return fmt.Errorf("time sync listener: %w", err)
		}
		logger.Info("time sync serving", logging.String("bind", bound))
	} else if cfg.Heats.Enabled {
		// Without a local decoder session the clock comes from the decoder
		// process over the time sync protocol.
		timeClient = timesync.NewClient(cell, cfg.TimeSync.Server,
			time.Duration(cfg.TimeSync.PollInterval)*time.Second, logger)
	}
	if cfg.Heats.Enabled {
		engine = heats.NewEngine(cfg, store, cell, notifier, logger)
	}
	if decoderService == nil && engine == nil {
		return errors.New("no roles enabled: enable [decoder] or [heats] in the config")
	}

	d, err := daemon.New(daemon.Options{
		Config:     cfg,
		Store:      store,
		Cell:       cell,
		Decoder:    decoderService,
		Engine:     engine,
		TimeServer: timeServer,
		TimeClient: timeClient,
		Notifier:   notifier,
		Logger:     logger,
		LogPath:    logPath,
	})
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, cancel, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed", logging.Error(err))
		return err
	}

	var startupErr <-chan error
	if engine != nil {
		startupErr = startupWait(signalCtx, cfg, cell)
	}

	select {
	case <-signalCtx.Done():
		logger.Info("trackside daemon shutting down")
		return nil
	case err := <-startupErr:
		logger.Error("decoder time never became available, shutting down",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the decoder connection or [timesync] server address"),
		)
		return err
	}
}

// startupWait bounds how long the heat engine may run without a decoder
// clock. The engine skips cycles while unsynced, so a clock that never
// appears within the window means the time source is down or misconfigured;
// the error on the returned channel terminates the process rather than
// letting it poll forever.
func startupWait(ctx context.Context, cfg *config.Config, cell *timesync.Cell) <-chan error {
	errCh := make(chan error, 1)
	timeout := time.Duration(cfg.TimeSync.StartupTimeout) * time.Second
	if timeout <= 0 {
		return errCh
	}
	go func() {
		if err := cell.Wait(ctx, timeout); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("decoder time not available within %s: %w", timeout, err)
		}
	}()
	return errCh
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "trackside.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := fmt.Sprintf("%d\n", os.Getpid())
	return os.WriteFile(path, []byte(value), 0o644)
}
