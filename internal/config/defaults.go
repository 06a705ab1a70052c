package config

const (
	defaultDataDir              = "~/.local/share/trackside"
	defaultLogDir               = "~/.local/share/trackside/logs"
	defaultLogRetentionDays     = 60
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultDecoderPort          = 5403
	defaultConnectTimeout       = 10
	defaultReadTimeout          = 30
	defaultReconnectMinDelay    = 1
	defaultReconnectMaxDelay    = 30
	defaultReconnectMaxAttempts = 20
	defaultGetTimeInterval      = 5
	defaultKeepaliveIdle        = 30
	defaultKeepaliveInterval    = 10
	defaultKeepaliveCount       = 3
	defaultTimeSyncListen       = "127.0.0.1:5402"
	defaultTimeSyncPoll         = 1
	defaultStartupTimeout       = 60
	defaultStaleAfter           = 30
	defaultHeatPollInterval     = 3
	defaultGreenPollInterval    = 2
	defaultHeatDuration         = 590
	defaultHeatCooldown         = 90
	defaultMinimumLapTime       = 10
	defaultMetricsBind          = "127.0.0.1:9464"
	defaultNotifyTimeout        = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Decoder: Decoder{
			Enabled:              true,
			Port:                 defaultDecoderPort,
			ConnectTimeout:       defaultConnectTimeout,
			ReadTimeout:          defaultReadTimeout,
			ReconnectMinDelay:    defaultReconnectMinDelay,
			ReconnectMaxDelay:    defaultReconnectMaxDelay,
			ReconnectMaxAttempts: defaultReconnectMaxAttempts,
			GetTimeInterval:      defaultGetTimeInterval,
			KeepaliveIdle:        defaultKeepaliveIdle,
			KeepaliveInterval:    defaultKeepaliveInterval,
			KeepaliveCount:       defaultKeepaliveCount,
		},
		TimeSync: TimeSync{
			Listen:         defaultTimeSyncListen,
			PollInterval:   defaultTimeSyncPoll,
			StartupTimeout: defaultStartupTimeout,
			StaleAfter:     defaultStaleAfter,
		},
		Heats: Heats{
			Enabled:           true,
			PollInterval:      defaultHeatPollInterval,
			GreenPollInterval: defaultGreenPollInterval,
			HeatDuration:      defaultHeatDuration,
			HeatCooldown:      defaultHeatCooldown,
			MinimumLapTime:    defaultMinimumLapTime,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			HeatStarted:    true,
			HeatFinished:   true,
			Decoder:        true,
			Errors:         true,
		},
		Metrics: Metrics{
			Bind: defaultMetricsBind,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
