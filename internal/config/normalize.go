package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDecoder()
	c.normalizeTimeSync()
	c.normalizeHeats()
	c.normalizeNotifications()
	c.normalizeMetrics()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDecoder() {
	c.Decoder.Host = strings.TrimSpace(c.Decoder.Host)
	if c.Decoder.ConnectTimeout <= 0 {
		c.Decoder.ConnectTimeout = defaultConnectTimeout
	}
	if c.Decoder.ReadTimeout <= 0 {
		c.Decoder.ReadTimeout = defaultReadTimeout
	}
	if c.Decoder.ReconnectMinDelay <= 0 {
		c.Decoder.ReconnectMinDelay = defaultReconnectMinDelay
	}
	if c.Decoder.ReconnectMaxDelay < c.Decoder.ReconnectMinDelay {
		c.Decoder.ReconnectMaxDelay = c.Decoder.ReconnectMinDelay
	}
	if c.Decoder.GetTimeInterval <= 0 {
		c.Decoder.GetTimeInterval = defaultGetTimeInterval
	}
}

func (c *Config) normalizeTimeSync() {
	c.TimeSync.Listen = strings.TrimSpace(c.TimeSync.Listen)
	c.TimeSync.Server = strings.TrimSpace(c.TimeSync.Server)
	if c.TimeSync.PollInterval <= 0 {
		c.TimeSync.PollInterval = defaultTimeSyncPoll
	}
	if c.TimeSync.StartupTimeout <= 0 {
		c.TimeSync.StartupTimeout = defaultStartupTimeout
	}
	if c.TimeSync.StaleAfter <= 0 {
		c.TimeSync.StaleAfter = defaultStaleAfter
	}
}

func (c *Config) normalizeHeats() {
	if c.Heats.PollInterval <= 0 {
		c.Heats.PollInterval = defaultHeatPollInterval
	}
	if c.Heats.GreenPollInterval <= 0 {
		c.Heats.GreenPollInterval = defaultGreenPollInterval
	}
	if c.Heats.HeatDuration <= 0 {
		c.Heats.HeatDuration = defaultHeatDuration
	}
	if c.Heats.HeatCooldown < 0 {
		c.Heats.HeatCooldown = defaultHeatCooldown
	}
	if c.Heats.MinimumLapTime <= 0 {
		c.Heats.MinimumLapTime = defaultMinimumLapTime
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeMetrics() {
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
	if c.Metrics.Bind == "" {
		c.Metrics.Bind = defaultMetricsBind
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
