package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDecoder(); err != nil {
		return err
	}
	if err := c.validateTimeSync(); err != nil {
		return err
	}
	if err := c.validateHeats(); err != nil {
		return err
	}
	if err := c.validateMetrics(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateDecoder() error {
	if !c.Decoder.Enabled {
		return nil
	}
	if c.Decoder.Host == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/trackside/config.toml"
		}
		return fmt.Errorf("decoder.host is required when decoder.enabled is true; edit %s (create with 'trackside config init')", defaultPath)
	}
	if c.Decoder.Port <= 0 || c.Decoder.Port > 65535 {
		return fmt.Errorf("decoder.port must be between 1 and 65535, got %d", c.Decoder.Port)
	}
	if c.Decoder.ReconnectMaxAttempts < 0 {
		return errors.New("decoder.reconnect_max_attempts must not be negative")
	}
	return nil
}

func (c *Config) validateTimeSync() error {
	if c.Decoder.Enabled && c.TimeSync.Listen != "" {
		if _, _, err := net.SplitHostPort(c.TimeSync.Listen); err != nil {
			return fmt.Errorf("timesync.listen: %w", err)
		}
	}
	if !c.Decoder.Enabled && c.Heats.Enabled {
		if c.TimeSync.Server == "" {
			return errors.New("timesync.server must be set when heats run without a local decoder connection")
		}
		if _, _, err := net.SplitHostPort(c.TimeSync.Server); err != nil {
			return fmt.Errorf("timesync.server: %w", err)
		}
	}
	return nil
}

func (c *Config) validateHeats() error {
	if !c.Heats.Enabled {
		return nil
	}
	if c.Heats.MinimumLapTime >= c.Heats.HeatDuration {
		return fmt.Errorf("heats.minimum_lap_time (%d) must be below heats.heat_duration (%d)", c.Heats.MinimumLapTime, c.Heats.HeatDuration)
	}
	return nil
}

func (c *Config) validateMetrics() error {
	if !c.Metrics.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Metrics.Bind); err != nil {
		return fmt.Errorf("metrics.bind: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
