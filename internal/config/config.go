package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Decoder contains the TCP connection settings for the timing decoder.
type Decoder struct {
	Enabled              bool   `toml:"enabled"`
	Host                 string `toml:"host"`
	Port                 int    `toml:"port"`
	ConnectTimeout       int    `toml:"connect_timeout"`
	ReadTimeout          int    `toml:"read_timeout"`
	ReconnectMinDelay    int    `toml:"reconnect_min_delay"`
	ReconnectMaxDelay    int    `toml:"reconnect_max_delay"`
	ReconnectMaxAttempts int    `toml:"reconnect_max_attempts"`
	GetTimeInterval      int    `toml:"get_time_interval"`
	KeepaliveIdle        int    `toml:"keepalive_idle"`
	KeepaliveInterval    int    `toml:"keepalive_interval"`
	KeepaliveCount       int    `toml:"keepalive_count"`
	CRCStrict            bool   `toml:"crc_strict"`
}

// TimeSync contains the decoder clock distribution settings. Listen is the
// bind address served by the decoder role; Server is the address the heats
// role polls when it runs in a separate process.
type TimeSync struct {
	Listen         string `toml:"listen"`
	Server         string `toml:"server"`
	PollInterval   int    `toml:"poll_interval"`
	StartupTimeout int    `toml:"startup_timeout"`
	StaleAfter     int    `toml:"stale_after"`
}

// Heats contains heat engine defaults. Duration, cooldown, and minimum lap
// values act as fallbacks; the settings table in the race database overrides
// them when present so race control can retune without restarts.
type Heats struct {
	Enabled           bool `toml:"enabled"`
	PollInterval      int  `toml:"poll_interval"`
	GreenPollInterval int  `toml:"green_poll_interval"`
	HeatDuration      int  `toml:"heat_duration"`
	HeatCooldown      int  `toml:"heat_cooldown"`
	MinimumLapTime    int  `toml:"minimum_lap_time"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	HeatStarted    bool   `toml:"heat_started"`
	HeatFinished   bool   `toml:"heat_finished"`
	Decoder        bool   `toml:"decoder"`
	Errors         bool   `toml:"errors"`
}

// Metrics contains the Prometheus exposition settings.
type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for trackside.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Decoder: decoder TCP endpoint, timeouts, reconnects, CRC policy
//   - TimeSync: decoder clock server bind and client polling
//   - Heats: heat engine polling and race timing defaults
//   - Notifications: ntfy push notification settings
//   - Metrics: Prometheus exposition endpoint
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Decoder       Decoder       `toml:"decoder"`
	TimeSync      TimeSync      `toml:"timesync"`
	Heats         Heats         `toml:"heats"`
	Notifications Notifications `toml:"notifications"`
	Metrics       Metrics       `toml:"metrics"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/trackside/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("trackside.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the race database location under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "trackside.db")
}

// SocketPath returns the daemon IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "tracksided.sock")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "tracksided.lock")
}

// DecoderAddr returns the decoder endpoint in host:port form.
func (c *Config) DecoderAddr() string {
	return net.JoinHostPort(c.Decoder.Host, strconv.Itoa(c.Decoder.Port))
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
