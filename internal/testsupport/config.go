package testsupport

import (
	"path/filepath"
	"testing"

	"trackside/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Decoder.Host = "127.0.0.1"
	cfg.TimeSync.Listen = "127.0.0.1:0"
	cfg.Metrics.Bind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithDecoderAddr points the decoder connection at an explicit host and port,
// usually a net.Listener started by the test.
func WithDecoderAddr(host string, port int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Decoder.Host = host
		cfg.Decoder.Port = port
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
