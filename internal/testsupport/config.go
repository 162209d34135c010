package testsupport

import (
	"path/filepath"
	"testing"

	"signscribe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// TestJWTSecret is the signing secret seeded into every test config.
const TestJWTSecret = "test-secret-0123456789abcdef"

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.BackupDir = filepath.Join(base, "backups")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Auth.JWTSecret = TestJWTSecret
	cfgVal.Capture.FrameDir = filepath.Join(base, "frames")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithLabels overrides the prediction label set on the test config.
func WithLabels(labels ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Predict.Labels = append([]string(nil), labels...)
	}
}

// WithSequenceLength overrides the prediction window length.
func WithSequenceLength(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Predict.SequenceLength = n
	}
}

// WithPageSize overrides the catalogue page size.
func WithPageSize(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Catalog.PageSize = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
