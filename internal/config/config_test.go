package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"signscribe/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "signscribe")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.BackupDir != filepath.Join(wantData, "backups") {
		t.Fatalf("unexpected backup dir: %q", cfg.Paths.BackupDir)
	}
	if cfg.Database.Driver != config.DriverSQLite {
		t.Fatalf("expected sqlite driver by default, got %q", cfg.Database.Driver)
	}
	if cfg.DatabaseDSN() != filepath.Join(wantData, "signscribe.db") {
		t.Fatalf("unexpected sqlite dsn: %q", cfg.DatabaseDSN())
	}
	if cfg.Capture.IntervalMillis != 150 {
		t.Fatalf("expected 150ms capture interval, got %d", cfg.Capture.IntervalMillis)
	}
	if cfg.Capture.HistorySize != 10 {
		t.Fatalf("expected history size 10, got %d", cfg.Capture.HistorySize)
	}
	if cfg.Capture.ConfidenceThreshold != 0.6 {
		t.Fatalf("expected threshold 0.6, got %v", cfg.Capture.ConfidenceThreshold)
	}
	if cfg.Predict.SequenceLength != 30 {
		t.Fatalf("expected sequence length 30, got %d", cfg.Predict.SequenceLength)
	}
	if strings.Join(cfg.Predict.Labels, ",") != "Alright,Hello,Indian,Namaste,Sign" {
		t.Fatalf("unexpected labels: %v", cfg.Predict.Labels)
	}
	if cfg.Backup.BatchSize != 500 {
		t.Fatalf("expected batch size 500, got %d", cfg.Backup.BatchSize)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Paths.BackupDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s to exist", dir)
		}
	}
}

func TestLoadCustomConfigOverridesDefaults(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	payload := struct {
		Paths   config.Paths   `toml:"paths"`
		Capture config.Capture `toml:"capture"`
		Logging config.Logging `toml:"logging"`
	}{
		Paths: config.Paths{
			DataDir: "~/signscribe-data",
			APIBind: "0.0.0.0:9000",
		},
		Capture: config.Capture{
			IntervalMillis:      250,
			HistorySize:         5,
			ConfidenceThreshold: 0.75,
			Endpoint:            "http://inference.local/predict",
		},
		Logging: config.Logging{Format: "JSON", Level: "Debug"},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %s to be used (exists=%v resolved=%s)", configPath, exists, resolved)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "signscribe-data") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Paths.APIBind != "0.0.0.0:9000" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Capture.IntervalMillis != 250 || cfg.Capture.HistorySize != 5 {
		t.Fatalf("capture overrides not applied: %+v", cfg.Capture)
	}
	if cfg.Capture.RequestTimeoutMs != 2000 {
		t.Fatalf("expected default request timeout, got %d", cfg.Capture.RequestTimeoutMs)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected normalized logging, got %+v", cfg.Logging)
	}
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SIGNSCRIBE_JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("SIGNSCRIBE_PREDICT_URL", "https://predict.example/predict")
	t.Setenv("SIGNSCRIBE_DATABASE_DSN", "postgres://localhost/signscribe")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Auth.JWTSecret != "0123456789abcdef0123" {
		t.Fatalf("expected jwt secret from env, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Capture.Endpoint != "https://predict.example/predict" {
		t.Fatalf("expected endpoint from env, got %q", cfg.Capture.Endpoint)
	}
	if cfg.DatabaseDSN() != "postgres://localhost/signscribe" {
		t.Fatalf("expected dsn from env, got %q", cfg.DatabaseDSN())
	}
	if err := cfg.ValidateServer(); err != nil {
		t.Fatalf("ValidateServer returned error: %v", err)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("SIGNSCRIBE_SENTRY_DSN", "")
	if err := os.Unsetenv("SIGNSCRIBE_SENTRY_DSN"); err != nil {
		t.Fatalf("unset env: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SIGNSCRIBE_SENTRY_DSN=https://key@sentry.example/1\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("SIGNSCRIBE_SENTRY_DSN") })

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Sentry.DSN != "https://key@sentry.example/1" {
		t.Fatalf("expected sentry dsn from .env, got %q", cfg.Sentry.DSN)
	}
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"threshold", func(c *config.Config) { c.Capture.ConfidenceThreshold = 1.2 }, "capture.confidence_threshold"},
		{"history", func(c *config.Config) { c.Capture.HistorySize = -1 }, "capture.history_size"},
		{"driver", func(c *config.Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"postgres dsn", func(c *config.Config) { c.Database.Driver = config.DriverPostgres }, "database.dsn"},
		{"batch", func(c *config.Config) { c.Backup.BatchSize = 501 }, "backup.batch_size"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"labels", func(c *config.Config) { c.Predict.Labels = []string{"Hello", "Hello"} }, "predict.labels"},
		{"notify timeout", func(c *config.Config) { c.Notifications.RequestTimeoutSeconds = -1 }, "notifications.request_timeout_seconds"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestValidateServerRequiresSecret(t *testing.T) {
	cfg := config.Default()
	if err := cfg.ValidateServer(); err == nil {
		t.Fatal("expected missing jwt secret to fail")
	}
	cfg.Auth.JWTSecret = "short"
	if err := cfg.ValidateServer(); err == nil {
		t.Fatal("expected short jwt secret to fail")
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample failed: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Catalog.PageSize != 6 {
		t.Fatalf("unexpected page size from sample: %d", cfg.Catalog.PageSize)
	}
	if cfg.Notifications.NtfyTopic != "" || cfg.Notifications.RequestTimeoutSeconds != 10 {
		t.Fatalf("unexpected notifications from sample: %+v", cfg.Notifications)
	}
}
