package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
	BackupDir string `toml:"backup_dir"`
	APIBind   string `toml:"api_bind"`
}

// Database selects the document store backend.
type Database struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// Capture contains settings for the webcam capture loop.
type Capture struct {
	Endpoint            string  `toml:"endpoint"`
	IntervalMillis      int     `toml:"interval_ms"`
	HistorySize         int     `toml:"history_size"`
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	RequestTimeoutMs    int     `toml:"request_timeout_ms"`
	Device              string  `toml:"device"`
	FrameDir            string  `toml:"frame_dir"`
	JPEGQuality         int     `toml:"jpeg_quality"`
}

// Predict contains settings for the prediction service.
type Predict struct {
	ModelPath           string   `toml:"model_path"`
	ONNXLibrary         string   `toml:"onnx_library"`
	InputName           string   `toml:"input_name"`
	OutputName          string   `toml:"output_name"`
	Labels              []string `toml:"labels"`
	SequenceLength      int      `toml:"sequence_length"`
	FeatureGrid         int      `toml:"feature_grid"`
	PredictionThreshold float64  `toml:"prediction_threshold"`
	SessionIdleMinutes  int      `toml:"session_idle_minutes"`
	RatePerSecond       float64  `toml:"rate_per_second"`
	Burst               int      `toml:"burst"`
}

// Auth contains token and password reset settings.
type Auth struct {
	JWTSecret       string `toml:"jwt_secret"`
	TokenTTLHours   int    `toml:"token_ttl_hours"`
	ResetTTLMinutes int    `toml:"reset_ttl_minutes"`
}

// Catalog contains video catalogue settings.
type Catalog struct {
	PageSize int    `toml:"page_size"`
	SeedFile string `toml:"seed_file"`
}

// Backup contains snapshot settings.
type Backup struct {
	BatchSize int `toml:"batch_size"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Sentry contains error reporting settings. An empty DSN disables reporting.
type Sentry struct {
	DSN         string `toml:"dsn"`
	Environment string `toml:"environment"`
}

// Notifications configures ntfy delivery of reset tokens and server alerts.
// An empty topic disables it.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Config encapsulates all configuration values for SignScribe.
//
// Configuration sections by subsystem:
//   - Paths: data, log and snapshot directories plus the API bind address
//   - Database: document store driver and DSN
//   - Capture: capture loop cadence and smoothing window
//   - Predict: model, label set and sequence window for the prediction service
//   - Auth: token signing and password reset lifetimes
//   - Catalog: video catalogue pagination and seed file
//   - Backup: restore batch size
//   - Logging: log format and level
//   - Sentry: error reporting
//   - Notifications: ntfy topic for reset tokens and server alerts
type Config struct {
	Paths    Paths    `toml:"paths"`
	Database Database `toml:"database"`
	Capture  Capture  `toml:"capture"`
	Predict  Predict  `toml:"predict"`
	Auth     Auth     `toml:"auth"`
	Catalog  Catalog  `toml:"catalog"`
	Backup   Backup   `toml:"backup"`
	Logging  Logging  `toml:"logging"`
	Sentry   Sentry   `toml:"sentry"`

	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/signscribe/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	loadDotEnv()

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

// loadDotEnv pulls a .env file from the working directory into the process
// environment. Variables already set win over the file.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	_ = godotenv.Load(".env")
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

	projectPath, err := filepath.Abs("signscribe.toml")
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

// EnsureDirectories creates the data, log and snapshot directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.BackupDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabaseDSN returns the DSN for the configured driver. SQLite defaults to a
// file inside the data directory.
func (c *Config) DatabaseDSN() string {
	if dsn := strings.TrimSpace(c.Database.DSN); dsn != "" {
		return dsn
	}
	if c.Database.Driver == DriverSQLite {
		return filepath.Join(c.Paths.DataDir, "signscribe.db")
	}
	return ""
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "signscribed.lock")
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
