package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validatePredict(); err != nil {
		return err
	}
	if err := c.validateAuth(); err != nil {
		return err
	}
	if c.Catalog.PageSize <= 0 {
		return errors.New("catalog.page_size must be positive")
	}
	if c.Backup.BatchSize <= 0 || c.Backup.BatchSize > 500 {
		return errors.New("backup.batch_size must be between 1 and 500")
	}
	if c.Notifications.RequestTimeoutSeconds < 0 {
		return errors.New("notifications.request_timeout_seconds must not be negative")
	}
	return c.validateLogging()
}

// ValidateServer applies the additional checks needed before the HTTP API starts.
func (c *Config) ValidateServer() error {
	if c.Auth.JWTSecret == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/signscribe/config.toml"
		}
		return fmt.Errorf("auth.jwt_secret is required. Set %s or edit %s (create with 'signscribe config init')", envJWTSecret, defaultPath)
	}
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("auth.jwt_secret must be at least 16 characters")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case DriverSQLite:
		return nil
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("database.dsn must be set when database.driver is postgres")
		}
		return nil
	default:
		return fmt.Errorf("database.driver: unsupported value %q", c.Database.Driver)
	}
}

func (c *Config) validateCapture() error {
	if c.Capture.IntervalMillis <= 0 {
		return errors.New("capture.interval_ms must be positive")
	}
	if c.Capture.HistorySize <= 0 {
		return errors.New("capture.history_size must be positive")
	}
	if c.Capture.ConfidenceThreshold < 0 || c.Capture.ConfidenceThreshold >= 1 {
		return errors.New("capture.confidence_threshold must be in [0, 1)")
	}
	if c.Capture.RequestTimeoutMs <= 0 {
		return errors.New("capture.request_timeout_ms must be positive")
	}
	if c.Capture.JPEGQuality < 1 || c.Capture.JPEGQuality > 100 {
		return errors.New("capture.jpeg_quality must be between 1 and 100")
	}
	if !strings.HasPrefix(c.Capture.Endpoint, "http://") && !strings.HasPrefix(c.Capture.Endpoint, "https://") {
		return fmt.Errorf("capture.endpoint must be an http(s) URL, got %q", c.Capture.Endpoint)
	}
	return nil
}

func (c *Config) validatePredict() error {
	if c.Predict.SequenceLength <= 0 {
		return errors.New("predict.sequence_length must be positive")
	}
	if c.Predict.FeatureGrid <= 0 {
		return errors.New("predict.feature_grid must be positive")
	}
	if c.Predict.PredictionThreshold < 0 || c.Predict.PredictionThreshold >= 1 {
		return errors.New("predict.prediction_threshold must be in [0, 1)")
	}
	if c.Predict.RatePerSecond < 0 {
		return errors.New("predict.rate_per_second must not be negative")
	}
	if c.Predict.Burst <= 0 {
		return errors.New("predict.burst must be positive")
	}
	seen := make(map[string]struct{}, len(c.Predict.Labels))
	for _, label := range c.Predict.Labels {
		if _, dup := seen[label]; dup {
			return fmt.Errorf("predict.labels: duplicate label %q", label)
		}
		seen[label] = struct{}{}
	}
	return nil
}

func (c *Config) validateAuth() error {
	if c.Auth.TokenTTLHours <= 0 {
		return errors.New("auth.token_ttl_hours must be positive")
	}
	if c.Auth.ResetTTLMinutes <= 0 {
		return errors.New("auth.reset_ttl_minutes must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
