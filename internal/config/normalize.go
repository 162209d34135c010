package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDatabase()
	if err := c.normalizeCapture(); err != nil {
		return err
	}
	if err := c.normalizePredict(); err != nil {
		return err
	}
	c.normalizeAuth()
	if err := c.normalizeCatalog(); err != nil {
		return err
	}
	if c.Backup.BatchSize == 0 {
		c.Backup.BatchSize = defaultBackupBatchSize
	}
	c.normalizeLogging()
	c.normalizeSentry()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds == 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNotifyTimeoutSeconds
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.BackupDir) == "" {
		c.Paths.BackupDir = defaultBackupDir
	}
	if c.Paths.BackupDir, err = expandPath(c.Paths.BackupDir); err != nil {
		return fmt.Errorf("paths.backup_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeDatabase() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Driver == "postgresql" {
		c.Database.Driver = DriverPostgres
	}
	if value, ok := os.LookupEnv(envDatabaseDSN); ok && strings.TrimSpace(value) != "" {
		c.Database.DSN = strings.TrimSpace(value)
	}
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
}

func (c *Config) normalizeCapture() error {
	if value, ok := os.LookupEnv(envPredictURL); ok && strings.TrimSpace(value) != "" {
		c.Capture.Endpoint = value
	}
	c.Capture.Endpoint = strings.TrimSpace(c.Capture.Endpoint)
	if c.Capture.Endpoint == "" {
		c.Capture.Endpoint = defaultCaptureEndpoint
	}
	if c.Capture.IntervalMillis == 0 {
		c.Capture.IntervalMillis = defaultCaptureIntervalMillis
	}
	if c.Capture.HistorySize == 0 {
		c.Capture.HistorySize = defaultCaptureHistorySize
	}
	if c.Capture.RequestTimeoutMs == 0 {
		c.Capture.RequestTimeoutMs = defaultCaptureRequestTimeout
	}
	if c.Capture.JPEGQuality == 0 {
		c.Capture.JPEGQuality = defaultCaptureJPEGQuality
	}
	c.Capture.Device = strings.TrimSpace(c.Capture.Device)
	if strings.TrimSpace(c.Capture.FrameDir) != "" {
		var err error
		if c.Capture.FrameDir, err = expandPath(c.Capture.FrameDir); err != nil {
			return fmt.Errorf("capture.frame_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizePredict() error {
	var err error
	if strings.TrimSpace(c.Predict.ModelPath) != "" {
		if c.Predict.ModelPath, err = expandPath(c.Predict.ModelPath); err != nil {
			return fmt.Errorf("predict.model_path: %w", err)
		}
	}
	if c.Predict.ONNXLibrary == "" {
		if value, ok := os.LookupEnv(envONNXLibrary); ok {
			c.Predict.ONNXLibrary = strings.TrimSpace(value)
		}
	}
	c.Predict.InputName = strings.TrimSpace(c.Predict.InputName)
	if c.Predict.InputName == "" {
		c.Predict.InputName = defaultPredictInputName
	}
	c.Predict.OutputName = strings.TrimSpace(c.Predict.OutputName)
	if c.Predict.OutputName == "" {
		c.Predict.OutputName = defaultPredictOutputName
	}
	labels := make([]string, 0, len(c.Predict.Labels))
	for _, label := range c.Predict.Labels {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			labels = append(labels, trimmed)
		}
	}
	if len(labels) == 0 {
		labels = append(labels, DefaultLabels...)
	}
	c.Predict.Labels = labels
	if c.Predict.SequenceLength == 0 {
		c.Predict.SequenceLength = defaultPredictSequenceLength
	}
	if c.Predict.FeatureGrid == 0 {
		c.Predict.FeatureGrid = defaultPredictFeatureGrid
	}
	if c.Predict.SessionIdleMinutes == 0 {
		c.Predict.SessionIdleMinutes = defaultPredictSessionIdle
	}
	if c.Predict.RatePerSecond == 0 {
		c.Predict.RatePerSecond = defaultPredictRatePerSecond
	}
	if c.Predict.Burst == 0 {
		c.Predict.Burst = defaultPredictBurst
	}
	return nil
}

func (c *Config) normalizeAuth() {
	if value, ok := os.LookupEnv(envJWTSecret); ok && strings.TrimSpace(value) != "" {
		c.Auth.JWTSecret = value
	}
	c.Auth.JWTSecret = strings.TrimSpace(c.Auth.JWTSecret)
	if c.Auth.TokenTTLHours == 0 {
		c.Auth.TokenTTLHours = defaultAuthTokenTTLHours
	}
	if c.Auth.ResetTTLMinutes == 0 {
		c.Auth.ResetTTLMinutes = defaultAuthResetTTLMinutes
	}
}

func (c *Config) normalizeCatalog() error {
	if c.Catalog.PageSize == 0 {
		c.Catalog.PageSize = defaultCatalogPageSize
	}
	if strings.TrimSpace(c.Catalog.SeedFile) != "" {
		var err error
		if c.Catalog.SeedFile, err = expandPath(c.Catalog.SeedFile); err != nil {
			return fmt.Errorf("catalog.seed_file: %w", err)
		}
	}
	return nil
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
}

func (c *Config) normalizeSentry() {
	if c.Sentry.DSN == "" {
		if value, ok := os.LookupEnv(envSentryDSN); ok {
			c.Sentry.DSN = value
		}
	}
	c.Sentry.DSN = strings.TrimSpace(c.Sentry.DSN)
	c.Sentry.Environment = strings.TrimSpace(c.Sentry.Environment)
	if c.Sentry.Environment == "" {
		c.Sentry.Environment = defaultSentryEnvironment
	}
}
