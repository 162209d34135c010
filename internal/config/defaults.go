package config

const (
	// DriverSQLite stores documents in an embedded SQLite file.
	DriverSQLite = "sqlite"
	// DriverPostgres stores documents in a PostgreSQL database.
	DriverPostgres = "postgres"
)

const (
	defaultDataDir               = "~/.local/share/signscribe"
	defaultLogDir                = "~/.local/share/signscribe/logs"
	defaultBackupDir             = "~/.local/share/signscribe/backups"
	defaultAPIBind               = "127.0.0.1:8000"
	defaultCaptureEndpoint       = "http://127.0.0.1:8000/predict"
	defaultCaptureIntervalMillis = 150
	defaultCaptureHistorySize    = 10
	defaultCaptureThreshold      = 0.6
	defaultCaptureRequestTimeout = 2000
	defaultCaptureDevice         = "/dev/video0"
	defaultCaptureJPEGQuality    = 80
	defaultPredictInputName      = "input"
	defaultPredictOutputName     = "output"
	defaultPredictSequenceLength = 30
	defaultPredictFeatureGrid    = 16
	defaultPredictThreshold      = 0.6
	defaultPredictSessionIdle    = 10
	defaultPredictRatePerSecond  = 20
	defaultPredictBurst          = 10
	defaultAuthTokenTTLHours     = 720
	defaultAuthResetTTLMinutes   = 60
	defaultCatalogPageSize       = 6
	defaultBackupBatchSize       = 500
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultSentryEnvironment     = "production"
	defaultNotifyTimeoutSeconds  = 10
	envJWTSecret                 = "SIGNSCRIBE_JWT_SECRET"
	envDatabaseDSN               = "SIGNSCRIBE_DATABASE_DSN"
	envPredictURL                = "SIGNSCRIBE_PREDICT_URL"
	envSentryDSN                 = "SIGNSCRIBE_SENTRY_DSN"
	envONNXLibrary               = "ONNXRUNTIME_SHARED_LIBRARY_PATH"
)

// DefaultLabels is the label set of the bundled sign model, indexed by class.
var DefaultLabels = []string{"Alright", "Hello", "Indian", "Namaste", "Sign"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	labels := make([]string, len(DefaultLabels))
	copy(labels, DefaultLabels)
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			BackupDir: defaultBackupDir,
			APIBind:   defaultAPIBind,
		},
		Database: Database{
			Driver: DriverSQLite,
		},
		Capture: Capture{
			Endpoint:            defaultCaptureEndpoint,
			IntervalMillis:      defaultCaptureIntervalMillis,
			HistorySize:         defaultCaptureHistorySize,
			ConfidenceThreshold: defaultCaptureThreshold,
			RequestTimeoutMs:    defaultCaptureRequestTimeout,
			Device:              defaultCaptureDevice,
			JPEGQuality:         defaultCaptureJPEGQuality,
		},
		Predict: Predict{
			InputName:           defaultPredictInputName,
			OutputName:          defaultPredictOutputName,
			Labels:              labels,
			SequenceLength:      defaultPredictSequenceLength,
			FeatureGrid:         defaultPredictFeatureGrid,
			PredictionThreshold: defaultPredictThreshold,
			SessionIdleMinutes:  defaultPredictSessionIdle,
			RatePerSecond:       defaultPredictRatePerSecond,
			Burst:               defaultPredictBurst,
		},
		Auth: Auth{
			TokenTTLHours:   defaultAuthTokenTTLHours,
			ResetTTLMinutes: defaultAuthResetTTLMinutes,
		},
		Catalog: Catalog{
			PageSize: defaultCatalogPageSize,
		},
		Backup: Backup{
			BatchSize: defaultBackupBatchSize,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Sentry: Sentry{
			Environment: defaultSentryEnvironment,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeoutSeconds,
		},
	}
}
