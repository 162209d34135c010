package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"

	"signscribe/internal/auth"
	"signscribe/internal/catalog"
	"signscribe/internal/config"
	"signscribe/internal/docstore"
	"signscribe/internal/logging"
	"signscribe/internal/notifications"
	"signscribe/internal/predict"
	"signscribe/internal/preflight"
)

func initSentry(cfg *config.Config, logger *slog.Logger) bool {
	if cfg.Sentry.DSN == "" {
		return false
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.Sentry.DSN,
		Environment: cfg.Sentry.Environment,
		Release:     "signscribed",
	}); err != nil {
		logging.WarnWithContext(logger, "sentry init failed", "sentry_init_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check sentry.dsn"),
			logging.String(logging.FieldImpact, "server errors are only logged locally"),
		)
		return false
	}
	return true
}

// buildPredictService loads the ONNX model when one is configured. Without a
// model the service still starts and /predict answers 503.
func buildPredictService(cfg *config.Config, logger *slog.Logger) (*predict.Service, func(), error) {
	extractor := predict.GridExtractor{Grid: cfg.Predict.FeatureGrid}
	closeFn := func() {}

	var classifier predict.Classifier
	if cfg.Predict.ModelPath != "" {
		model, err := predict.NewONNXClassifier(predict.ONNXOptions{
			ModelPath:      cfg.Predict.ModelPath,
			LibraryPath:    cfg.Predict.ONNXLibrary,
			InputName:      cfg.Predict.InputName,
			OutputName:     cfg.Predict.OutputName,
			SequenceLength: cfg.Predict.SequenceLength,
			FeatureSize:    extractor.Size(),
			Classes:        len(cfg.Predict.Labels),
		})
		if err != nil {
			logging.WarnWithContext(logger, "model failed to load", "model_load_failed",
				logging.String("model_path", cfg.Predict.ModelPath),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check predict.model_path and predict.onnx_library"),
				logging.String(logging.FieldImpact, "prediction requests answer 503"),
			)
		} else {
			classifier = model
			closeFn = func() { _ = model.Close() }
		}
	}

	svc, err := predict.NewService(extractor, classifier, predict.Options{
		Labels:         cfg.Predict.Labels,
		SequenceLength: cfg.Predict.SequenceLength,
		Threshold:      cfg.Predict.PredictionThreshold,
		IdleTimeout:    time.Duration(cfg.Predict.SessionIdleMinutes) * time.Minute,
		RatePerSecond:  cfg.Predict.RatePerSecond,
		Burst:          cfg.Predict.Burst,
	}, logger)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return svc, closeFn, nil
}

// buildAuthProvider publishes reset tokens to ntfy when a topic is
// configured and logs them otherwise.
func buildAuthProvider(cfg *config.Config, store *docstore.Store, notifier notifications.Service, logger *slog.Logger) (*auth.LocalProvider, error) {
	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	var mailer auth.Mailer = auth.LogMailer{Logger: logger}
	if notifications.Enabled(cfg) {
		mailer = notifier
	}
	return auth.NewLocalProvider(store, tokens, auth.LocalOptions{
		ResetTTL: time.Duration(cfg.Auth.ResetTTLMinutes) * time.Minute,
		Mailer:   mailer,
	}, logger)
}

func buildCatalog(cfg *config.Config, store *docstore.Store, logger *slog.Logger) *catalog.Catalog {
	return catalog.New(store, cfg.Catalog.PageSize, logger)
}

// seedCatalog fills an empty videos collection from catalog.seed_file, or
// from the built-in lessons when no file is configured.
func seedCatalog(ctx context.Context, cfg *config.Config, store *docstore.Store, logger *slog.Logger) error {
	var r io.Reader = catalog.DefaultSeed()
	source := "built-in"
	if cfg.Catalog.SeedFile != "" {
		f, err := os.Open(cfg.Catalog.SeedFile)
		if err != nil {
			return fmt.Errorf("open seed file: %w", err)
		}
		defer f.Close()
		r = f
		source = cfg.Catalog.SeedFile
	}
	n, err := catalog.SeedIfEmpty(ctx, store, r)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Info("catalogue seeded",
			logging.String(logging.FieldEventType, "catalog_seeded"),
			logging.String("source", source),
			logging.Int("videos", n),
		)
	}
	return nil
}

// logPreflight runs the server checks and warns about each failure without
// stopping startup. It returns the number of failed checks.
func logPreflight(ctx context.Context, cfg *config.Config, logger *slog.Logger) int {
	failed := preflight.Failed(preflight.RunServer(ctx, cfg))
	for _, result := range failed {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run signscribe check --server"),
			logging.String(logging.FieldImpact, "dependent endpoints may return errors"),
		)
	}
	if len(failed) == 0 {
		logger.Debug("preflight checks passed")
	}
	return len(failed)
}
