package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"signscribe/internal/config"
	"signscribe/internal/docstore"
	"signscribe/internal/logging"
	"signscribe/internal/notifications"
	"signscribe/internal/server"
)

const tokenPruneInterval = time.Hour

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg, "signscribed.log")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	sentryEnabled := initSentry(cfg, logger)
	if sentryEnabled {
		defer sentry.Flush(2 * time.Second)
	}

	logPreflight(ctx, cfg, logger)

	store, err := docstore.Open(ctx, cfg.Database.Driver, cfg.DatabaseDSN())
	if err != nil {
		logging.ErrorWithContext(logger, "open document store", "store_open_failed", logging.Error(err))
		return
	}
	defer store.Close()

	if err := seedCatalog(ctx, cfg, store, logger); err != nil {
		logging.WarnWithContext(logger, "catalogue seed failed", "catalog_seed_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check catalog.seed_file"),
			logging.String(logging.FieldImpact, "learning page may be empty"),
		)
	}

	predictor, closeModel, err := buildPredictService(cfg, logger)
	if err != nil {
		logging.ErrorWithContext(logger, "build prediction service", "predict_init_failed", logging.Error(err))
		return
	}
	defer closeModel()
	go predictor.Run(ctx)

	notifier := notifications.NewService(cfg)
	provider, err := buildAuthProvider(cfg, store, notifier, logger)
	if err != nil {
		logging.ErrorWithContext(logger, "build auth provider", "auth_init_failed", logging.Error(err))
		return
	}
	go provider.RunPruner(ctx, tokenPruneInterval)

	srv, err := server.New(server.Options{
		Bind:     cfg.Paths.APIBind,
		LockPath: cfg.LockPath(),
		Predict:  predictor,
		Auth:     provider,
		Catalog:  buildCatalog(cfg, store, logger),
		Sentry:   sentryEnabled,
		Notifier: notifier,
		Logger:   logger,
	})
	if err != nil {
		logging.ErrorWithContext(logger, "build api server", "server_init_failed", logging.Error(err))
		return
	}
	if err := srv.Run(ctx); err != nil {
		logging.ErrorWithContext(logger, "api server stopped with error", "server_failed", logging.Error(err))
		return
	}
	logger.Info("signscribed shutting down")
}
