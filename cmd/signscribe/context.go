package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"signscribe/internal/auth"
	"signscribe/internal/config"
	"signscribe/internal/docstore"
	"signscribe/internal/logging"
)

const sessionFileName = "session.json"

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger

	store *docstore.Store
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// log returns a console logger on stderr so stdout stays clean for output.
func (c *commandContext) log() *slog.Logger {
	c.loggerOnce.Do(func() {
		level := "warn"
		if cfg, err := c.ensureConfig(); err == nil && cfg.Logging.Level == "debug" {
			level = "debug"
		}
		if c.verbose != nil && *c.verbose {
			level = "debug"
		}
		logger, err := logging.New(logging.Options{Level: level, Format: "console", OutputPaths: []string{"stderr"}})
		if err != nil {
			logger = logging.NewNop()
		}
		c.logger = logger
	})
	return c.logger
}

// openStore opens the configured document store once per invocation.
func (c *commandContext) openStore(ctx context.Context) (*docstore.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := docstore.Open(ctx, cfg.Database.Driver, cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}
	c.store = store
	return store, nil
}

func (c *commandContext) localProvider(ctx context.Context) (*auth.LocalProvider, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("auth.jwt_secret is not set; add it to the config or export SIGNSCRIBE_JWT_SECRET")
	}
	store, err := c.openStore(ctx)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	return auth.NewLocalProvider(store, tokens, auth.LocalOptions{
		ResetTTL: time.Duration(cfg.Auth.ResetTTLMinutes) * time.Minute,
		Mailer:   auth.LogMailer{Logger: c.log()},
	}, c.log())
}

func (c *commandContext) sessionFile() (auth.SessionFile, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return auth.SessionFile{}, err
	}
	return auth.SessionFile{Path: filepath.Join(cfg.Paths.DataDir, sessionFileName)}, nil
}

func (c *commandContext) close() error {
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
