package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"signscribe/internal/auth"
	"signscribe/internal/catalog"
	"signscribe/internal/logging"
	"signscribe/internal/predict"
)

// ErrAlreadyRunning is returned when another daemon holds the lock.
var ErrAlreadyRunning = errors.New("signscribed is already running")

// Predictor is the prediction service behind /predict.
type Predictor interface {
	Ready() bool
	Allow(sessionID string) bool
	Predict(ctx context.Context, sessionID, dataURL string) (predict.Result, error)
}

// Notifier receives server lifecycle events and unexpected errors.
type Notifier interface {
	NotifyServerStarted(ctx context.Context, bind string, modelLoaded bool) error
	NotifyServerError(ctx context.Context, err error, route string) error
}

// Options wires the server's collaborators.
type Options struct {
	Bind     string
	LockPath string
	Predict  Predictor
	Auth     auth.Provider
	Catalog  *catalog.Catalog
	// Sentry enables reporting of 5xx errors to the initialised Sentry hub.
	Sentry bool
	// Notifier is optional.
	Notifier Notifier
	Logger   *slog.Logger
}

// Server is the SignScribe HTTP API.
type Server struct {
	bind     string
	lockPath string
	predict  Predictor
	auth     auth.Provider
	catalog  *catalog.Catalog
	sentry   bool
	notifier Notifier
	logger   *slog.Logger

	echo *echo.Echo
	// notifications tracks in-flight notifier calls so Run can drain them.
	notifications sync.WaitGroup
	lock          *flock.Flock

	mu       sync.Mutex
	listener net.Listener
}

// New builds the server and registers its routes.
func New(opts Options) (*Server, error) {
	if opts.Predict == nil {
		return nil, errors.New("prediction service is required")
	}
	if opts.Auth == nil {
		return nil, errors.New("auth provider is required")
	}
	if opts.Catalog == nil {
		return nil, errors.New("catalog is required")
	}
	s := &Server{
		bind:     strings.TrimSpace(opts.Bind),
		lockPath: opts.LockPath,
		predict:  opts.Predict,
		auth:     opts.Auth,
		catalog:  opts.Catalog,
		sentry:   opts.Sentry,
		notifier: opts.Notifier,
		logger:   logging.NewComponentLogger(opts.Logger, "api"),
	}
	if opts.LockPath != "" {
		s.lock = flock.New(opts.LockPath)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(s.requestLogger)
	e.Use(middleware.BodyLimit("8M"))
	e.Use(s.cors)

	e.GET("/", s.handleRoot)
	e.POST("/predict", s.handlePredict)

	api := e.Group("/api")
	api.POST("/auth/signup", s.handleSignUp)
	api.POST("/auth/login", s.handleLogin)
	api.POST("/auth/reset", s.handleReset)
	api.POST("/auth/reset/confirm", s.handleConfirmReset)
	api.GET("/auth/user", s.handleCurrentUser, s.requireUser)
	api.GET("/user/profile", s.handleCurrentUser, s.requireUser)
	api.PUT("/user/profile", s.handleUpdateProfile, s.requireUser)
	api.GET("/videos", s.handleVideos)
	api.GET("/videos/categories", s.handleCategories)

	paths := make(map[string]struct{})
	for _, route := range e.Routes() {
		paths[route.Path] = struct{}{}
	}
	for path := range paths {
		e.OPTIONS(path, preflight)
	}

	s.echo = e
	return s, nil
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Addr returns the bound address once Run is listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run takes the daemon lock, serves until ctx is cancelled and then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s.lock != nil {
		ok, err := s.lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, s.lockPath)
		}
		defer func() {
			if err := s.lock.Unlock(); err != nil {
				logging.WarnWithContext(s.logger, "failed to release daemon lock", "lock_release_failed",
					logging.String("lock", s.lockPath),
					logging.Error(err),
					logging.String(logging.FieldImpact, "next start may report the daemon as running"),
				)
			}
		}()
	}

	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	srv := &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_listening"),
		logging.String("address", listener.Addr().String()),
		logging.Bool("model_loaded", s.predict.Ready()),
	)
	s.notify(ctx, "server_started", func(ctx context.Context, n Notifier) error {
		return n.NotifyServerStarted(ctx, listener.Addr().String(), s.predict.Ready())
	})

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	s.notifications.Wait()
	if err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	s.logger.Info("api server stopped", logging.String(logging.FieldEventType, "api_stopped"))
	return nil
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"message":      "Sign Language Translator API is running.",
		"model_loaded": s.predict.Ready(),
	})
}
