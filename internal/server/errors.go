package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"

	"signscribe/internal/auth"
	"signscribe/internal/logging"
	"signscribe/internal/predict"
)

var errRateLimited = errors.New("rate limit exceeded")

// ErrorClassifier lets errors declare a kind for status mapping.
type ErrorClassifier interface {
	ErrorKind() string
}

// statusFor maps err to an HTTP status and the message shown to clients.
func statusFor(err error) (int, string) {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code, fmt.Sprint(httpErr.Message)
	}
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		switch classifier.ErrorKind() {
		case "validation":
			return http.StatusBadRequest, err.Error()
		case "not_found":
			return http.StatusNotFound, err.Error()
		}
	}
	switch {
	case errors.Is(err, auth.ErrEmailInUse):
		return http.StatusBadRequest, "Email already exists"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrNotAuthenticated):
		return http.StatusUnauthorized, "Invalid or expired token"
	case errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, predict.ErrModelUnavailable):
		return http.StatusServiceUnavailable, "Model not initialized"
	case errors.Is(err, predict.ErrInvalidImage):
		return http.StatusBadRequest, "Invalid image data format"
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests, "Rate limit exceeded"
	}
	return http.StatusInternalServerError, "Internal server error"
}

// handleError is the echo error handler. /predict errors keep the prediction
// body shape; everything else answers {"error": message}.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, message := statusFor(err)
	req := c.Request()
	isPredict := strings.HasPrefix(req.URL.Path, "/predict")
	if isPredict && code == http.StatusInternalServerError {
		message = "Prediction failed: " + err.Error()
	}

	logger := logging.WithContext(req.Context(), s.logger)
	if code >= http.StatusInternalServerError {
		logging.ErrorWithContext(logger, "request failed", "request_failed",
			logging.String("method", req.Method),
			logging.String("path", req.URL.Path),
			logging.Int("status", code),
			logging.Error(err),
		)
		s.report(c, err)
	} else {
		logger.Debug("request rejected",
			logging.String("path", req.URL.Path),
			logging.Int("status", code),
			logging.Error(err),
		)
	}

	if req.Method == http.MethodHead {
		err = c.NoContent(code)
	} else if isPredict {
		err = c.JSON(code, predict.ErrorResult(message))
	} else {
		err = c.JSON(code, map[string]string{"error": message})
	}
	if err != nil {
		logger.Debug("write error response failed", logging.Error(err))
	}
}

func (s *Server) report(c echo.Context, err error) {
	route := c.Request().Method + " " + c.Request().URL.Path
	s.notify(c.Request().Context(), "server_error", func(ctx context.Context, n Notifier) error {
		return n.NotifyServerError(ctx, err, route)
	})
	if !s.sentry {
		return
	}
	hub := sentry.CurrentHub().Clone()
	hub.Scope().SetRequest(c.Request())
	if id, ok := logging.RequestIDFromContext(c.Request().Context()); ok {
		hub.Scope().SetTag(logging.FieldRequestID, id)
	}
	hub.CaptureException(err)
}

// notifyTimeout bounds each background notification.
const notifyTimeout = 15 * time.Second

// notify runs fn against the notifier in the background so a slow ntfy
// server never delays a response.
func (s *Server) notify(ctx context.Context, event string, fn func(context.Context, Notifier) error) {
	if s.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()
		ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()
		if err := fn(ctx, s.notifier); err != nil {
			logging.WarnWithContext(s.logger, "notification failed", "notification_failed",
				logging.String("notification", event),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
				logging.String(logging.FieldImpact, "operators were not alerted"),
			)
		}
	}()
}
