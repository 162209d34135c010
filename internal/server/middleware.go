package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"signscribe/internal/auth"
	"signscribe/internal/logging"
)

const (
	requestIDHeader = "X-Request-ID"
	userContextKey  = "signscribe.user"
)

// requestLogger tags each request with a correlation id and logs its outcome.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		id := strings.TrimSpace(req.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Response().Header().Set(requestIDHeader, id)
		ctx := logging.WithRequestID(req.Context(), id)
		c.SetRequest(req.WithContext(ctx))

		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		logging.WithContext(c.Request().Context(), s.logger).Debug("request handled",
			logging.String("method", req.Method),
			logging.String("path", req.URL.Path),
			logging.Int("status", c.Response().Status),
			logging.Duration("duration", time.Since(start)),
		)
		return nil
	}
}

// withCORS echoes the caller's origin so browser clients can send credentials.
func withCORS(c echo.Context) {
	h := c.Response().Header()
	origin := c.Request().Header.Get(echo.HeaderOrigin)
	if origin == "" {
		origin = "*"
	}
	h.Set(echo.HeaderAccessControlAllowOrigin, origin)
	h.Set(echo.HeaderAccessControlAllowCredentials, "true")
	h.Add(echo.HeaderVary, echo.HeaderOrigin)
}

func (s *Server) cors(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		withCORS(c)
		return next(c)
	}
}

// preflight answers OPTIONS requests for any route.
func preflight(c echo.Context) error {
	withCORS(c)
	h := c.Response().Header()
	h.Set(echo.HeaderAccessControlAllowMethods, "POST, GET, PUT, OPTIONS")
	allowHeaders := c.Request().Header.Get(echo.HeaderAccessControlRequestHeaders)
	if allowHeaders == "" {
		allowHeaders = "*"
	}
	h.Set(echo.HeaderAccessControlAllowHeaders, allowHeaders)
	return c.NoContent(http.StatusOK)
}

// requireUser resolves the bearer token and stores the user on the context.
func (s *Server) requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Token is missing")
		}
		user, err := s.auth.Verify(c.Request().Context(), token)
		if err != nil {
			return err
		}
		c.Set(userContextKey, user)
		c.SetRequest(c.Request().WithContext(logging.WithUserID(c.Request().Context(), user.ID)))
		return next(c)
	}
}

func currentUser(c echo.Context) auth.User {
	user, _ := c.Get(userContextKey).(auth.User)
	return user
}
