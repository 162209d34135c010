package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"signscribe/internal/auth"
	"signscribe/internal/catalog"
	"signscribe/internal/logging"
	"signscribe/internal/predict"
)

type userPayload struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	PhotoURL string `json:"photo_url,omitempty"`
}

func toUserPayload(u auth.User) userPayload {
	return userPayload{ID: u.ID, Name: u.Name, Email: u.Email, PhotoURL: u.PhotoURL}
}

type identityResponse struct {
	User  userPayload `json:"user"`
	Token string      `json:"token"`
}

type userResponse struct {
	User userPayload `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func badRequest(format string, args ...any) error {
	return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf(format, args...))
}

func (s *Server) handlePredict(c echo.Context) error {
	sessionID := strings.TrimSpace(c.Request().Header.Get(predict.SessionHeader))
	if sessionID == "" {
		sessionID = predict.DefaultSessionID
	}
	c.Response().Header().Set(predict.SessionHeader, sessionID)
	ctx := logging.WithSessionID(c.Request().Context(), sessionID)
	c.SetRequest(c.Request().WithContext(ctx))

	if !s.predict.Ready() {
		return predict.ErrModelUnavailable
	}
	if !s.predict.Allow(sessionID) {
		return errRateLimited
	}
	var req predict.Request
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: %v", predict.ErrInvalidImage, err)
	}
	result, err := s.predict.Predict(ctx, sessionID, req.Image)
	if err != nil {
		return err
	}
	if label := result.Label(); label != "" {
		logging.WithContext(ctx, s.logger).Info("sign predicted",
			logging.String(logging.FieldEventType, "sign_predicted"),
			logging.String("label", label),
			logging.Float64("confidence", result.Confidence),
		)
	}
	return c.JSON(http.StatusOK, result)
}

type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleSignUp(c echo.Context) error {
	var req signUpRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	identity, err := s.auth.SignUp(c.Request().Context(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, identityResponse{User: toUserPayload(identity.User), Token: identity.Token})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	identity, err := s.auth.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, identityResponse{User: toUserPayload(identity.User), Token: identity.Token})
}

type resetRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleReset(c echo.Context) error {
	var req resetRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if err := s.auth.ResetPassword(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "If the account exists, a reset link has been sent"})
}

type confirmResetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (s *Server) handleConfirmReset(c echo.Context) error {
	var req confirmResetRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if err := s.auth.ConfirmReset(c.Request().Context(), req.Token, req.Password); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Password updated"})
}

func (s *Server) handleCurrentUser(c echo.Context) error {
	return c.JSON(http.StatusOK, userResponse{User: toUserPayload(currentUser(c))})
}

type profileRequest struct {
	Name     *string `json:"name"`
	PhotoURL *string `json:"photo_url"`
}

func (s *Server) handleUpdateProfile(c echo.Context) error {
	var req profileRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	user, err := s.auth.UpdateProfile(c.Request().Context(), currentUser(c).ID, auth.ProfileUpdate{
		Name:     req.Name,
		PhotoURL: req.PhotoURL,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{User: toUserPayload(user)})
}

func (s *Server) handleVideos(c echo.Context) error {
	q := catalog.Query{
		Search:   c.QueryParam("search"),
		Category: c.QueryParam("category"),
	}
	var err error
	if q.Page, err = intParam(c, "page"); err != nil {
		return err
	}
	if q.PageSize, err = intParam(c, "page_size"); err != nil {
		return err
	}
	page, err := s.catalog.List(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (s *Server) handleCategories(c echo.Context) error {
	categories, err := s.catalog.Categories(c.Request().Context())
	if err != nil {
		return err
	}
	if categories == nil {
		categories = []string{}
	}
	return c.JSON(http.StatusOK, map[string][]string{"categories": categories})
}

func intParam(c echo.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, badRequest("%s must be a non-negative integer", name)
	}
	return v, nil
}
