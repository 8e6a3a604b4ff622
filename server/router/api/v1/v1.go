package v1

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v5"
	"github.com/lithammer/shortuuid/v4"

	"github.com/procura/procura/internal/apperr"
	"github.com/procura/procura/internal/profile"
	"github.com/procura/procura/server/agent"
	"github.com/procura/procura/server/auth"
)

// APIV1Service serves the JSON API under /api/v1.
type APIV1Service struct {
	Profile *profile.Profile
	Agent   *agent.Agent
	Auth    *auth.Authenticator
}

func NewAPIV1Service(profile *profile.Profile, agent *agent.Agent, authenticator *auth.Authenticator) *APIV1Service {
	return &APIV1Service{
		Profile: profile,
		Agent:   agent,
		Auth:    authenticator,
	}
}

// RegisterRoutes mounts every v1 route on e.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", func(c *echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": s.Profile.Version})
	})
	s.registerAIChatRoutes(e)
	s.registerCommerceRoutes(e)
}

type errorBody struct {
	Code          apperr.Kind        `json:"code"`
	Message       string             `json:"message"`
	CorrelationID string             `json:"correlationId"`
	Categories    []string           `json:"categories,omitempty"`
	Candidates    []apperr.Candidate `json:"candidates,omitempty"`
}

// fail writes the error response for err. Every response gets a correlation
// id that is also logged; internal details never reach the client.
func (s *APIV1Service) fail(c *echo.Context, userID string, err error) error {
	body := errorBody{
		Code:          apperr.KindInternal,
		Message:       "internal error",
		CorrelationID: shortuuid.New(),
	}
	status := apperr.HTTPStatus(err)
	if appErr, ok := apperr.As(err); ok && appErr.Kind != apperr.KindInternal {
		body.Code = appErr.Kind
		body.Message = appErr.Error()
		body.Categories = appErr.Categories
		body.Candidates = appErr.Candidates
	}

	attrs := []any{
		"method", c.Request().Method,
		"route", c.Request().URL.Path,
		"user", userID,
		"correlationId", body.CorrelationID,
		"code", body.Code,
	}
	if status >= http.StatusInternalServerError {
		slog.Error("api request failed", append(attrs, "error", err)...)
	} else {
		slog.Warn("api request rejected", append(attrs, "error", body.Message)...)
	}
	return c.JSON(status, map[string]errorBody{"error": body})
}

func (s *APIV1Service) unauthorized(c *echo.Context) error {
	correlationID := shortuuid.New()
	slog.Warn("api request unauthenticated",
		"method", c.Request().Method, "route", c.Request().URL.Path, "correlationId", correlationID)
	return c.JSON(http.StatusUnauthorized, map[string]errorBody{"error": {
		Code:          "UNAUTHENTICATED",
		Message:       "unauthenticated",
		CorrelationID: correlationID,
	}})
}

// currentUser returns the caller's user id, "" for anonymous callers. ok is
// false when an invalid token was sent and the 401 has been written.
func (s *APIV1Service) currentUser(c *echo.Context) (userID string, ok bool, err error) {
	userID, authErr := s.Auth.Authenticate(c.Request())
	if authErr != nil {
		return "", false, s.unauthorized(c)
	}
	return userID, true, nil
}

// requireUser is currentUser for routes that need an identified caller.
func (s *APIV1Service) requireUser(c *echo.Context) (userID string, ok bool, err error) {
	userID, ok, err = s.currentUser(c)
	if !ok {
		return "", false, err
	}
	if userID == "" {
		return "", false, s.unauthorized(c)
	}
	return userID, true, nil
}

func queryInt(c *echo.Context, name string) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return n
}
