package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/fittrack/internal/domain/auth"
	"github.com/yanqian/fittrack/internal/domain/exercise"
	"github.com/yanqian/fittrack/internal/infra/config"
	"github.com/yanqian/fittrack/pkg/metrics"
)

// Handler wires the HTTP transport to domain services.
type Handler struct {
	authSvc     auth.Service
	exerciseSvc exercise.Service
	cookies     *cookieJar
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(cfg *config.Config, authSvc auth.Service, exerciseSvc exercise.Service, m *metrics.Metrics, logger *slog.Logger) *Handler {
	return &Handler{
		authSvc:     authSvc,
		exerciseSvc: exerciseSvc,
		cookies:     newCookieJar(cfg.App, cfg.Auth.Cookie),
		metrics:     m,
		logger:      logger.With("component", "http.handler"),
	}
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	respond(c, http.StatusOK, "OK", nil)
}

func respond(c *gin.Context, status int, message string, data any) {
	body := gin.H{"success": true, "message": message}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

func invalidBody(err error) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err)
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
