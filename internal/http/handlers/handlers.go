package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/tadasupo/backend/internal/apperr"
	"github.com/tadasupo/backend/internal/http/middleware"
	"github.com/tadasupo/backend/internal/models"
	"github.com/tadasupo/backend/internal/service"
)

type Handler struct {
	Service   *service.CaseService
	Validator *validator.Validate
	Logger    zerolog.Logger
	// Ping checks the row store backend; nil means always healthy.
	Ping           func(ctx context.Context) error
	MaxUploadBytes int64
}

// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} ErrorResponse
// @Router /healthz [get]
func (h *Handler) Healthz(c *gin.Context) {
	if h.Ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := h.Ping(ctx); err != nil {
			writeError(c, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Row store unavailable", err.Error())
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// fail renders a service error with its taxonomy code.
func (h *Handler) fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		h.Logger.Error().Err(err).
			Str("request_id", c.GetString(middleware.RequestIDHeader)).
			Str("path", c.FullPath()).
			Msg("request failed")
	}
	writeError(c, status, string(kind), apperr.Message(err), nil)
}

// bind decodes and validates a JSON body. It writes the error response and
// returns false on failure.
func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, http.StatusBadRequest, string(apperr.InvalidArgument), "Invalid payload", err.Error())
		return false
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, string(apperr.InvalidArgument), "Validation failed", err.Error())
		return false
	}
	return true
}

func actorOf(c *gin.Context) models.Actor {
	actor, _ := middleware.ActorFrom(c)
	return actor
}
