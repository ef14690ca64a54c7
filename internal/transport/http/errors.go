package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/squadchat/internal/core"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// statusFor maps a core error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondCoreError writes err as JSON. Internal failures get a generic message.
func respondCoreError(c *gin.Context, logger *zerolog.Logger, op string, groupID, userID int64, err error) {
	ce := core.AsCoreError(err)
	status := statusFor(ce)

	ev := logger.Debug()
	if status >= http.StatusInternalServerError {
		ev = logger.Error()
	}
	ev.Err(err).
		Str("op", op).
		Int64("group_id", groupID).
		Int64("user_id", userID).
		Int("status", status).
		Msg("request failed")

	c.JSON(status, ErrorResponse{Error: ce.Message, Code: ce.Code})
}

func respondInternal(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}
