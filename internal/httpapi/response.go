package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"listenlink/internal/audit"
	"listenlink/internal/chat"
	"listenlink/internal/history"
	"listenlink/internal/invitations"
	"listenlink/internal/users"
	"listenlink/pkg/logger"
)

// envelope is the standard API response wrapper: { "data": ..., "error": ... }.
type envelope struct {
	Data  any    `json:"data"`
	Error string `json:"error,omitempty"`
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Data: data})
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, envelope{Error: msg})
}

// failErr maps service errors to status codes. Unknown errors are logged and
// hidden behind a 500.
func failErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, invitations.ErrNotFound), errors.Is(err, users.ErrNotFound):
		fail(c, http.StatusNotFound, "not found")
	case errors.Is(err, invitations.ErrForbidden):
		fail(c, http.StatusForbidden, "forbidden")
	case errors.Is(err, invitations.ErrConflict):
		fail(c, http.StatusConflict, "invitation already moved on")
	case errors.Is(err, invitations.ErrBusy):
		fail(c, http.StatusConflict, "user is already in a call")
	case errors.Is(err, invitations.ErrOffline):
		fail(c, http.StatusConflict, "receiver is offline")
	case errors.Is(err, invitations.ErrSelfCall):
		fail(c, http.StatusBadRequest, "cannot call yourself")
	case errors.Is(err, invitations.ErrInvalidArgument),
		errors.Is(err, chat.ErrInvalidArgument),
		errors.Is(err, history.ErrInvalidRequest),
		errors.Is(err, audit.ErrInvalidRequest):
		fail(c, http.StatusBadRequest, "invalid request")
	default:
		logger.FromGin(c).Error("request failed", "err", err)
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, "internal error")
	}
}
