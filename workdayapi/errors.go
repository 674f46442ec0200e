package workdayapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/montron/pm_backend/workflow"
)

// statusForError maps workflow errors onto HTTP statuses and a JSON body.
func statusForError(err error) (int, gin.H) {
	body := gin.H{"error": err.Error()}

	var blocked *workflow.ValidationBlockedError
	var badInput *workflow.BadInputError
	var pinInvalid *workflow.PinInvalidError
	var pinLocked *workflow.PinLockedError
	var storage *workflow.StorageError

	switch {
	case errors.As(err, &blocked):
		body["issues"] = blocked.Issues
		return http.StatusUnprocessableEntity, body
	case errors.As(err, &badInput):
		body["field"] = badInput.Field
		return http.StatusBadRequest, body
	case errors.As(err, &pinInvalid):
		body["remaining_attempts"] = pinInvalid.RemainingAttempts
		return http.StatusUnauthorized, body
	case errors.As(err, &pinLocked):
		body["locked_until"] = pinLocked.LockedUntil
		return http.StatusLocked, body
	case errors.As(err, &storage):
		return http.StatusBadGateway, body
	case errors.Is(err, workflow.ErrPinNotConfigured):
		return http.StatusNotFound, body
	case errors.Is(err, workflow.ErrNotFound):
		return http.StatusNotFound, body
	case errors.Is(err, workflow.ErrConflict):
		return http.StatusConflict, body
	default:
		return http.StatusInternalServerError, gin.H{"error": "internal server error"}
	}
}

func respondError(c *gin.Context, err error) {
	status, body := statusForError(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}
