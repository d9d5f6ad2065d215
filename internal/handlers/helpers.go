package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"healthtracker-server/internal/booking"
	"healthtracker-server/internal/models"
	"healthtracker-server/internal/repository"
	"healthtracker-server/internal/utils"
)

// fail maps an error from the model, booking or repository layers onto the
// response envelope. Anything unrecognised is a 500 carrying context.
func fail(c *gin.Context, err error, context string) {
	var verr *models.ValidationError
	var rej *booking.Rejection
	switch {
	case errors.As(err, &verr):
		utils.ValidationFailed(c, verr)
	case errors.As(err, &rej):
		utils.Error(c, rej.StatusCode(), rej.Message)
	case errors.Is(err, repository.ErrDuplicate):
		utils.Conflict(c, "Record already exists")
	default:
		_ = c.Error(err)
		utils.InternalServerError(c, context+": "+err.Error())
	}
}

// parseDate reads a client-supplied date. Values without an offset are wall
// clock time in loc.
func parseDate(raw string, loc *time.Location) (time.Time, error) {
	return models.ParseDate(raw, loc)
}

// optionalDate parses raw when set. Empty input yields nil.
func optionalDate(raw *string, loc *time.Location) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, err := parseDate(*raw, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// trimmed returns the trimmed value of a set, non-blank pointer.
func trimmed(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	v := strings.TrimSpace(*s)
	return v, v != ""
}
