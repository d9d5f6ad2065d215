// Package booking decides whether a patient may book an appointment with
// the clinic doctor and records the booking when they may.
//
// Every calendar computation (weekday, time of day, same-day bounds) is made
// in one reference timezone, the clinic's, regardless of the server's zone.
package booking

import (
	"fmt"
	"net/http"
	"time"

	"healthtracker-server/internal/models"
)

// Reason identifies why a booking was refused.
type Reason string

const (
	ReasonNotRegistered      Reason = "not_registered"
	ReasonInvalidDate        Reason = "invalid_date"
	ReasonAlreadyBooked      Reason = "already_booked"
	ReasonAvailabilityNotSet Reason = "availability_not_set"
	ReasonEmergency          Reason = "emergency"
	ReasonDayUnavailable     Reason = "day_unavailable"
	ReasonOutsideWindow      Reason = "outside_window"
	ReasonSlotTaken          Reason = "slot_taken"
)

// Rejection is returned when a booking request is not admissible.
type Rejection struct {
	Reason  Reason
	Message string
}

func (r *Rejection) Error() string { return r.Message }

// StatusCode maps the reason onto the HTTP status the API reports.
func (r *Rejection) StatusCode() int {
	switch r.Reason {
	case ReasonNotRegistered:
		return http.StatusForbidden
	case ReasonSlotTaken:
		return http.StatusConflict
	}
	return http.StatusBadRequest
}

func reject(reason Reason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Validator holds the reference timezone and clock the rules run against.
type Validator struct {
	loc *time.Location
	now func() time.Time
}

// NewValidator returns a Validator for loc. A nil now uses time.Now.
func NewValidator(loc *time.Location, now func() time.Time) *Validator {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Validator{loc: loc, now: now}
}

func (v *Validator) Location() *time.Location { return v.loc }

func (v *Validator) Now() time.Time { return v.now() }

// ParseRequestedDate accepts RFC 3339 timestamps with any offset, or a
// naive date-time interpreted in the reference zone.
func (v *Validator) ParseRequestedDate(raw string) (time.Time, error) {
	return models.ParseDate(raw, v.loc)
}

// DayBounds returns the first and last millisecond of t's calendar day in
// the reference zone.
func (v *Validator) DayBounds(t time.Time) (time.Time, time.Time) {
	local := t.In(v.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, v.loc)
	end := time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, int(999*time.Millisecond), v.loc)
	return start, end
}

// CheckDate parses raw and rejects it when unparseable or in the past.
func (v *Validator) CheckDate(raw string) (time.Time, error) {
	t, err := v.ParseRequestedDate(raw)
	if err != nil || t.Before(v.now()) {
		return time.Time{}, reject(ReasonInvalidDate, "Invalid appointment date")
	}
	return t, nil
}

// CheckAvailability applies the schedule rules to t: availability must
// exist, must not be in emergency mode, must cover t's weekday, and t's
// time of day must sit inside [startTime, endTime].
func (v *Validator) CheckAvailability(av *models.Availability, t time.Time) error {
	if av == nil {
		return reject(ReasonAvailabilityNotSet, "Doctor availability not set")
	}
	if av.Emergency {
		return reject(ReasonEmergency, "Doctor is currently in emergency mode")
	}

	local := t.In(v.loc)
	if !av.HasDay(local.Weekday()) {
		return reject(ReasonDayUnavailable, "Doctor is not available on %s", local.Weekday())
	}

	start, errStart := models.ParseClock(av.StartTime)
	end, errEnd := models.ParseClock(av.EndTime)
	if errStart != nil || errEnd != nil {
		return reject(ReasonAvailabilityNotSet, "Doctor availability not set")
	}
	windowStart := time.Date(local.Year(), local.Month(), local.Day(), start/60, start%60, 0, 0, v.loc)
	windowEnd := time.Date(local.Year(), local.Month(), local.Day(), end/60, end%60, 0, 0, v.loc)
	if local.Before(windowStart) || local.After(windowEnd) {
		return reject(ReasonOutsideWindow, "Doctor available between %s and %s", av.StartTime, av.EndTime)
	}
	return nil
}
