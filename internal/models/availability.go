package models

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Availability is the doctor's weekly booking window. A doctor has at most
// one row; emergency mode suspends the schedule entirely.
type Availability struct {
	BaseModel
	DoctorID  string   `gorm:"size:36;uniqueIndex;not null" json:"doctorId"`
	Days      []string `gorm:"serializer:json;type:text" json:"days" validate:"omitempty,dive,weekday"`
	StartTime string   `gorm:"size:5" json:"startTime" validate:"omitempty,clock"`
	EndTime   string   `gorm:"size:5" json:"endTime" validate:"omitempty,clock"`
	Emergency bool     `gorm:"default:false" json:"emergency"`
}

// Normalize title-cases day names and strips the schedule in emergency mode.
func (a *Availability) Normalize() {
	if a.Emergency {
		a.Days = []string{}
		a.StartTime = ""
		a.EndTime = ""
		return
	}
	days := make([]string, 0, len(a.Days))
	seen := make(map[string]bool, len(a.Days))
	for _, d := range a.Days {
		d = titleWord(d)
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	a.Days = days
}

// Validate enforces the two modes: emergency with no schedule, or a
// non-empty set of weekdays with a window where start < end.
func (a *Availability) Validate() error {
	return check(a).errOrNil()
}

// HasDay reports whether the schedule covers the given weekday.
func (a *Availability) HasDay(day time.Weekday) bool {
	for _, d := range a.Days {
		if wd, ok := ParseWeekday(d); ok && wd == day {
			return true
		}
	}
	return false
}

// ParseWeekday maps an English weekday name to time.Weekday.
func ParseWeekday(name string) (time.Weekday, bool) {
	name = titleWord(name)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if d.String() == name {
			return d, true
		}
	}
	return 0, false
}

// ParseClock converts "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, error) {
	if !clockPattern.MatchString(s) {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	h, _ := strconv.Atoi(s[:2])
	m, _ := strconv.Atoi(s[3:])
	return h*60 + m, nil
}
