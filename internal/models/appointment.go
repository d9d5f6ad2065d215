package models

import (
	"strings"
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "Pending"
	StatusScheduled AppointmentStatus = "Scheduled"
	StatusUpcoming  AppointmentStatus = "Upcoming"
	StatusCompleted AppointmentStatus = "Completed"
	StatusCancelled AppointmentStatus = "Cancelled"
)

// ParseAppointmentStatus accepts any casing of a known status.
func ParseAppointmentStatus(s string) (AppointmentStatus, bool) {
	for _, st := range []AppointmentStatus{StatusPending, StatusScheduled, StatusUpcoming, StatusCompleted, StatusCancelled} {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, true
		}
	}
	return "", false
}

// Appointment is a patient-initiated booking with the clinic doctor.
type Appointment struct {
	BaseModel
	PatientID  string            `gorm:"size:36;index;not null" json:"patientId" validate:"required"`
	DoctorName string            `gorm:"size:50;not null" json:"doctorName" validate:"min=2,max=50,personname"`
	Date       time.Time         `gorm:"index;not null" json:"date" validate:"required"`
	Reason     string            `gorm:"size:100" json:"reason" validate:"max=100"`
	Status     AppointmentStatus `gorm:"size:20;default:'Scheduled'" json:"status" validate:"oneof=Pending Scheduled Upcoming Completed Cancelled"`

	Patient *Patient `gorm:"foreignKey:PatientID" json:"patient,omitempty" validate:"-"`
}

// Validate checks field rules that hold for every save.
func (a *Appointment) Validate() error {
	return check(a).errOrNil()
}

// ValidateNew additionally requires the date not to be in the past.
func (a *Appointment) ValidateNew(now time.Time) error {
	verr := check(a)
	if !a.Date.IsZero() && a.Date.Before(now) {
		verr.add("date", "appointment date cannot be in the past")
	}
	return verr.errOrNil()
}
