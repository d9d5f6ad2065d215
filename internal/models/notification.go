package models

import (
	"strings"
	"time"
)

// Notification is an entry in the doctor's append-only activity feed.
type Notification struct {
	BaseModel
	DoctorID string     `gorm:"size:36;index;not null" json:"doctorId" validate:"required"`
	Message  string     `gorm:"type:text;not null" json:"message" validate:"notblank"`
	Read     bool       `gorm:"default:false" json:"read"`
	ReadAt   *time.Time `json:"readAt,omitempty"`
}

// NewNotification builds an unread notification for doctorID.
func NewNotification(doctorID, message string) *Notification {
	return &Notification{DoctorID: doctorID, Message: strings.TrimSpace(message)}
}

// MarkRead flags the notification as seen. Marking twice keeps the first time.
func (n *Notification) MarkRead(now time.Time) {
	if n.Read {
		return
	}
	n.Read = true
	n.ReadAt = &now
}

// Validate checks the schema rules before a save.
func (n *Notification) Validate() error {
	return check(n).errOrNil()
}
