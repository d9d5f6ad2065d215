package models

import "time"

// RecordType represents the type of health record
type RecordType string

const (
	RecordTypeConsultation RecordType = "Consultation"
	RecordTypeLabResults   RecordType = "Lab Results"
)

// DefaultVitals is stored when a record is created without vitals.
const DefaultVitals = "N/A"

// HealthRecord is a consultation or lab result written by the doctor.
type HealthRecord struct {
	BaseModel
	PatientID string     `gorm:"size:36;index;not null" json:"patientId" validate:"required"`
	Date      time.Time  `gorm:"index;not null" json:"date" validate:"required"`
	Type      RecordType `gorm:"size:20;not null" json:"type" validate:"oneof=Consultation 'Lab Results'"`
	Provider  string     `gorm:"size:100;not null" json:"provider" validate:"notblank,max=100"`
	Diagnosis string     `gorm:"type:text" json:"diagnosis" validate:"notblank"`
	Treatment string     `gorm:"type:text" json:"treatment" validate:"notblank"`
	Vitals    string     `gorm:"size:255;default:'N/A'" json:"vitals" validate:"max=255"`

	Patient *Patient `gorm:"foreignKey:PatientID" json:"patient,omitempty" validate:"-"`
}

// Validate checks the schema rules before a save.
func (r *HealthRecord) Validate() error {
	return check(r).errOrNil()
}
