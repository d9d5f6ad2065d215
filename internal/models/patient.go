package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PatientStatus represents the clinical status shown on the dashboard
type PatientStatus string

const (
	PatientActive   PatientStatus = "Active"
	PatientCritical PatientStatus = "Critical"
)

// Gender enum
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

// ParseGender accepts any casing of a known gender.
func ParseGender(s string) (Gender, bool) {
	switch Gender(titleWord(s)) {
	case GenderMale:
		return GenderMale, true
	case GenderFemale:
		return GenderFemale, true
	case GenderOther:
		return GenderOther, true
	}
	return "", false
}

// ParsePatientStatus accepts any casing of a known status.
func ParsePatientStatus(s string) (PatientStatus, bool) {
	switch PatientStatus(titleWord(s)) {
	case PatientActive:
		return PatientActive, true
	case PatientCritical:
		return PatientCritical, true
	}
	return "", false
}

// Patient is the doctor's record of a person under care. It owns three
// ordered child collections that are only changed through its methods.
type Patient struct {
	BaseModel
	DoctorID         string        `gorm:"size:36;not null;uniqueIndex:idx_patients_doctor_auth" json:"doctorId" validate:"required"`
	AuthRef          string        `gorm:"size:36;not null;uniqueIndex:idx_patients_doctor_auth" json:"authRef" validate:"required"`
	Name             string        `gorm:"size:50;index;not null" json:"name" validate:"notblank,min=2,max=50"`
	Age              int           `json:"age" validate:"min=0,max=120"`
	Gender           Gender        `gorm:"size:10" json:"gender,omitempty" validate:"omitempty,oneof=Male Female Other"`
	Phone            string        `gorm:"size:10" json:"phone" validate:"omitempty,len=10,numeric"`
	Email            string        `gorm:"size:255" json:"email" validate:"omitempty,email"`
	Allergies        string        `gorm:"size:300" json:"allergies" validate:"max=300"`
	Status           PatientStatus `gorm:"size:20;default:'Active'" json:"status" validate:"oneof=Active Critical"`
	NextVisit        *time.Time    `json:"nextVisit"`
	DOB              *time.Time    `json:"dob,omitempty"`
	BloodGroup       string        `gorm:"size:3" json:"bloodGroup,omitempty" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Address          string        `gorm:"size:200" json:"address,omitempty" validate:"max=200"`
	MedicalHistory   string        `gorm:"size:500" json:"medicalHistory,omitempty" validate:"max=500"`
	EmergencyContact string        `gorm:"size:100" json:"emergencyContact,omitempty" validate:"max=100"`
	Insurance        string        `gorm:"size:100" json:"insurance,omitempty" validate:"max=100"`
	ProfileImage     string        `gorm:"size:300" json:"profileImage,omitempty" validate:"max=300"`

	History       []HistoryEntry     `gorm:"foreignKey:PatientID;constraint:OnDelete:CASCADE" json:"history" validate:"dive"`
	Appointments  []VisitAppointment `gorm:"foreignKey:PatientID;constraint:OnDelete:CASCADE" json:"appointments" validate:"dive"`
	Prescriptions []Prescription     `gorm:"foreignKey:PatientID;constraint:OnDelete:CASCADE" json:"prescriptions" validate:"dive"`
}

// HistoryEntry is a dated free-text note in the patient's history.
type HistoryEntry struct {
	BaseModel
	PatientID string    `gorm:"size:36;index;not null" json:"-"`
	Position  int       `json:"-"`
	Date      time.Time `gorm:"not null" json:"date" validate:"required"`
	Details   string    `gorm:"type:text;not null" json:"details" validate:"notblank"`
}

// VisitAppointment is a visit the doctor recorded on the patient's chart.
type VisitAppointment struct {
	BaseModel
	PatientID string            `gorm:"size:36;index;not null" json:"-"`
	Position  int               `json:"-"`
	Date      time.Time         `gorm:"not null" json:"date" validate:"required"`
	Doctor    string            `gorm:"size:50;not null" json:"doctor" validate:"notblank"`
	Status    AppointmentStatus `gorm:"size:20;default:'Pending'" json:"status" validate:"oneof=Pending Scheduled Upcoming Completed Cancelled"`
}

// Prescription is a medicine with its duration.
type Prescription struct {
	BaseModel
	PatientID string    `gorm:"size:36;index;not null" json:"-"`
	Position  int       `json:"-"`
	Date      time.Time `gorm:"not null" json:"date" validate:"required"`
	Medicine  string    `gorm:"size:100;not null" json:"medicine" validate:"notblank"`
	Duration  string    `gorm:"size:50;not null" json:"duration" validate:"notblank"`
}

// VisitPatch lists the mutable fields of a VisitAppointment.
type VisitPatch struct {
	Date   *time.Time
	Doctor *string
	Status *AppointmentStatus
}

// PrescriptionPatch lists the mutable fields of a Prescription.
type PrescriptionPatch struct {
	Date     *time.Time
	Medicine *string
	Duration *string
}

// PatientStats summarises the roster for the dashboard.
type PatientStats struct {
	Total    int64 `json:"totalPatients"`
	Active   int64 `json:"activePatients"`
	Critical int64 `json:"criticalPatients"`
}

func newChildID() string { return uuid.New().String() }

// AddHistory appends a history entry and returns it.
func (p *Patient) AddHistory(date time.Time, details string) *HistoryEntry {
	entry := HistoryEntry{PatientID: p.ID, Date: date, Details: strings.TrimSpace(details)}
	entry.ID = newChildID()
	p.History = append(p.History, entry)
	p.reindex()
	return &p.History[len(p.History)-1]
}

// AddVisit appends a visit. An empty status becomes Pending.
func (p *Patient) AddVisit(date time.Time, doctor string, status AppointmentStatus) *VisitAppointment {
	if status == "" {
		status = StatusPending
	}
	visit := VisitAppointment{PatientID: p.ID, Date: date, Doctor: strings.TrimSpace(doctor), Status: status}
	visit.ID = newChildID()
	p.Appointments = append(p.Appointments, visit)
	p.reindex()
	return &p.Appointments[len(p.Appointments)-1]
}

// UpdateVisit applies the non-nil fields of patch to the visit with id.
func (p *Patient) UpdateVisit(id string, patch VisitPatch) (*VisitAppointment, error) {
	for i := range p.Appointments {
		v := &p.Appointments[i]
		if v.ID != id {
			continue
		}
		if patch.Date != nil {
			v.Date = *patch.Date
		}
		if patch.Doctor != nil {
			v.Doctor = strings.TrimSpace(*patch.Doctor)
		}
		if patch.Status != nil {
			v.Status = *patch.Status
		}
		return v, nil
	}
	return nil, ErrChildNotFound
}

// RemoveVisit deletes the visit with id, keeping the order of the rest.
func (p *Patient) RemoveVisit(id string) error {
	for i := range p.Appointments {
		if p.Appointments[i].ID == id {
			p.Appointments = append(p.Appointments[:i], p.Appointments[i+1:]...)
			p.reindex()
			return nil
		}
	}
	return ErrChildNotFound
}

// AddPrescription appends a prescription and returns it.
func (p *Patient) AddPrescription(date time.Time, medicine, duration string) *Prescription {
	rx := Prescription{PatientID: p.ID, Date: date, Medicine: strings.TrimSpace(medicine), Duration: strings.TrimSpace(duration)}
	rx.ID = newChildID()
	p.Prescriptions = append(p.Prescriptions, rx)
	p.reindex()
	return &p.Prescriptions[len(p.Prescriptions)-1]
}

// UpdatePrescription applies the non-nil fields of patch.
func (p *Patient) UpdatePrescription(id string, patch PrescriptionPatch) (*Prescription, error) {
	for i := range p.Prescriptions {
		rx := &p.Prescriptions[i]
		if rx.ID != id {
			continue
		}
		if patch.Date != nil {
			rx.Date = *patch.Date
		}
		if patch.Medicine != nil {
			rx.Medicine = strings.TrimSpace(*patch.Medicine)
		}
		if patch.Duration != nil {
			rx.Duration = strings.TrimSpace(*patch.Duration)
		}
		return rx, nil
	}
	return nil, ErrChildNotFound
}

// RemovePrescription deletes the prescription with id.
func (p *Patient) RemovePrescription(id string) error {
	for i := range p.Prescriptions {
		if p.Prescriptions[i].ID == id {
			p.Prescriptions = append(p.Prescriptions[:i], p.Prescriptions[i+1:]...)
			p.reindex()
			return nil
		}
	}
	return ErrChildNotFound
}

// ChildIDs returns the ids of every owned child, per collection.
func (p *Patient) ChildIDs() (history, visits, prescriptions []string) {
	for _, h := range p.History {
		history = append(history, h.ID)
	}
	for _, v := range p.Appointments {
		visits = append(visits, v.ID)
	}
	for _, rx := range p.Prescriptions {
		prescriptions = append(prescriptions, rx.ID)
	}
	return history, visits, prescriptions
}

// reindex keeps Position and PatientID in step with the slice order.
func (p *Patient) reindex() {
	for i := range p.History {
		p.History[i].Position = i
		p.History[i].PatientID = p.ID
	}
	for i := range p.Appointments {
		p.Appointments[i].Position = i
		p.Appointments[i].PatientID = p.ID
	}
	for i := range p.Prescriptions {
		p.Prescriptions[i].Position = i
		p.Prescriptions[i].PatientID = p.ID
	}
}

// PrepareSave assigns ids to the patient and any child added without
// one, then fixes positions.
func (p *Patient) PrepareSave() {
	p.EnsureID()
	if p.Status == "" {
		p.Status = PatientActive
	}
	if p.History == nil {
		p.History = []HistoryEntry{}
	}
	if p.Appointments == nil {
		p.Appointments = []VisitAppointment{}
	}
	if p.Prescriptions == nil {
		p.Prescriptions = []Prescription{}
	}
	for i := range p.History {
		p.History[i].EnsureID()
	}
	for i := range p.Appointments {
		p.Appointments[i].EnsureID()
	}
	for i := range p.Prescriptions {
		p.Prescriptions[i].EnsureID()
	}
	p.reindex()
}

// Validate checks the schema rules of the patient and its children.
func (p *Patient) Validate() error {
	return check(p).errOrNil()
}
