// Package repository persists the clinic's entities. Every repository has a
// gorm implementation backed by MySQL and an in-memory one for local runs
// and tests.
package repository

import (
	"context"
	"errors"
	"time"

	"healthtracker-server/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

type IdentityRepository interface {
	Create(ctx context.Context, identity *models.Identity) error
	FindByID(ctx context.Context, id string) (*models.Identity, error)
	FindByEmail(ctx context.Context, email string) (*models.Identity, error)
	FindByEmailAndPhone(ctx context.Context, email, phone string) (*models.Identity, error)
	Save(ctx context.Context, identity *models.Identity) error
}

// AvailabilityRepository holds one availability row per doctor.
type AvailabilityRepository interface {
	GetCurrent(ctx context.Context, doctorID string) (*models.Availability, error)
	SetCurrent(ctx context.Context, availability *models.Availability) error
}

type PatientRepository interface {
	Create(ctx context.Context, patient *models.Patient) error
	FindByID(ctx context.Context, id string) (*models.Patient, error)
	FindByAuthRef(ctx context.Context, doctorID, authRef string) (*models.Patient, error)
	FindByName(ctx context.Context, name string) (*models.Patient, error)
	List(ctx context.Context) ([]models.Patient, error)
	// Save writes the patient and reconciles its child collections.
	Save(ctx context.Context, patient *models.Patient) error
	Stats(ctx context.Context) (models.PatientStats, error)
}

// AppointmentFilter narrows List. Zero values do not filter.
type AppointmentFilter struct {
	PatientID       string
	From            *time.Time
	To              *time.Time
	Statuses        []models.AppointmentStatus
	ExcludeStatuses []models.AppointmentStatus
	Limit           int
}

type AppointmentRepository interface {
	Create(ctx context.Context, appointment *models.Appointment) error
	FindByID(ctx context.Context, id string) (*models.Appointment, error)
	Save(ctx context.Context, appointment *models.Appointment) error
	// List returns matches ordered by date, each with its patient loaded.
	List(ctx context.Context, filter AppointmentFilter) ([]models.Appointment, error)
}

// HealthRecordFilter narrows List. Zero values do not filter.
type HealthRecordFilter struct {
	PatientID string
	Limit     int
}

type HealthRecordRepository interface {
	Create(ctx context.Context, record *models.HealthRecord) error
	FindByID(ctx context.Context, id string) (*models.HealthRecord, error)
	// List returns matches newest first, each with its patient loaded.
	List(ctx context.Context, filter HealthRecordFilter) ([]models.HealthRecord, error)
	Save(ctx context.Context, record *models.HealthRecord) error
	Delete(ctx context.Context, id string) error
}

type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	FindByID(ctx context.Context, id string) (*models.Notification, error)
	ListRecent(ctx context.Context, doctorID string, limit int) ([]models.Notification, error)
	Save(ctx context.Context, notification *models.Notification) error
}

// Store bundles the repositories handlers and jobs depend on.
type Store struct {
	Identities    IdentityRepository
	Availability  AvailabilityRepository
	Patients      PatientRepository
	Appointments  AppointmentRepository
	HealthRecords HealthRecordRepository
	Notifications NotificationRepository
}
