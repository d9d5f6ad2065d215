package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"healthtracker-server/internal/models"
)

// NewGormStore wires every repository to the same connection pool.
func NewGormStore(db *gorm.DB) *Store {
	return &Store{
		Identities:    &gormIdentityRepository{db: db},
		Availability:  &gormAvailabilityRepository{db: db},
		Patients:      &gormPatientRepository{db: db},
		Appointments:  &gormAppointmentRepository{db: db},
		HealthRecords: &gormHealthRecordRepository{db: db},
		Notifications: &gormNotificationRepository{db: db},
	}
}

// translate maps gorm's sentinel errors onto the repository ones. The
// connection must be opened with TranslateError for duplicates to surface.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

type gormIdentityRepository struct {
	db *gorm.DB
}

func (r *gormIdentityRepository) Create(ctx context.Context, identity *models.Identity) error {
	identity.Email = models.NormalizeEmail(identity.Email)
	if err := identity.Validate(); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Create(identity).Error)
}

func (r *gormIdentityRepository) FindByID(ctx context.Context, id string) (*models.Identity, error) {
	var identity models.Identity
	if err := r.db.WithContext(ctx).First(&identity, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &identity, nil
}

func (r *gormIdentityRepository) FindByEmail(ctx context.Context, email string) (*models.Identity, error) {
	var identity models.Identity
	if err := r.db.WithContext(ctx).Where("email = ?", models.NormalizeEmail(email)).First(&identity).Error; err != nil {
		return nil, translate(err)
	}
	return &identity, nil
}

func (r *gormIdentityRepository) FindByEmailAndPhone(ctx context.Context, email, phone string) (*models.Identity, error) {
	var identity models.Identity
	err := r.db.WithContext(ctx).
		Where("email = ? AND phone = ?", models.NormalizeEmail(email), phone).
		First(&identity).Error
	if err != nil {
		return nil, translate(err)
	}
	return &identity, nil
}

func (r *gormIdentityRepository) Save(ctx context.Context, identity *models.Identity) error {
	identity.Email = models.NormalizeEmail(identity.Email)
	if err := identity.Validate(); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Save(identity).Error)
}

type gormAvailabilityRepository struct {
	db *gorm.DB
}

func (r *gormAvailabilityRepository) GetCurrent(ctx context.Context, doctorID string) (*models.Availability, error) {
	var av models.Availability
	if err := r.db.WithContext(ctx).Where("doctor_id = ?", doctorID).First(&av).Error; err != nil {
		return nil, translate(err)
	}
	return &av, nil
}

// SetCurrent overwrites the doctor's row in place, keeping its id.
func (r *gormAvailabilityRepository) SetCurrent(ctx context.Context, av *models.Availability) error {
	av.Normalize()
	if err := av.Validate(); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Availability
		err := tx.Where("doctor_id = ?", av.DoctorID).First(&existing).Error
		switch {
		case err == nil:
			av.ID = existing.ID
			av.CreatedAt = existing.CreatedAt
			return tx.Save(av).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			av.ID = ""
			return tx.Create(av).Error
		default:
			return err
		}
	})
	return translate(err)
}

type gormPatientRepository struct {
	db *gorm.DB
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position asc")
}

func (r *gormPatientRepository) withChildren(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("History", orderByPosition).
		Preload("Appointments", orderByPosition).
		Preload("Prescriptions", orderByPosition)
}

func (r *gormPatientRepository) Create(ctx context.Context, patient *models.Patient) error {
	patient.PrepareSave()
	if err := patient.Validate(); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Create(patient).Error)
}

func (r *gormPatientRepository) FindByID(ctx context.Context, id string) (*models.Patient, error) {
	var patient models.Patient
	if err := r.withChildren(ctx).First(&patient, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &patient, nil
}

func (r *gormPatientRepository) FindByAuthRef(ctx context.Context, doctorID, authRef string) (*models.Patient, error) {
	var patient models.Patient
	err := r.withChildren(ctx).
		Where("doctor_id = ? AND auth_ref = ?", doctorID, authRef).
		First(&patient).Error
	if err != nil {
		return nil, translate(err)
	}
	return &patient, nil
}

func (r *gormPatientRepository) FindByName(ctx context.Context, name string) (*models.Patient, error) {
	var patient models.Patient
	if err := r.withChildren(ctx).Where("name = ?", name).First(&patient).Error; err != nil {
		return nil, translate(err)
	}
	return &patient, nil
}

func (r *gormPatientRepository) List(ctx context.Context) ([]models.Patient, error) {
	var patients []models.Patient
	if err := r.withChildren(ctx).Order("created_at desc").Find(&patients).Error; err != nil {
		return nil, err
	}
	return patients, nil
}

// Save updates the patient row, deletes children no longer in the
// aggregate and upserts the rest, all in one transaction.
func (r *gormPatientRepository) Save(ctx context.Context, patient *models.Patient) error {
	patient.PrepareSave()
	if err := patient.Validate(); err != nil {
		return err
	}
	history, visits, prescriptions := patient.ChildIDs()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(patient).Error; err != nil {
			return err
		}
		if err := syncChildren(tx, patient.ID, history, patient.History); err != nil {
			return err
		}
		if err := syncChildren(tx, patient.ID, visits, patient.Appointments); err != nil {
			return err
		}
		return syncChildren(tx, patient.ID, prescriptions, patient.Prescriptions)
	})
	return translate(err)
}

func syncChildren[T any](tx *gorm.DB, patientID string, keep []string, rows []T) error {
	var model T
	q := tx.Where("patient_id = ?", patientID)
	if len(keep) > 0 {
		q = q.Where("id NOT IN ?", keep)
	}
	if err := q.Delete(&model).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Save(&rows).Error
}

func (r *gormPatientRepository) Stats(ctx context.Context) (models.PatientStats, error) {
	var stats models.PatientStats
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Patient{}).Count(&stats.Total).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&models.Patient{}).Where("status = ?", models.PatientCritical).Count(&stats.Critical).Error; err != nil {
		return stats, err
	}
	stats.Active = stats.Total - stats.Critical
	return stats, nil
}

type gormAppointmentRepository struct {
	db *gorm.DB
}

func (r *gormAppointmentRepository) Create(ctx context.Context, appointment *models.Appointment) error {
	if err := appointment.Validate(); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(appointment).Error)
}

func (r *gormAppointmentRepository) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	var appointment models.Appointment
	if err := r.db.WithContext(ctx).Preload("Patient").First(&appointment, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &appointment, nil
}

func (r *gormAppointmentRepository) Save(ctx context.Context, appointment *models.Appointment) error {
	if err := appointment.Validate(); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(appointment).Error)
}

func (r *gormAppointmentRepository) List(ctx context.Context, f AppointmentFilter) ([]models.Appointment, error) {
	q := r.db.WithContext(ctx).Preload("Patient").Order("date asc")
	if f.PatientID != "" {
		q = q.Where("patient_id = ?", f.PatientID)
	}
	if f.From != nil {
		q = q.Where("date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("date <= ?", *f.To)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if len(f.ExcludeStatuses) > 0 {
		q = q.Where("status NOT IN ?", f.ExcludeStatuses)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var appointments []models.Appointment
	if err := q.Find(&appointments).Error; err != nil {
		return nil, err
	}
	return appointments, nil
}

type gormHealthRecordRepository struct {
	db *gorm.DB
}

func (r *gormHealthRecordRepository) Create(ctx context.Context, record *models.HealthRecord) error {
	if record.Vitals == "" {
		record.Vitals = models.DefaultVitals
	}
	if err := record.Validate(); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(record).Error)
}

func (r *gormHealthRecordRepository) FindByID(ctx context.Context, id string) (*models.HealthRecord, error) {
	var record models.HealthRecord
	if err := r.db.WithContext(ctx).Preload("Patient").First(&record, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &record, nil
}

func (r *gormHealthRecordRepository) List(ctx context.Context, f HealthRecordFilter) ([]models.HealthRecord, error) {
	q := r.db.WithContext(ctx).Preload("Patient").Order("date desc")
	if f.PatientID != "" {
		q = q.Where("patient_id = ?", f.PatientID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var records []models.HealthRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *gormHealthRecordRepository) Save(ctx context.Context, record *models.HealthRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(record).Error)
}

func (r *gormHealthRecordRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.HealthRecord{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type gormNotificationRepository struct {
	db *gorm.DB
}

func (r *gormNotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Create(n).Error)
}

func (r *gormNotificationRepository) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.WithContext(ctx).First(&n, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &n, nil
}

func (r *gormNotificationRepository) ListRecent(ctx context.Context, doctorID string, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	err := r.db.WithContext(ctx).
		Where("doctor_id = ?", doctorID).
		Order("created_at desc").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *gormNotificationRepository) Save(ctx context.Context, n *models.Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Save(n).Error)
}
