package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"healthtracker-server/internal/models"
)

// memoryDB keeps copies of every row so callers never share memory with
// the store, which mirrors the read-modify-write behaviour of the database.
type memoryDB struct {
	mu            sync.RWMutex
	seq           int64
	order         map[string]int64
	identities    map[string]models.Identity
	availability  map[string]models.Availability // keyed by doctor id
	patients      map[string]models.Patient
	appointments  map[string]models.Appointment
	records       map[string]models.HealthRecord
	notifications map[string]models.Notification
	now           func() time.Time
}

// NewMemoryStore returns a Store that lives in process memory.
func NewMemoryStore() *Store {
	db := &memoryDB{
		order:         make(map[string]int64),
		identities:    make(map[string]models.Identity),
		availability:  make(map[string]models.Availability),
		patients:      make(map[string]models.Patient),
		appointments:  make(map[string]models.Appointment),
		records:       make(map[string]models.HealthRecord),
		notifications: make(map[string]models.Notification),
		now:           time.Now,
	}
	return &Store{
		Identities:    &memoryIdentityRepository{db},
		Availability:  &memoryAvailabilityRepository{db},
		Patients:      &memoryPatientRepository{db},
		Appointments:  &memoryAppointmentRepository{db},
		HealthRecords: &memoryHealthRecordRepository{db},
		Notifications: &memoryNotificationRepository{db},
	}
}

// insert stamps the row and records insertion order. Caller holds mu.
func (db *memoryDB) insert(base *models.BaseModel) {
	base.EnsureID()
	base.Touch(db.now())
	db.seq++
	db.order[base.ID] = db.seq
}

// newerFirst orders by creation time, breaking ties by insertion order.
func (db *memoryDB) newerFirst(aID string, aAt time.Time, bID string, bAt time.Time) bool {
	if !aAt.Equal(bAt) {
		return aAt.After(bAt)
	}
	return db.order[aID] > db.order[bID]
}

func clonePatient(p models.Patient) models.Patient {
	p.History = append([]models.HistoryEntry{}, p.History...)
	p.Appointments = append([]models.VisitAppointment{}, p.Appointments...)
	p.Prescriptions = append([]models.Prescription{}, p.Prescriptions...)
	if p.NextVisit != nil {
		v := *p.NextVisit
		p.NextVisit = &v
	}
	if p.DOB != nil {
		v := *p.DOB
		p.DOB = &v
	}
	return p
}

func cloneIdentity(i models.Identity) models.Identity {
	if i.OTPExpiry != nil {
		v := *i.OTPExpiry
		i.OTPExpiry = &v
	}
	return i
}

// patientRef returns a copy of the referenced patient, or nil. Caller holds mu.
func (db *memoryDB) patientRef(id string) *models.Patient {
	p, ok := db.patients[id]
	if !ok {
		return nil
	}
	c := clonePatient(p)
	return &c
}

type memoryIdentityRepository struct{ db *memoryDB }

func (r *memoryIdentityRepository) Create(_ context.Context, identity *models.Identity) error {
	identity.Email = models.NormalizeEmail(identity.Email)
	if err := identity.Validate(); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.identities {
		if existing.Email == identity.Email {
			return ErrDuplicate
		}
	}
	r.db.insert(&identity.BaseModel)
	r.db.identities[identity.ID] = cloneIdentity(*identity)
	return nil
}

func (r *memoryIdentityRepository) FindByID(_ context.Context, id string) (*models.Identity, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	identity, ok := r.db.identities[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := cloneIdentity(identity)
	return &c, nil
}

func (r *memoryIdentityRepository) FindByEmail(ctx context.Context, email string) (*models.Identity, error) {
	return r.find(func(i models.Identity) bool { return i.Email == models.NormalizeEmail(email) })
}

func (r *memoryIdentityRepository) FindByEmailAndPhone(ctx context.Context, email, phone string) (*models.Identity, error) {
	return r.find(func(i models.Identity) bool {
		return i.Email == models.NormalizeEmail(email) && i.Phone == phone
	})
}

func (r *memoryIdentityRepository) find(match func(models.Identity) bool) (*models.Identity, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, identity := range r.db.identities {
		if match(identity) {
			c := cloneIdentity(identity)
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryIdentityRepository) Save(_ context.Context, identity *models.Identity) error {
	identity.Email = models.NormalizeEmail(identity.Email)
	if err := identity.Validate(); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.identities[identity.ID]; !ok {
		return ErrNotFound
	}
	for id, existing := range r.db.identities {
		if id != identity.ID && existing.Email == identity.Email {
			return ErrDuplicate
		}
	}
	identity.Touch(r.db.now())
	r.db.identities[identity.ID] = cloneIdentity(*identity)
	return nil
}

type memoryAvailabilityRepository struct{ db *memoryDB }

func (r *memoryAvailabilityRepository) GetCurrent(_ context.Context, doctorID string) (*models.Availability, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	av, ok := r.db.availability[doctorID]
	if !ok {
		return nil, ErrNotFound
	}
	av.Days = append([]string{}, av.Days...)
	return &av, nil
}

func (r *memoryAvailabilityRepository) SetCurrent(_ context.Context, av *models.Availability) error {
	av.Normalize()
	if err := av.Validate(); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if existing, ok := r.db.availability[av.DoctorID]; ok {
		av.ID = existing.ID
		av.CreatedAt = existing.CreatedAt
		av.Touch(r.db.now())
	} else {
		av.ID = ""
		r.db.insert(&av.BaseModel)
	}
	stored := *av
	stored.Days = append([]string{}, av.Days...)
	r.db.availability[av.DoctorID] = stored
	return nil
}

type memoryPatientRepository struct{ db *memoryDB }

func (r *memoryPatientRepository) Create(_ context.Context, patient *models.Patient) error {
	patient.PrepareSave()
	if err := patient.Validate(); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.patients {
		if existing.DoctorID == patient.DoctorID && existing.AuthRef == patient.AuthRef {
			return ErrDuplicate
		}
	}
	r.db.insert(&patient.BaseModel)
	r.db.patients[patient.ID] = clonePatient(*patient)
	return nil
}

func (r *memoryPatientRepository) FindByID(_ context.Context, id string) (*models.Patient, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	if p := r.db.patientRef(id); p != nil {
		return p, nil
	}
	return nil, ErrNotFound
}

func (r *memoryPatientRepository) FindByAuthRef(_ context.Context, doctorID, authRef string) (*models.Patient, error) {
	return r.find(func(p models.Patient) bool { return p.DoctorID == doctorID && p.AuthRef == authRef })
}

func (r *memoryPatientRepository) FindByName(_ context.Context, name string) (*models.Patient, error) {
	return r.find(func(p models.Patient) bool { return p.Name == name })
}

// find returns the oldest matching patient, like a first() without sort keys.
func (r *memoryPatientRepository) find(match func(models.Patient) bool) (*models.Patient, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var found *models.Patient
	for _, p := range r.db.patients {
		if !match(p) {
			continue
		}
		if found == nil || r.db.order[p.ID] < r.db.order[found.ID] {
			c := clonePatient(p)
			found = &c
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (r *memoryPatientRepository) List(_ context.Context) ([]models.Patient, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	patients := make([]models.Patient, 0, len(r.db.patients))
	for _, p := range r.db.patients {
		patients = append(patients, clonePatient(p))
	}
	sort.Slice(patients, func(i, j int) bool {
		return r.db.newerFirst(patients[i].ID, patients[i].CreatedAt, patients[j].ID, patients[j].CreatedAt)
	})
	return patients, nil
}

func (r *memoryPatientRepository) Save(_ context.Context, patient *models.Patient) error {
	patient.PrepareSave()
	if err := patient.Validate(); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.patients[patient.ID]; !ok {
		return ErrNotFound
	}
	patient.Touch(r.db.now())
	r.db.patients[patient.ID] = clonePatient(*patient)
	return nil
}

func (r *memoryPatientRepository) Stats(_ context.Context) (models.PatientStats, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var stats models.PatientStats
	for _, p := range r.db.patients {
		stats.Total++
		if p.Status == models.PatientCritical {
			stats.Critical++
		}
	}
	stats.Active = stats.Total - stats.Critical
	return stats, nil
}

type memoryAppointmentRepository struct{ db *memoryDB }

func (r *memoryAppointmentRepository) Create(_ context.Context, appointment *models.Appointment) error {
	if err := appointment.Validate(); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.insert(&appointment.BaseModel)
	stored := *appointment
	stored.Patient = nil
	r.db.appointments[appointment.ID] = stored
	return nil
}

func (r *memoryAppointmentRepository) FindByID(_ context.Context, id string) (*models.Appointment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	a, ok := r.db.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	a.Patient = r.db.patientRef(a.PatientID)
	return &a, nil
}

func (r *memoryAppointmentRepository) Save(_ context.Context, appointment *models.Appointment) error {
	if err := appointment.Validate(); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.appointments[appointment.ID]; !ok {
		return ErrNotFound
	}
	appointment.Touch(r.db.now())
	stored := *appointment
	stored.Patient = nil
	r.db.appointments[appointment.ID] = stored
	return nil
}

func statusIn(s models.AppointmentStatus, set []models.AppointmentStatus) bool {
	for _, candidate := range set {
		if candidate == s {
			return true
		}
	}
	return false
}

func (r *memoryAppointmentRepository) List(_ context.Context, f AppointmentFilter) ([]models.Appointment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []models.Appointment
	for _, a := range r.db.appointments {
		switch {
		case f.PatientID != "" && a.PatientID != f.PatientID:
			continue
		case f.From != nil && a.Date.Before(*f.From):
			continue
		case f.To != nil && a.Date.After(*f.To):
			continue
		case len(f.Statuses) > 0 && !statusIn(a.Status, f.Statuses):
			continue
		case len(f.ExcludeStatuses) > 0 && statusIn(a.Status, f.ExcludeStatuses):
			continue
		}
		a.Patient = r.db.patientRef(a.PatientID)
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return r.db.order[out[i].ID] < r.db.order[out[j].ID]
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

type memoryHealthRecordRepository struct{ db *memoryDB }

func (r *memoryHealthRecordRepository) Create(_ context.Context, record *models.HealthRecord) error {
	if record.Vitals == "" {
		record.Vitals = models.DefaultVitals
	}
	if err := record.Validate(); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.insert(&record.BaseModel)
	stored := *record
	stored.Patient = nil
	r.db.records[record.ID] = stored
	return nil
}

func (r *memoryHealthRecordRepository) FindByID(_ context.Context, id string) (*models.HealthRecord, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	rec, ok := r.db.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	rec.Patient = r.db.patientRef(rec.PatientID)
	return &rec, nil
}

func (r *memoryHealthRecordRepository) List(_ context.Context, f HealthRecordFilter) ([]models.HealthRecord, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []models.HealthRecord
	for _, rec := range r.db.records {
		if f.PatientID != "" && rec.PatientID != f.PatientID {
			continue
		}
		rec.Patient = r.db.patientRef(rec.PatientID)
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return r.db.newerFirst(out[i].ID, out[i].Date, out[j].ID, out[j].Date)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *memoryHealthRecordRepository) Save(_ context.Context, record *models.HealthRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.records[record.ID]; !ok {
		return ErrNotFound
	}
	record.Touch(r.db.now())
	stored := *record
	stored.Patient = nil
	r.db.records[record.ID] = stored
	return nil
}

func (r *memoryHealthRecordRepository) Delete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.records[id]; !ok {
		return ErrNotFound
	}
	delete(r.db.records, id)
	return nil
}

type memoryNotificationRepository struct{ db *memoryDB }

func (r *memoryNotificationRepository) Create(_ context.Context, n *models.Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.insert(&n.BaseModel)
	r.db.notifications[n.ID] = *n
	return nil
}

func (r *memoryNotificationRepository) FindByID(_ context.Context, id string) (*models.Notification, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	n, ok := r.db.notifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &n, nil
}

func (r *memoryNotificationRepository) ListRecent(_ context.Context, doctorID string, limit int) ([]models.Notification, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []models.Notification
	for _, n := range r.db.notifications {
		if n.DoctorID == doctorID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return r.db.newerFirst(out[i].ID, out[i].CreatedAt, out[j].ID, out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryNotificationRepository) Save(_ context.Context, n *models.Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.notifications[n.ID]; !ok {
		return ErrNotFound
	}
	n.Touch(r.db.now())
	r.db.notifications[n.ID] = *n
	return nil
}
