package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"healthtracker-server/internal/config"
	"healthtracker-server/internal/mailer"
	"healthtracker-server/internal/middleware"
	"healthtracker-server/internal/models"
	"healthtracker-server/internal/repository"
	"healthtracker-server/internal/utils"
)

// PatientHandler serves the doctor's patient roster and each patient's
// history, visit and prescription lists.
type PatientHandler struct {
	Store  *repository.Store
	Cfg    *config.Config
	Mailer mailer.Sender
	Logger *zap.Logger
	Loc    *time.Location
	Now    func() time.Time
}

// NewPatientHandler creates a new PatientHandler.
func NewPatientHandler(store *repository.Store, cfg *config.Config, sender mailer.Sender, logger *zap.Logger) *PatientHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PatientHandler{Store: store, Cfg: cfg, Mailer: sender, Logger: logger, Loc: cfg.Location(), Now: time.Now}
}

// AddPatientRequest links a registered identity to the doctor's roster.
type AddPatientRequest struct {
	Name      string  `json:"name" binding:"required,min=2,max=50"`
	Age       *int    `json:"age" binding:"required,min=0,max=120"`
	Gender    string  `json:"gender" binding:"required"`
	Phone     string  `json:"phone" binding:"required,len=10,numeric"`
	Email     string  `json:"email" binding:"required,email"`
	Allergies string  `json:"allergies" binding:"max=300"`
	NextVisit *string `json:"nextVisit"`
	Status    string  `json:"status"`
}

// AddPatient adds a registered identity to the doctor's list.
func (h *PatientHandler) AddPatient(c *gin.Context) {
	var req AddPatientRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	ctx := c.Request.Context()
	doctorID, _ := middleware.GetUserIDFromContext(c)

	gender, ok := models.ParseGender(req.Gender)
	if !ok {
		utils.BadRequest(c, "Gender must be Male, Female or Other")
		return
	}
	status := models.PatientActive
	if req.Status != "" {
		if status, ok = models.ParsePatientStatus(req.Status); !ok {
			utils.BadRequest(c, "Status must be Active or Critical")
			return
		}
	}
	nextVisit, err := optionalDate(req.NextVisit, h.Loc)
	if err != nil {
		utils.BadRequest(c, "nextVisit must be a valid date")
		return
	}

	identity, err := h.Store.Identities.FindByEmailAndPhone(ctx, req.Email, req.Phone)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.NotFound(c, "This patient is not registered. Please ask patient to register first.")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	if _, err := h.Store.Patients.FindByAuthRef(ctx, doctorID, identity.ID); err == nil {
		utils.Conflict(c, "This patient is already in your list.")
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		utils.InternalServerError(c, "Database error: "+err.Error())
		return
	}

	patient := &models.Patient{
		DoctorID:  doctorID,
		AuthRef:   identity.ID,
		Name:      strings.TrimSpace(req.Name),
		Age:       *req.Age,
		Gender:    gender,
		Phone:     req.Phone,
		Email:     models.NormalizeEmail(req.Email),
		Allergies: strings.TrimSpace(req.Allergies),
		Status:    status,
		NextVisit: nextVisit,
	}
	if err := h.Store.Patients.Create(ctx, patient); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			utils.Conflict(c, "This patient is already in your list.")
			return
		}
		fail(c, err, "Server error while adding patient")
		return
	}

	utils.Created(c, "Patient added successfully to doctor's list", patient)
}

// GetPatients lists every patient, newest first.
func (h *PatientHandler) GetPatients(c *gin.Context) {
	patients, err := h.Store.Patients.List(c.Request.Context())
	if err != nil {
		utils.InternalServerError(c, "Server error while fetching patients: "+err.Error())
		return
	}
	utils.Success(c, "Patients retrieved successfully", patients)
}

// GetPatientByID returns one patient with its child lists.
func (h *PatientHandler) GetPatientByID(c *gin.Context) {
	patient, ok := h.loadPatient(c)
	if !ok {
		return
	}
	utils.Success(c, "Patient retrieved successfully", patient)
}

func (h *PatientHandler) loadPatient(c *gin.Context) (*models.Patient, bool) {
	patient, err := h.Store.Patients.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.NotFound(c, "Patient not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return nil, false
	}
	return patient, true
}

// UpdatePatientRequest lists the fields the doctor may change. Fields not
// listed here are rejected.
type UpdatePatientRequest struct {
	Name             *string `json:"name" binding:"omitempty,min=2,max=50"`
	Age              *int    `json:"age" binding:"omitempty,min=0,max=120"`
	Gender           *string `json:"gender"`
	Phone            *string `json:"phone"`
	Email            *string `json:"email"`
	Allergies        *string `json:"allergies"`
	Status           *string `json:"status"`
	NextVisit        *string `json:"nextVisit"`
	DOB              *string `json:"dob"`
	BloodGroup       *string `json:"bloodGroup"`
	Address          *string `json:"address"`
	MedicalHistory   *string `json:"medicalHistory"`
	EmergencyContact *string `json:"emergencyContact"`
	Insurance        *string `json:"insurance"`
}

// UpdatePatient merges the provided fields into the patient.
func (h *PatientHandler) UpdatePatient(c *gin.Context) {
	var req UpdatePatientRequest
	if !utils.BindStrict(c, &req) {
		return
	}
	patient, ok := h.loadPatient(c)
	if !ok {
		return
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			utils.BadRequest(c, "Name must be a non-empty string")
			return
		}
		patient.Name = strings.TrimSpace(*req.Name)
	}
	if req.Age != nil {
		patient.Age = *req.Age
	}
	if req.Gender != nil {
		gender, ok := models.ParseGender(*req.Gender)
		if !ok {
			utils.BadRequest(c, "Gender must be Male, Female or Other")
			return
		}
		patient.Gender = gender
	}
	if req.Status != nil {
		status, ok := models.ParsePatientStatus(*req.Status)
		if !ok {
			utils.BadRequest(c, "Status must be Active or Critical")
			return
		}
		patient.Status = status
	}
	if req.NextVisit != nil {
		nextVisit, err := optionalDate(req.NextVisit, h.Loc)
		if err != nil {
			utils.BadRequest(c, "nextVisit must be a valid date")
			return
		}
		patient.NextVisit = nextVisit
	}
	if req.DOB != nil {
		dob, err := optionalDate(req.DOB, h.Loc)
		if err != nil || (dob != nil && dob.After(h.Now())) {
			utils.BadRequest(c, "Invalid Date of Birth")
			return
		}
		patient.DOB = dob
	}
	if req.Email != nil {
		patient.Email = models.NormalizeEmail(*req.Email)
	}
	setString(&patient.Phone, req.Phone)
	setString(&patient.Allergies, req.Allergies)
	setString(&patient.BloodGroup, req.BloodGroup)
	setString(&patient.Address, req.Address)
	setString(&patient.MedicalHistory, req.MedicalHistory)
	setString(&patient.EmergencyContact, req.EmergencyContact)
	setString(&patient.Insurance, req.Insurance)

	if err := h.Store.Patients.Save(c.Request.Context(), patient); err != nil {
		fail(c, err, "Failed to update patient")
		return
	}
	utils.Success(c, "Patient updated successfully", patient)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

// AddHistoryRequest appends a note to the patient's history.
type AddHistoryRequest struct {
	Date    string `json:"date" binding:"required"`
	Details string `json:"details" binding:"required"`
}

// AddHistory appends a dated history entry.
func (h *PatientHandler) AddHistory(c *gin.Context) {
	var req AddHistoryRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	date, err := parseDate(req.Date, h.Loc)
	if err != nil {
		utils.BadRequest(c, "Valid date is required")
		return
	}
	if strings.TrimSpace(req.Details) == "" {
		utils.BadRequest(c, "History details are required")
		return
	}

	patient, ok := h.loadPatient(c)
	if !ok {
		return
	}
	patient.AddHistory(date, req.Details)
	h.save(c, patient, "History added successfully")
}

// AddVisitRequest records a visit on the patient's chart. Every field is
// optional.
type AddVisitRequest struct {
	Date   string `json:"date"`
	Doctor string `json:"doctor"`
	Status string `json:"status"`
}

// AddAppointment records a visit and e-mails the patient a confirmation.
func (h *PatientHandler) AddAppointment(c *gin.Context) {
	var req AddVisitRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	date := h.Now()
	if strings.TrimSpace(req.Date) != "" {
		parsed, err := parseDate(req.Date, h.Loc)
		if err != nil {
			utils.BadRequest(c, "Valid date is required")
			return
		}
		date = parsed
	}
	doctor := strings.TrimSpace(req.Doctor)
	if doctor == "" {
		doctor = h.Cfg.Clinic.DoctorName
	}
	var status models.AppointmentStatus
	if req.Status != "" {
		var ok bool
		if status, ok = models.ParseAppointmentStatus(req.Status); !ok {
			utils.BadRequest(c, "Invalid appointment status")
			return
		}
	}

	patient, ok := h.loadPatient(c)
	if !ok {
		return
	}
	added := *patient.AddVisit(date, doctor, status)
	if err := h.Store.Patients.Save(c.Request.Context(), patient); err != nil {
		fail(c, err, "Failed to add appointment")
		return
	}
	h.sendVisitConfirmation(c.Request.Context(), patient, added)
	utils.Success(c, "Appointment added successfully", patient)
}

func (h *PatientHandler) sendVisitConfirmation(ctx context.Context, patient *models.Patient, visit models.VisitAppointment) {
	if h.Mailer == nil || patient.Email == "" {
		return
	}
	msg, err := mailer.ConfirmationMessage(patient.Email, patient.Name, visit.Doctor, "", visit.Date.In(h.Loc))
	if err == nil {
		err = h.Mailer.Send(ctx, msg)
	}
	if err != nil {
		h.Logger.Warn("visit confirmation email failed", zap.String("patient_id", patient.ID), zap.Error(err))
	}
}

// AddPrescriptionRequest appends a prescription.
type AddPrescriptionRequest struct {
	Date     string `json:"date" binding:"required"`
	Medicine string `json:"medicine" binding:"required,max=100"`
	Duration string `json:"duration" binding:"required,max=50"`
}

// AddPrescription appends a prescription to the patient.
func (h *PatientHandler) AddPrescription(c *gin.Context) {
	var req AddPrescriptionRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	date, err := parseDate(req.Date, h.Loc)
	if err != nil {
		utils.BadRequest(c, "Valid date is required")
		return
	}
	if strings.TrimSpace(req.Medicine) == "" || strings.TrimSpace(req.Duration) == "" {
		utils.BadRequest(c, "Medicine and duration are required")
		return
	}

	patient, ok := h.loadPatient(c)
	if !ok {
		return
	}
	patient.AddPrescription(date, req.Medicine, req.Duration)
	h.save(c, patient, "Prescription added successfully")
}

// UpdateVisitRequest changes a recorded visit. Blank fields are ignored.
type UpdateVisitRequest struct {
	Date   *string `json:"date"`
	Doctor *string `json:"doctor"`
	Status *string `json:"status"`
}

// UpdateAppointment edits one visit on the patient's chart.
func (h *PatientHandler) UpdateAppointment(c *gin.Context) {
	var req UpdateVisitRequest
	if !utils.BindStrict(c, &req) {
		return
	}

	var patch models.VisitPatch
	if raw, ok := trimmed(req.Date); ok {
		date, err := parseDate(raw, h.Loc)
		if err != nil {
			utils.BadRequest(c, "Valid date is required")
			return
		}
		patch.Date = &date
	}
	if doctor, ok := trimmed(req.Doctor); ok {
		patch.Doctor = &doctor
	}
	if raw, ok := trimmed(req.Status); ok {
		status, ok := models.ParseAppointmentStatus(raw)
		if !ok {
			utils.BadRequest(c, "Invalid appointment status")
			return
		}
		patch.Status = &status
	}

	patient, ok := h.loadPatient(c)
	if !ok {
		return
	}
	if _, err := patient.UpdateVisit(c.Param("appointmentId"), patch); err != nil {
		utils.NotFound(c, "Appointment not found")
		return
	}
	h.save(c, patient, "Appointment updated successfully")
}

// DeleteAppointment removes one visit from the patient's chart.
func (h *PatientHandler) DeleteAppointment(c *gin.Context) {
	patient, ok := h.loadPatient(c)
	if !ok {
		return
	}
	if err := patient.RemoveVisit(c.Param("appointmentId")); err != nil {
		utils.NotFound(c, "Appointment not found")
		return
	}
	h.save(c, patient, "Appointment deleted successfully")
}

// UpdatePrescriptionRequest changes a prescription. Blank fields are ignored.
type UpdatePrescriptionRequest struct {
	Date     *string `json:"date"`
	Medicine *string `json:"medicine"`
	Duration *string `json:"duration"`
}

// UpdatePrescription edits one prescription.
func (h *PatientHandler) UpdatePrescription(c *gin.Context) {
	var req UpdatePrescriptionRequest
	if !utils.BindStrict(c, &req) {
		return
	}

	var patch models.PrescriptionPatch
	if raw, ok := trimmed(req.Date); ok {
		date, err := parseDate(raw, h.Loc)
		if err != nil {
			utils.BadRequest(c, "Valid date is required")
			return
		}
		patch.Date = &date
	}
	if medicine, ok := trimmed(req.Medicine); ok {
		patch.Medicine = &medicine
	}
	if duration, ok := trimmed(req.Duration); ok {
		patch.Duration = &duration
	}

	patient, ok := h.loadPatient(c)
	if !ok {
		return
	}
	if _, err := patient.UpdatePrescription(c.Param("prescriptionId"), patch); err != nil {
		utils.NotFound(c, "Prescription not found")
		return
	}
	h.save(c, patient, "Prescription updated successfully")
}

// DeletePrescription removes one prescription.
func (h *PatientHandler) DeletePrescription(c *gin.Context) {
	patient, ok := h.loadPatient(c)
	if !ok {
		return
	}
	if err := patient.RemovePrescription(c.Param("prescriptionId")); err != nil {
		utils.NotFound(c, "Prescription not found")
		return
	}
	h.save(c, patient, "Prescription deleted successfully")
}

func (h *PatientHandler) save(c *gin.Context, patient *models.Patient, message string) {
	if err := h.Store.Patients.Save(c.Request.Context(), patient); err != nil {
		fail(c, err, "Failed to save patient")
		return
	}
	utils.Success(c, message, patient)
}
