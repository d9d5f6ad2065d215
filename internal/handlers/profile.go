package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"healthtracker-server/internal/middleware"
	"healthtracker-server/internal/models"
	"healthtracker-server/internal/repository"
	"healthtracker-server/internal/storage"
	"healthtracker-server/internal/utils"
)

// ProfileHandler lets a signed-in patient read and edit their own record.
type ProfileHandler struct {
	Store    *repository.Store
	Images   storage.Store
	DoctorID string
	Loc      *time.Location
	Logger   *zap.Logger
	Now      func() time.Time
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(store *repository.Store, images storage.Store, doctorID string, loc *time.Location, logger *zap.Logger) *ProfileHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileHandler{
		Store:    store,
		Images:   images,
		DoctorID: doctorID,
		Loc:      loc,
		Logger:   logger,
		Now:      time.Now,
	}
}

// ProfileUpdate lists the fields a patient may change on their profile.
type ProfileUpdate struct {
	Name             *string `json:"name" binding:"omitempty,min=2,max=50"`
	Email            *string `json:"email"`
	Phone            *string `json:"phone"`
	DOB              *string `json:"dob"`
	Gender           *string `json:"gender"`
	BloodGroup       *string `json:"bloodGroup"`
	Address          *string `json:"address"`
	MedicalHistory   *string `json:"medicalHistory"`
	Allergies        *string `json:"allergies"`
	EmergencyContact *string `json:"emergencyContact"`
	Insurance        *string `json:"insurance"`
}

// formFields maps multipart field names onto the update.
func (u *ProfileUpdate) formFields() map[string]**string {
	return map[string]**string{
		"name":             &u.Name,
		"email":            &u.Email,
		"phone":            &u.Phone,
		"dob":              &u.DOB,
		"gender":           &u.Gender,
		"bloodGroup":       &u.BloodGroup,
		"address":          &u.Address,
		"medicalHistory":   &u.MedicalHistory,
		"allergies":        &u.Allergies,
		"emergencyContact": &u.EmergencyContact,
		"insurance":        &u.Insurance,
	}
}

const profileImageField = "profileImage"

// GetProfile returns the caller's patient record, creating it on first use.
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	patient, ok := h.currentPatient(c)
	if !ok {
		return
	}
	utils.Success(c, "Profile retrieved successfully", patient)
}

// PatientRef is the response of GetByAuth.
type PatientRef struct {
	PatientID string          `json:"patientId"`
	Patient   *models.Patient `json:"patient"`
}

// GetByAuth resolves the caller's patient ID, which the history routes take.
func (h *ProfileHandler) GetByAuth(c *gin.Context) {
	patient, ok := h.currentPatient(c)
	if !ok {
		return
	}
	utils.Success(c, "Patient retrieved successfully", PatientRef{PatientID: patient.ID, Patient: patient})
}

// currentPatient resolves the caller's patient record for the clinic doctor.
// A record is created from the identity when none exists yet.
func (h *ProfileHandler) currentPatient(c *gin.Context) (*models.Patient, bool) {
	identity, ok := middleware.GetIdentityFromContext(c)
	if !ok {
		utils.Forbidden(c, "Profile is only available to patients")
		return nil, false
	}
	ctx := c.Request.Context()

	patient, err := h.Store.Patients.FindByAuthRef(ctx, h.DoctorID, identity.ID)
	if err == nil {
		return patient, true
	}
	if !errors.Is(err, repository.ErrNotFound) {
		utils.InternalServerError(c, "Database error: "+err.Error())
		return nil, false
	}

	patient = &models.Patient{
		DoctorID: h.DoctorID,
		AuthRef:  identity.ID,
		Name:     identity.Name,
		Email:    identity.Email,
		Phone:    identity.Phone,
		Status:   models.PatientActive,
	}
	if err := h.Store.Patients.Create(ctx, patient); err != nil {
		// A concurrent request may have created it first.
		if errors.Is(err, repository.ErrDuplicate) {
			if existing, ferr := h.Store.Patients.FindByAuthRef(ctx, h.DoctorID, identity.ID); ferr == nil {
				return existing, true
			}
		}
		fail(c, err, "Failed to create profile")
		return nil, false
	}
	h.Logger.Info("patient profile created", zap.String("patient_id", patient.ID), zap.String("identity_id", identity.ID))
	return patient, true
}

// UpdateProfile merges the whitelisted fields into the caller's profile.
// Multipart requests may carry a profileImage file.
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	var update ProfileUpdate
	var image []byte

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		var ok bool
		if image, ok = h.bindMultipart(c, &update); !ok {
			return
		}
	} else if !utils.BindStrict(c, &update) {
		return
	}

	patient, ok := h.currentPatient(c)
	if !ok {
		return
	}
	if !h.apply(c, patient, &update) {
		return
	}

	ctx := c.Request.Context()
	if image != nil {
		url, err := h.Images.Put(ctx, "profiles/"+patient.ID+".jpg", "image/jpeg", image)
		if err != nil {
			utils.InternalServerError(c, "Failed to store profile image: "+err.Error())
			return
		}
		patient.ProfileImage = url
	}

	if err := h.Store.Patients.Save(ctx, patient); err != nil {
		fail(c, err, "Failed to update profile")
		return
	}
	utils.Success(c, "Profile updated successfully", patient)
}

// bindMultipart fills update from form values and returns the processed
// profile image, if one was sent.
func (h *ProfileHandler) bindMultipart(c *gin.Context, update *ProfileUpdate) ([]byte, bool) {
	if err := c.Request.ParseMultipartForm(storage.MaxImageBytes + 1<<20); err != nil {
		utils.BadRequest(c, "Invalid multipart payload: "+err.Error())
		return nil, false
	}

	fields := update.formFields()
	for key, values := range c.Request.MultipartForm.Value {
		dst, ok := fields[key]
		if !ok {
			utils.BadRequest(c, "Invalid request payload: unknown field \""+key+"\"")
			return nil, false
		}
		if len(values) > 0 {
			v := values[0]
			*dst = &v
		}
	}
	if update.Name != nil {
		if n := len(strings.TrimSpace(*update.Name)); n < 2 || n > 50 {
			utils.BadRequest(c, "Validation failed: name must be between 2 and 50 characters")
			return nil, false
		}
	}

	header, err := c.FormFile(profileImageField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, true
	}
	if err != nil {
		utils.BadRequest(c, "Invalid profile image: "+err.Error())
		return nil, false
	}
	if header.Size > storage.MaxImageBytes {
		utils.BadRequest(c, storage.ErrImageTooLarge.Error())
		return nil, false
	}

	f, err := header.Open()
	if err != nil {
		utils.InternalServerError(c, "Failed to read profile image: "+err.Error())
		return nil, false
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, storage.MaxImageBytes+1))
	if err != nil {
		utils.InternalServerError(c, "Failed to read profile image: "+err.Error())
		return nil, false
	}
	image, err := storage.PrepareProfileImage(raw)
	if err != nil {
		if errors.Is(err, storage.ErrNotImage) || errors.Is(err, storage.ErrImageTooLarge) {
			utils.BadRequest(c, err.Error())
		} else {
			utils.InternalServerError(c, "Failed to process profile image: "+err.Error())
		}
		return nil, false
	}
	return image, true
}

func (h *ProfileHandler) apply(c *gin.Context, patient *models.Patient, update *ProfileUpdate) bool {
	if name, ok := trimmed(update.Name); ok {
		patient.Name = name
	} else if update.Name != nil {
		utils.BadRequest(c, "Name must be a non-empty string")
		return false
	}
	if update.Gender != nil {
		gender, ok := models.ParseGender(*update.Gender)
		if !ok {
			utils.BadRequest(c, "Gender must be Male, Female or Other")
			return false
		}
		patient.Gender = gender
	}
	if update.DOB != nil {
		dob, err := optionalDate(update.DOB, h.Loc)
		if err != nil || (dob != nil && dob.After(h.Now())) {
			utils.BadRequest(c, "Invalid Date of Birth")
			return false
		}
		patient.DOB = dob
	}
	if update.Email != nil {
		patient.Email = models.NormalizeEmail(*update.Email)
	}
	setString(&patient.Phone, update.Phone)
	setString(&patient.BloodGroup, update.BloodGroup)
	setString(&patient.Address, update.Address)
	setString(&patient.MedicalHistory, update.MedicalHistory)
	setString(&patient.Allergies, update.Allergies)
	setString(&patient.EmergencyContact, update.EmergencyContact)
	setString(&patient.Insurance, update.Insurance)
	return true
}
