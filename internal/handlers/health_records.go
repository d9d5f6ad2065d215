package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"healthtracker-server/internal/models"
	"healthtracker-server/internal/repository"
	"healthtracker-server/internal/utils"
)

// HealthRecordHandler handles the doctor's consultation and lab records.
type HealthRecordHandler struct {
	Store *repository.Store
	Loc   *time.Location
}

// NewHealthRecordHandler creates a new HealthRecordHandler.
func NewHealthRecordHandler(store *repository.Store, loc *time.Location) *HealthRecordHandler {
	return &HealthRecordHandler{Store: store, Loc: loc}
}

// CreateHealthRecordRequest references the patient by name, as the
// doctor's form does.
type CreateHealthRecordRequest struct {
	Patient   string `json:"patient" binding:"required"`
	Date      string `json:"date" binding:"required"`
	Type      string `json:"type" binding:"required"`
	Provider  string `json:"provider" binding:"required"`
	Diagnosis string `json:"diagnosis" binding:"required"`
	Treatment string `json:"treatment" binding:"required"`
	Vitals    string `json:"vitals"`
}

// CreateHealthRecord adds a record for the patient with the given name.
func (h *HealthRecordHandler) CreateHealthRecord(c *gin.Context) {
	var req CreateHealthRecordRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	ctx := c.Request.Context()

	date, err := parseDate(req.Date, h.Loc)
	if err != nil {
		utils.BadRequest(c, "Valid date is required")
		return
	}

	patient, err := h.Store.Patients.FindByName(ctx, strings.TrimSpace(req.Patient))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.NotFound(c, "Patient not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	record := &models.HealthRecord{
		PatientID: patient.ID,
		Date:      date,
		Type:      models.RecordType(strings.TrimSpace(req.Type)),
		Provider:  strings.TrimSpace(req.Provider),
		Diagnosis: strings.TrimSpace(req.Diagnosis),
		Treatment: strings.TrimSpace(req.Treatment),
		Vitals:    strings.TrimSpace(req.Vitals),
	}
	if err := h.Store.HealthRecords.Create(ctx, record); err != nil {
		fail(c, err, "Server error while adding health record")
		return
	}
	record.Patient = patient

	utils.Created(c, "Health record added successfully", record)
}

// GetHealthRecords lists records newest first. ?patientId= narrows the list.
func (h *HealthRecordHandler) GetHealthRecords(c *gin.Context) {
	records, err := h.Store.HealthRecords.List(c.Request.Context(), repository.HealthRecordFilter{
		PatientID: c.Query("patientId"),
	})
	if err != nil {
		utils.InternalServerError(c, "Server error while fetching health records: "+err.Error())
		return
	}
	utils.Success(c, "Health records retrieved successfully", records)
}

// UpdateHealthRecordRequest lists the mutable fields of a record.
type UpdateHealthRecordRequest struct {
	Date      *string `json:"date"`
	Type      *string `json:"type"`
	Provider  *string `json:"provider"`
	Diagnosis *string `json:"diagnosis"`
	Treatment *string `json:"treatment"`
	Vitals    *string `json:"vitals"`
}

// UpdateHealthRecord merges the provided fields into the record.
func (h *HealthRecordHandler) UpdateHealthRecord(c *gin.Context) {
	var req UpdateHealthRecordRequest
	if !utils.BindStrict(c, &req) {
		return
	}
	ctx := c.Request.Context()

	record, err := h.Store.HealthRecords.FindByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.NotFound(c, "Health record not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	if req.Date != nil {
		date, err := parseDate(*req.Date, h.Loc)
		if err != nil {
			utils.BadRequest(c, "Valid date is required")
			return
		}
		record.Date = date
	}
	if req.Type != nil {
		record.Type = models.RecordType(strings.TrimSpace(*req.Type))
	}
	setString(&record.Provider, req.Provider)
	setString(&record.Diagnosis, req.Diagnosis)
	setString(&record.Treatment, req.Treatment)
	setString(&record.Vitals, req.Vitals)

	if err := h.Store.HealthRecords.Save(ctx, record); err != nil {
		fail(c, err, "Failed to update health record")
		return
	}
	utils.Success(c, "Health record updated successfully", record)
}

// DeleteHealthRecord removes a record.
func (h *HealthRecordHandler) DeleteHealthRecord(c *gin.Context) {
	if err := h.Store.HealthRecords.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.NotFound(c, "Health record not found")
		} else {
			utils.InternalServerError(c, "Failed to delete health record: "+err.Error())
		}
		return
	}
	utils.Success(c, "Health record deleted successfully", nil)
}
