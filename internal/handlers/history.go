package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"healthtracker-server/internal/export"
	"healthtracker-server/internal/middleware"
	"healthtracker-server/internal/models"
	"healthtracker-server/internal/repository"
	"healthtracker-server/internal/utils"
)

const (
	contentTypePDF  = "application/pdf"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypePNG  = "image/png"
)

// HistoryHandler serves a patient's medical history as JSON or as a
// downloadable document.
type HistoryHandler struct {
	Store *repository.Store
	Loc   *time.Location
	Now   func() time.Time
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(store *repository.Store, loc *time.Location) *HistoryHandler {
	return &HistoryHandler{Store: store, Loc: loc, Now: time.Now}
}

// GetHistory returns the history as JSON.
func (h *HistoryHandler) GetHistory(c *gin.Context) {
	history, ok := h.load(c)
	if !ok {
		return
	}
	utils.Success(c, "Medical history retrieved successfully", history)
}

func (h *HistoryHandler) DownloadPDF(c *gin.Context) {
	h.download(c, "pdf", contentTypePDF, export.WritePDF)
}

func (h *HistoryHandler) DownloadExcel(c *gin.Context) {
	h.download(c, "xlsx", contentTypeXLSX, export.WriteExcel)
}

func (h *HistoryHandler) DownloadImage(c *gin.Context) {
	h.download(c, "png", contentTypePNG, export.WritePNG)
}

// download renders into memory first so a failed render still gets a JSON
// error instead of a truncated file.
func (h *HistoryHandler) download(c *gin.Context, ext, contentType string, render func(io.Writer, export.History) error) {
	history, ok := h.load(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := render(&buf, history); err != nil {
		_ = c.Error(err)
		utils.InternalServerError(c, "Failed to generate "+ext+": "+err.Error())
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+history.Filename(ext)+`"`)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// load fetches the patient and their health records. Patients may only
// read their own history.
func (h *HistoryHandler) load(c *gin.Context) (export.History, bool) {
	ctx := c.Request.Context()

	patient, err := h.Store.Patients.FindByID(ctx, c.Param("patientId"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.NotFound(c, "Patient not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return export.History{}, false
	}

	if role, _ := middleware.GetUserRoleFromContext(c); role != models.RoleDoctor {
		identityID, _ := middleware.GetUserIDFromContext(c)
		if patient.AuthRef != identityID {
			utils.Forbidden(c, "You can only view your own medical history.")
			return export.History{}, false
		}
	}

	records, err := h.Store.HealthRecords.List(ctx, repository.HealthRecordFilter{PatientID: patient.ID})
	if err != nil {
		utils.InternalServerError(c, "Failed to load health records: "+err.Error())
		return export.History{}, false
	}
	return export.NewHistory(patient, records, h.Now(), h.Loc), true
}
