package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"healthtracker-server/internal/middleware"
	"healthtracker-server/internal/models"
	"healthtracker-server/internal/repository"
	"healthtracker-server/internal/utils"
)

// AvailabilityHandler reads and replaces the doctor's booking window.
type AvailabilityHandler struct {
	Store *repository.Store
}

// NewAvailabilityHandler creates a new AvailabilityHandler.
func NewAvailabilityHandler(store *repository.Store) *AvailabilityHandler {
	return &AvailabilityHandler{Store: store}
}

// SetAvailabilityRequest is the whole schedule; it replaces the previous one.
type SetAvailabilityRequest struct {
	Days      []string `json:"days"`
	StartTime string   `json:"startTime"`
	EndTime   string   `json:"endTime"`
	Emergency *bool    `json:"emergency" binding:"required"`
}

// SetAvailability replaces the signed-in doctor's availability.
func (h *AvailabilityHandler) SetAvailability(c *gin.Context) {
	var req SetAvailabilityRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	doctorID, _ := middleware.GetUserIDFromContext(c)

	availability := &models.Availability{
		DoctorID:  doctorID,
		Days:      req.Days,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Emergency: *req.Emergency,
	}
	if err := h.Store.Availability.SetCurrent(c.Request.Context(), availability); err != nil {
		fail(c, err, "Failed to save availability")
		return
	}
	utils.Success(c, "Availability saved successfully", availability)
}

// GetAvailability returns the signed-in doctor's availability.
func (h *AvailabilityHandler) GetAvailability(c *gin.Context) {
	doctorID, _ := middleware.GetUserIDFromContext(c)

	availability, err := h.Store.Availability.GetCurrent(c.Request.Context(), doctorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.NotFound(c, "No availability set yet")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}
	utils.Success(c, "Availability retrieved successfully", availability)
}
