package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"healthtracker-server/internal/booking"
	"healthtracker-server/internal/middleware"
	"healthtracker-server/internal/models"
	"healthtracker-server/internal/repository"
	"healthtracker-server/internal/utils"
)

// AppointmentHandler handles patient-initiated appointments.
type AppointmentHandler struct {
	Store    *repository.Store
	Booking  *booking.Service
	DoctorID string
	Loc      *time.Location
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(store *repository.Store, svc *booking.Service, doctorID string, loc *time.Location) *AppointmentHandler {
	return &AppointmentHandler{Store: store, Booking: svc, DoctorID: doctorID, Loc: loc}
}

// BookAppointmentRequest represents the request body for booking.
type BookAppointmentRequest struct {
	Date   string `json:"date" binding:"required"`
	Reason string `json:"reason" binding:"max=100"`
}

// BookAppointment books the signed-in patient with the clinic doctor.
func (h *AppointmentHandler) BookAppointment(c *gin.Context) {
	var req BookAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	identityID, _ := middleware.GetUserIDFromContext(c)

	appointment, err := h.Booking.Book(c.Request.Context(), identityID, req.Date, strings.TrimSpace(req.Reason))
	if err != nil {
		fail(c, err, "Failed to book appointment")
		return
	}
	utils.Created(c, "Appointment booked successfully", appointment)
}

// GetAppointments lists the caller's appointments. The doctor sees all.
func (h *AppointmentHandler) GetAppointments(c *gin.Context) {
	ctx := c.Request.Context()
	filter := repository.AppointmentFilter{}

	if role, _ := middleware.GetUserRoleFromContext(c); role != models.RoleDoctor {
		identityID, _ := middleware.GetUserIDFromContext(c)
		patient, err := h.Store.Patients.FindByAuthRef(ctx, h.DoctorID, identityID)
		if errors.Is(err, repository.ErrNotFound) {
			utils.Success(c, "No appointments found", []models.Appointment{})
			return
		}
		if err != nil {
			utils.InternalServerError(c, "Database error: "+err.Error())
			return
		}
		filter.PatientID = patient.ID
	}

	appointments, err := h.Store.Appointments.List(ctx, filter)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch appointments: "+err.Error())
		return
	}
	utils.Success(c, "Appointments retrieved successfully", appointments)
}

// RescheduleRequest moves an appointment or changes its status. Date and
// time are clinic wall-clock values and must be sent together.
type RescheduleRequest struct {
	Date   string `json:"date"`
	Time   string `json:"time"`
	Status string `json:"status"`
}

// UpdateAppointment reschedules or changes the status of an appointment.
// Patients may only touch their own.
func (h *AppointmentHandler) UpdateAppointment(c *gin.Context) {
	var req RescheduleRequest
	if !utils.BindStrict(c, &req) {
		return
	}
	ctx := c.Request.Context()

	appointment, err := h.Store.Appointments.FindByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.NotFound(c, "Appointment not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	role, _ := middleware.GetUserRoleFromContext(c)
	if role != models.RoleDoctor {
		identityID, _ := middleware.GetUserIDFromContext(c)
		if appointment.Patient == nil || appointment.Patient.AuthRef != identityID {
			utils.Forbidden(c, "You can only modify your own appointments.")
			return
		}
	}

	date, clock := strings.TrimSpace(req.Date), strings.TrimSpace(req.Time)
	if date != "" || clock != "" {
		if date == "" || clock == "" {
			utils.BadRequest(c, "Date and time must be provided together")
			return
		}
		raw := date + "T" + clock
		if role == models.RoleDoctor {
			// The doctor may place an appointment anywhere on the calendar.
			at, err := models.ParseDate(raw, h.Loc)
			if err != nil {
				utils.BadRequest(c, "Date must be YYYY-MM-DD and time HH:MM")
				return
			}
			appointment.Date = at
		} else if err := h.Booking.Reschedule(ctx, appointment, raw); err != nil {
			fail(c, err, "Failed to reschedule appointment")
			return
		}
	}
	if req.Status != "" {
		status, ok := models.ParseAppointmentStatus(req.Status)
		if !ok {
			utils.BadRequest(c, "Invalid appointment status")
			return
		}
		appointment.Status = status
	}

	if err := h.Store.Appointments.Save(ctx, appointment); err != nil {
		fail(c, err, "Failed to update appointment")
		return
	}
	updated, err := h.Store.Appointments.FindByID(ctx, appointment.ID)
	if err != nil {
		updated = appointment
	}
	utils.Success(c, "Appointment updated successfully", updated)
}
