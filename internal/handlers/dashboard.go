package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"healthtracker-server/internal/models"
	"healthtracker-server/internal/repository"
	"healthtracker-server/internal/utils"
)

// DashboardHandler summarises the practice for the doctor's home screen.
type DashboardHandler struct {
	Store        *repository.Store
	UpcomingDays int
	Now          func() time.Time
}

// NewDashboardHandler creates a dashboard looking upcomingDays ahead.
func NewDashboardHandler(store *repository.Store, upcomingDays int) *DashboardHandler {
	if upcomingDays <= 0 {
		upcomingDays = 15
	}
	return &DashboardHandler{Store: store, UpcomingDays: upcomingDays, Now: time.Now}
}

// DashboardStats are the headline counters.
type DashboardStats struct {
	models.PatientStats
	UpcomingAppointments int `json:"upcomingAppointments"`
}

// Dashboard is the response body of GetDashboard.
type Dashboard struct {
	Stats                DashboardStats        `json:"stats"`
	RecentActivity       []models.HealthRecord `json:"recentActivity"`
	UpcomingAppointments []models.Appointment  `json:"upcomingAppointments"`
}

// GetDashboard returns patient counts, the three latest health records and
// the live appointments in the coming window.
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := h.Store.Patients.Stats(ctx)
	if err != nil {
		utils.InternalServerError(c, "Failed to count patients: "+err.Error())
		return
	}

	from := h.Now()
	to := from.AddDate(0, 0, h.UpcomingDays)
	upcoming, err := h.Store.Appointments.List(ctx, repository.AppointmentFilter{
		From:            &from,
		To:              &to,
		ExcludeStatuses: []models.AppointmentStatus{models.StatusCancelled, models.StatusCompleted},
	})
	if err != nil {
		utils.InternalServerError(c, "Failed to load appointments: "+err.Error())
		return
	}

	recent, err := h.Store.HealthRecords.List(ctx, repository.HealthRecordFilter{Limit: 3})
	if err != nil {
		utils.InternalServerError(c, "Failed to load recent activity: "+err.Error())
		return
	}

	utils.Success(c, "Dashboard retrieved successfully", Dashboard{
		Stats:                DashboardStats{PatientStats: stats, UpcomingAppointments: len(upcoming)},
		RecentActivity:       recent,
		UpcomingAppointments: upcoming,
	})
}
