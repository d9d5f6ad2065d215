package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"healthtracker-server/internal/repository"
	"healthtracker-server/internal/utils"
)

// NotificationHandler serves the doctor's activity feed.
type NotificationHandler struct {
	Store *repository.Store
	Limit int
	Now   func() time.Time
}

// NewNotificationHandler creates a handler returning at most limit entries.
func NewNotificationHandler(store *repository.Store, limit int) *NotificationHandler {
	if limit <= 0 {
		limit = 10
	}
	return &NotificationHandler{Store: store, Limit: limit, Now: time.Now}
}

// GetNotifications returns the newest notifications for :doctorId.
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	doctorID := c.Param("doctorId")
	if !isUUID(doctorID) {
		utils.BadRequest(c, "Invalid doctorId parameter. It must be a valid UUID.")
		return
	}

	notifications, err := h.Store.Notifications.ListRecent(c.Request.Context(), doctorID, h.Limit)
	if err != nil {
		utils.InternalServerError(c, "Error fetching notifications: "+err.Error())
		return
	}
	utils.Success(c, "Notifications retrieved successfully", notifications)
}

// MarkRead flags one notification as read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	doctorID := c.Param("doctorId")
	if !isUUID(doctorID) {
		utils.BadRequest(c, "Invalid doctorId parameter. It must be a valid UUID.")
		return
	}
	ctx := c.Request.Context()

	notification, err := h.Store.Notifications.FindByID(ctx, c.Param("notificationId"))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		utils.InternalServerError(c, "Error fetching notification: "+err.Error())
		return
	}
	if err != nil || notification.DoctorID != doctorID {
		utils.NotFound(c, "Notification not found")
		return
	}

	notification.MarkRead(h.Now())
	if err := h.Store.Notifications.Save(ctx, notification); err != nil {
		fail(c, err, "Failed to update notification")
		return
	}
	utils.Success(c, "Notification marked as read", notification)
}
