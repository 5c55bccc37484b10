package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/assetflow/backend/internal/application/services"
	"github.com/assetflow/backend/pkg/constants"
)

type NotificationHandler struct {
	svc *services.NotificationService
}

func NewNotificationHandler(svc *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// GetSummary handles GET /api/notifications/summary, the polling endpoint
// behind the header badge: pending count plus the newest pending tasks.
func (h *NotificationHandler) GetSummary(c *gin.Context) {
	user := GetUserFromContext(c)
	limit := queryInt(c, "limit", 5)

	HandleGetEnvelope(c, "data", func() (interface{}, error) {
		return h.svc.Summary(c.Request.Context(), user, limit)
	})
}

// GetNotifications handles GET /api/notifications
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	user := GetUserFromContext(c)
	limit := queryInt(c, "limit", constants.DefaultPageSize)

	HandleGetEnvelope(c, "data", func() (interface{}, error) {
		return h.svc.ListNotifications(c.Request.Context(), user, limit)
	})
}

// MarkAsRead handles POST /api/notifications/:id/read
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	user := GetUserFromContext(c)
	id := c.Param("id")

	HandleDeleteEnvelope(c, "Notification marked as read", func() error {
		return h.svc.MarkRead(c.Request.Context(), id, user)
	})
}
