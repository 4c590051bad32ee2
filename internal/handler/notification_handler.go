package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

// NotificationHandler exposes a recipient's pending notifications.
type NotificationHandler struct {
	service *service.NotificationService
}

// NewNotificationHandler constructs handler.
func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: svc}
}

// ListMine godoc
// @Summary List the caller's notifications
// @Tags Notifications
// @Produce json
// @Param unreadOnly query bool false "Only unread"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	notifications, err := h.service.ListByRecipient(c.Request.Context(), claims.UserID, c.Query("unreadOnly") == "true")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notifications, nil)
}

// MarkRead godoc
// @Summary Mark one of the caller's notifications as read
// @Tags Notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 204
// @Router /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
