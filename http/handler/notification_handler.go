package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/collabhub/realtime/domain"
	"github.com/collabhub/realtime/http/middleware"
	"go.uber.org/zap"
)

// Notification serves the persisted copies: the notification list and
// badge count a client loads after connecting or reconnecting.
type Notification struct {
	store domain.NotificationStore
	log   *zap.Logger
}

func NewNotification(store domain.NotificationStore, log *zap.Logger) *Notification {
	return &Notification{store: store, log: log}
}

type listNotificationsRequest struct {
	BeforeID *uint64 `form:"beforeId"`
}

func (h *Notification) List(c *gin.Context) {
	var params listNotificationsRequest
	if err := c.ShouldBindQuery(&params); err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	userID := middleware.GetUserIDFromContext(c)

	events, err := h.store.List(c.Request.Context(), userID, params.BeforeID, 20)
	if err != nil {
		abortWithInternalError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, events)
}

func (h *Notification) UnreadCount(c *gin.Context) {
	userID := middleware.GetUserIDFromContext(c)

	count, err := h.store.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		abortWithInternalError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread": count})
}

func (h *Notification) MarkRead(c *gin.Context) {
	eventID, err := strconv.ParseUint(c.Param("eventId"), 10, 64)
	if err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	userID := middleware.GetUserIDFromContext(c)

	if err := h.store.MarkRead(c.Request.Context(), userID, eventID); err != nil {
		abortWithInternalError(c, h.log, err)
		return
	}

	c.Status(http.StatusNoContent)
}
