package route

import (
	"github.com/gin-gonic/gin"
	"github.com/collabhub/realtime/http/handler"
)

func notificationRouter(r gin.IRouter, h *handler.Notification) {
	notifications := r.Group("/notifications")

	notifications.GET("", h.List)
	notifications.GET("/unread", h.UnreadCount)
	notifications.POST("/:eventId/read", h.MarkRead)
}
