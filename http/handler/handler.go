package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	Realtime     *Realtime
	Presence     *Presence
	Notification *Notification
}

func NewHandler(
	realtime *Realtime,
	presence *Presence,
	notification *Notification,
) *Handler {
	return &Handler{
		Realtime:     realtime,
		Presence:     presence,
		Notification: notification,
	}
}

func abortWithInternalError(c *gin.Context, log *zap.Logger, err error) {
	log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.AbortWithStatus(http.StatusInternalServerError)
}
