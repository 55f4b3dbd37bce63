package route

import (
	"github.com/gin-gonic/gin"
	"github.com/collabhub/realtime/http/handler"
)

func realtimeRouter(r gin.IRouter, h *handler.Realtime) {
	r.GET("/realtime/ws", h.WebSocket)
}
