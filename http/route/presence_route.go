package route

import (
	"github.com/gin-gonic/gin"
	"github.com/collabhub/realtime/http/handler"
)

func presenceRouter(r gin.IRouter, h *handler.Presence) {
	presence := r.Group("/presence")

	presence.GET("/:userId", h.Get)
	presence.PUT("/afk", h.SetAFK)
	presence.DELETE("/afk", h.ClearAFK)
	presence.POST("/break", h.StartBreak)
	presence.DELETE("/break", h.EndBreak)
}
