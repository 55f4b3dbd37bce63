package route

import (
	"github.com/gin-gonic/gin"
	"github.com/collabhub/realtime/bootstrap"
	"github.com/collabhub/realtime/http/handler"
	"github.com/collabhub/realtime/http/middleware"
)

const v1Prefix = "/v1"

func Setup(h *handler.Handler, envName string) *gin.Engine {
	if envName == bootstrap.ProductionEnvironmentName {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	eng := gin.Default()

	eng.SetTrustedProxies(nil)

	v1 := eng.Group(v1Prefix, middleware.NewUser)
	{
		realtimeRouter(v1, h.Realtime)
		presenceRouter(v1, h.Presence)
		notificationRouter(v1, h.Notification)
	}

	return eng
}
