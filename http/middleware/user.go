package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// The gateway authenticates and forwards the caller's identity in this
// header; this service trusts it.
const customUserIDHeader = "X-User-Id"
const userIDContextKey = "x-user-id"

func NewUser(c *gin.Context) {
	h := c.GetHeader(customUserIDHeader)

	userID, err := strconv.ParseUint(h, 10, 64)
	if err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	c.Set(userIDContextKey, userID)

	c.Next()
}

func GetUserIDFromContext(c *gin.Context) uint64 {
	return c.GetUint64(userIDContextKey)
}
