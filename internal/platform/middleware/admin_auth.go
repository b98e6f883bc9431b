package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/villa-stay/service-booking/internal/platform/response"
)

// AdminKeyMiddleware requires "Authorization: Bearer <key>". An empty key locks the routes.
func AdminKeyMiddleware(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if key == "" || !ok || subtle.ConstantTimeCompare([]byte(token), []byte(key)) != 1 {
			response.Unauthorized(c, "invalid admin credentials")
			return
		}
		c.Next()
	}
}
