package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// APIKeyAuth guards the trigger endpoints with an X-API-Key header check.
// An empty configured key disables the check entirely, which is how local
// development runs.
func APIKeyAuth(key string) gin.HandlerFunc {
	if key == "" {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		provided := strings.TrimSpace(c.GetHeader("X-API-Key"))
		switch {
		case provided == "":
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing X-API-Key header"})
		case provided != key:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid API key"})
		default:
			c.Next()
		}
	}
}
