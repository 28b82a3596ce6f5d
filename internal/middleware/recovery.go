package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RecoveryMiddleware converts panics into 500 responses carrying the
// standard error envelope. Stack logging is left to gin's recovery
// writer.
func RecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err any) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"code":    -1,
			"message": "internal server error",
		})
	})
}
