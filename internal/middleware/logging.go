package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// LoggingMiddleware logs one line per request.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		log.Printf("[%s] %s %s | Status: %d | Latency: %v",
			c.Request.Method,
			path,
			query,
			c.Writer.Status(),
			time.Since(start),
		)
	}
}
