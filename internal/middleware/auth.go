package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zaxchat/zax-backend/internal/service/auth"
)

// RequireStaff rejects requests without a valid staff token and puts
// the staff identity into the request context.
func RequireStaff(authSvc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    -1,
				"message": "missing or malformed Authorization header",
			})
			c.Abort()
			return
		}

		claims, err := authSvc.Validate(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    -1,
				"message": "invalid or expired token",
			})
			c.Abort()
			return
		}

		c.Set("staff_id", claims.Subject)
		c.Set("staff_name", claims.DisplayName)
		c.Next()
	}
}

// StaffFromContext returns the authenticated staff identity set by
// RequireStaff. Both values are empty on unauthenticated routes.
func StaffFromContext(c *gin.Context) (id, name string) {
	if v, ok := c.Get("staff_id"); ok {
		id, _ = v.(string)
	}
	if v, ok := c.Get("staff_name"); ok {
		name, _ = v.(string)
	}
	return id, name
}
