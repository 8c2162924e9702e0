package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Lordevs/legacyverse-backend/internal/database"
)

// RequireAdminMiddleware 只放行启用中的 staff 或 superuser。
// 每次请求都查库确认角色。
func RequireAdminMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint(UserIDKey)
		if userID == 0 {
			abortUnauthorized(c)
			return
		}

		var user database.User
		if err := db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
			LoggerFromContext(c).Info("admin check: user lookup failed", zap.Uint("user_id", userID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin privileges required"})
			return
		}
		if !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin privileges required"})
			return
		}
		c.Next()
	}
}
