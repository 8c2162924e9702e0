package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Lordevs/legacyverse-backend/internal/api/middleware"
	"github.com/Lordevs/legacyverse-backend/internal/profile"
)

func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func AbortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

func Unauthorized(c *gin.Context)           { Error(c, http.StatusUnauthorized, "unauthorized") }
func BadRequest(c *gin.Context, msg string) { Error(c, http.StatusBadRequest, msg) }
func Forbidden(c *gin.Context, msg string)  { Error(c, http.StatusForbidden, msg) }
func NotFound(c *gin.Context, msg string)   { Error(c, http.StatusNotFound, msg) }
func Conflict(c *gin.Context, msg string)   { Error(c, http.StatusConflict, msg) }
func Internal(c *gin.Context, msg string)   { Error(c, http.StatusInternalServerError, msg) }

// serviceError 把 profile 包的错误映射为 HTTP 响应。
// 校验错误 400，不存在 404，其余记录日志后 500。
func serviceError(c *gin.Context, err error, action string) {
	var validation *profile.ValidationError
	switch {
	case errors.As(err, &validation):
		BadRequest(c, validation.Message)
	case errors.Is(err, profile.ErrSectionNotFound),
		errors.Is(err, profile.ErrImageNotFound),
		errors.Is(err, profile.ErrUserNotFound):
		NotFound(c, err.Error())
	default:
		middleware.LoggerFromContext(c).Error(action+" failed", zap.Error(err))
		Internal(c, "failed to "+action)
	}
}

func userIDFromContext(c *gin.Context) (uint, bool) {
	userID := c.GetUint(middleware.UserIDKey)
	return userID, userID != 0
}
