package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Lordevs/legacyverse-backend/internal/api/middleware"
	"github.com/Lordevs/legacyverse-backend/internal/database"
	"github.com/Lordevs/legacyverse-backend/internal/profile"
	"github.com/Lordevs/legacyverse-backend/internal/tasks"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// TaskEnqueuer 是 asynq.Client 中用到的部分。
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AdminHandler 提供用户列表与后台维护任务入口。
type AdminHandler struct {
	db       *gorm.DB
	profiles *profile.Service
	queue    TaskEnqueuer
}

func NewAdminHandler(db *gorm.DB, profiles *profile.Service, queue TaskEnqueuer) *AdminHandler {
	return &AdminHandler{db: db, profiles: profiles, queue: queue}
}

// pagination 解析 page/page_size，非法值回落到默认值。
func pagination(c *gin.Context) (page, size int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err = strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if err != nil || size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

// ListUsers 分页列出用户，q 按邮箱、用户名或姓名模糊匹配。
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, size := pagination(c)
	query := h.db.WithContext(c.Request.Context()).Model(&database.User{})
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(username) LIKE ? OR LOWER(fullname) LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		middleware.LoggerFromContext(c).Error("count users failed", zap.Error(err))
		Internal(c, "failed to list users")
		return
	}

	var users []database.User
	if err := query.Order("id ASC").Offset((page - 1) * size).Limit(size).Find(&users).Error; err != nil {
		middleware.LoggerFromContext(c).Error("list users failed", zap.Error(err))
		Internal(c, "failed to list users")
		return
	}

	results := make([]userResponse, 0, len(users))
	for i := range users {
		results = append(results, newUserResponse(&users[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"count":     total,
		"page":      page,
		"page_size": size,
		"results":   results,
	})
}

// SweepImages 为目标用户投递孤儿图片清理任务，结果通过 WebSocket 通知发起的管理员。
func (h *AdminHandler) SweepImages(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil || userID == 0 {
		NotFound(c, profile.ErrUserNotFound.Error())
		return
	}
	ctx := c.Request.Context()
	if _, err := h.profiles.ResolveUser(ctx, uint(userID)); err != nil {
		serviceError(c, err, "resolve user")
		return
	}
	adminID, _ := userIDFromContext(c)
	correlationID := middleware.GetCorrelationID(c)

	task, err := tasks.NewSweepOrphanImagesTask(uint(userID), adminID, correlationID)
	if err != nil {
		middleware.LoggerFromContext(c).Error("build sweep task failed", zap.Error(err))
		Internal(c, "failed to enqueue sweep")
		return
	}
	info, err := h.queue.EnqueueContext(ctx, task)
	if err != nil {
		middleware.LoggerFromContext(c).Error("enqueue sweep task failed", zap.Error(err))
		Internal(c, "failed to enqueue sweep")
		return
	}

	middleware.LoggerFromContext(c).Info("sweep task enqueued",
		zap.String("task_id", info.ID),
		zap.Uint64("target_user_id", userID),
	)
	c.JSON(http.StatusAccepted, gin.H{
		"message":        "Sweep scheduled",
		"task_id":        info.ID,
		"correlation_id": correlationID,
	})
}
