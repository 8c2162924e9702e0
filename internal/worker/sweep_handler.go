package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/Lordevs/legacyverse-backend/internal/errcode"
	"github.com/Lordevs/legacyverse-backend/internal/profile"
	"github.com/Lordevs/legacyverse-backend/internal/tasks"
)

// Sweeper 删除某个用户不再被任何 section 引用的图片。
type Sweeper interface {
	SweepOrphanedSectionImages(ctx context.Context, userID uint) (int, error)
}

// SweepTaskHandler 负责消费孤儿图片清理任务。
type SweepTaskHandler struct {
	sweeper   Sweeper
	publisher Publisher
	logger    *zap.Logger
}

// NewSweepTaskHandler 创建任务处理器。
func NewSweepTaskHandler(sweeper Sweeper, publisher Publisher, logger *zap.Logger) *SweepTaskHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SweepTaskHandler{sweeper: sweeper, publisher: publisher, logger: logger}
}

// ProcessTask 实现 asynq.Handler。
func (h *SweepTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	var payload tasks.SweepOrphanImagesPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", zap.Error(err))
		return errors.Join(err, asynq.SkipRetry)
	}

	log = log.With(
		zap.String("correlation_id", payload.CorrelationID),
		zap.Uint("user_id", payload.UserID),
		zap.Uint("requested_by", payload.RequestedBy),
	)
	log.Info("starting orphan image sweep")

	removed, err := h.sweeper.SweepOrphanedSectionImages(ctx, payload.UserID)
	if errors.Is(err, profile.ErrUserNotFound) {
		log.Warn("user not found, skipping task")
		h.notify(ctx, log, payload, SweepNotifyMessage{
			Status:       "error",
			ErrorCode:    errorCode(err),
			ErrorMessage: err.Error(),
		})
		return nil
	}
	if err != nil {
		log.Error("sweep orphan images failed", zap.Int("removed", removed), zap.Error(err))
		// 只在最后一次重试失败时通知，避免前端收到多条错误。
		if isFinalAsynqAttempt(ctx) {
			h.notify(ctx, log, payload, SweepNotifyMessage{
				Status:       "error",
				Removed:      removed,
				ErrorCode:    errorCode(err),
				ErrorMessage: strings.TrimSpace(err.Error()),
			})
		}
		return err
	}

	h.notify(ctx, log, payload, SweepNotifyMessage{
		Status:    "completed",
		Removed:   removed,
		ErrorCode: errcode.OK,
	})
	log.Info("orphan image sweep completed", zap.Int("removed", removed))
	return nil
}

func (h *SweepTaskHandler) notify(ctx context.Context, log *zap.Logger, payload tasks.SweepOrphanImagesPayload, msg SweepNotifyMessage) {
	if h.publisher == nil || payload.RequestedBy == 0 {
		return
	}
	msg.UserID = payload.UserID
	msg.CorrelationID = payload.CorrelationID
	if err := publishNotify(ctx, h.publisher, payload.RequestedBy, msg); err != nil {
		log.Error("publish sweep notification failed", zap.Error(err))
	}
}

func errorCode(err error) int {
	switch {
	case errors.Is(err, profile.ErrUserNotFound):
		return errcode.UserMissing
	case errors.Is(err, profile.ErrPayloadDelete):
		return errcode.PayloadDeleteFailed
	default:
		return errcode.SystemError
	}
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
