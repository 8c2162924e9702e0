package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeSweepOrphanImages = "images:sweep-orphans"
)

// SweepOrphanImagesPayload 指定要清理孤儿 section 图片的用户，以及接收结果通知的管理员。
type SweepOrphanImagesPayload struct {
	UserID        uint   `json:"user_id"`
	RequestedBy   uint   `json:"requested_by"`
	CorrelationID string `json:"correlation_id"`
}

// NewSweepOrphanImagesTask 构造一个孤儿图片清理任务。
func NewSweepOrphanImagesTask(userID, requestedBy uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(SweepOrphanImagesPayload{
		UserID:        userID,
		RequestedBy:   requestedBy,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSweepOrphanImages, payload, asynq.MaxRetry(3)), nil
}

// NotifyChannel 返回某个用户的 Redis 通知频道。
func NotifyChannel(userID uint) string {
	return fmt.Sprintf("user_notify:%d", userID)
}
