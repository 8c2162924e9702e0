package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Lordevs/legacyverse-backend/internal/database"
)

const DefaultResetTokenTTL = time.Hour

var (
	ErrResetTokenInvalid = errors.New("invalid token")
	ErrResetTokenExpired = errors.New("invalid or expired token")
)

// ResetSender 把重置令牌交给用户。
type ResetSender interface {
	SendPasswordReset(ctx context.Context, user *database.User, token string, expiresAt time.Time) error
}

// LogResetSender 只写日志，令牌本身仅在 debug 级别输出。
type LogResetSender struct {
	Logger *zap.Logger
}

func (s LogResetSender) SendPasswordReset(_ context.Context, user *database.User, token string, expiresAt time.Time) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.L()
	}
	logger.Info("password reset issued",
		zap.Uint("user_id", user.ID),
		zap.Time("expires_at", expiresAt),
	)
	logger.Debug("password reset token", zap.Uint("user_id", user.ID), zap.String("token", token))
	return nil
}

// PasswordResetService 签发并消费密码重置令牌。
type PasswordResetService struct {
	db     *gorm.DB
	sender ResetSender
	ttl    time.Duration
	now    func() time.Time
}

func NewPasswordResetService(db *gorm.DB, sender ResetSender, ttl time.Duration) *PasswordResetService {
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	return &PasswordResetService{db: db, sender: sender, ttl: ttl, now: time.Now}
}

// Issue 为邮箱对应的账号签发新令牌并作废旧令牌。
// 邮箱不存在或账号已停用时不签发，也不返回错误。
func (s *PasswordResetService) Issue(ctx context.Context, email string) error {
	var user database.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("find user: %w", err)
	}
	if !user.IsActive {
		return nil
	}

	row := database.PasswordResetToken{
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: s.now().Add(s.ttl),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&database.PasswordResetToken{}).
			Where("user_id = ? AND used = ?", user.ID, false).
			Update("used", true).Error; err != nil {
			return err
		}
		return tx.Omit("User").Create(&row).Error
	})
	if err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	if err := s.sender.SendPasswordReset(ctx, &user, row.Token, row.ExpiresAt); err != nil {
		return fmt.Errorf("send reset token: %w", err)
	}
	return nil
}

// Reset 校验令牌后设置新密码，并把令牌标记为已用。返回账号 ID。
func (s *PasswordResetService) Reset(ctx context.Context, token, newPassword string) (uint, error) {
	if _, err := uuid.Parse(token); err != nil {
		return 0, ErrResetTokenInvalid
	}
	if err := ValidatePassword(newPassword); err != nil {
		return 0, err
	}
	hashed, err := HashPassword(newPassword)
	if err != nil {
		return 0, err
	}

	var userID uint
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row database.PasswordResetToken
		if err := tx.Where("token = ?", token).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrResetTokenInvalid
			}
			return err
		}
		if row.Used || !s.now().Before(row.ExpiresAt) {
			return ErrResetTokenExpired
		}

		// 条件更新保证并发请求只有一个能消费令牌
		res := tx.Model(&database.PasswordResetToken{}).
			Where("id = ? AND used = ?", row.ID, false).
			Update("used", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrResetTokenExpired
		}

		if err := tx.Model(&database.User{}).Where("id = ?", row.UserID).Updates(map[string]any{
			"password_hash":        hashed,
			"must_change_password": false,
		}).Error; err != nil {
			return err
		}
		userID = row.UserID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return userID, nil
}
