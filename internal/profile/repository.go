package profile

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Lordevs/legacyverse-backend/internal/database"
)

// Repository 封装 profile 相关表的读写。
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindUser 按 ID 查找用户，不存在时返回 ErrUserNotFound。
func (r *Repository) FindUser(ctx context.Context, userID uint) (*database.User, error) {
	var user database.User
	if err := r.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user %d: %w", userID, err)
	}
	return &user, nil
}

// FindActiveUserByUsername 只返回启用中的账号。
func (r *Repository) FindActiveUserByUsername(ctx context.Context, username string) (*database.User, error) {
	var user database.User
	err := r.db.WithContext(ctx).
		Where("username = ? AND is_active = ?", username, true).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user %q: %w", username, err)
	}
	return &user, nil
}

func (r *Repository) findByUserID(ctx context.Context, userID uint) (*database.Profile, error) {
	var p database.Profile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, err
	}
	p.Sections = normalizeSections(p.Sections)
	return &p, nil
}

// createIfAbsent 插入 profile；user_id 已存在时什么都不做。
func (r *Repository) createIfAbsent(ctx context.Context, p *database.Profile) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(p)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// GetOrCreate 返回用户的 profile，不存在时用 sections 初始化一个。
// 并发首访时只有一个 INSERT 生效，其余请求退化为普通查询。
func (r *Repository) GetOrCreate(ctx context.Context, userID uint, sections func() []database.Section) (*database.Profile, error) {
	p, err := r.findByUserID(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load profile for user %d: %w", userID, err)
	}

	candidate := &database.Profile{UserID: userID, Sections: sections()}
	if _, err := r.createIfAbsent(ctx, candidate); err != nil {
		return nil, fmt.Errorf("create profile for user %d: %w", userID, err)
	}

	p, err = r.findByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reload profile for user %d: %w", userID, err)
	}
	return p, nil
}

// Save 整行写回 profile（last write wins）。
func (r *Repository) Save(ctx context.Context, p *database.Profile) error {
	p.Sections = normalizeSections(p.Sections)
	if err := r.db.WithContext(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("save profile %d: %w", p.ID, err)
	}
	return nil
}

// ImageScope 限定图片查询范围。SectionID 为空时只按 profile 过滤。
type ImageScope struct {
	SectionID string
}

// ListSectionImages 返回某个 section 下的图片，按创建时间和 ID 排序。
func (r *Repository) ListSectionImages(ctx context.Context, profileID uint, sectionID string) ([]database.SectionImage, error) {
	var rows []database.SectionImage
	err := r.db.WithContext(ctx).
		Where("profile_id = ? AND section_id = ?", profileID, sectionID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list section images: %w", err)
	}
	return rows, nil
}

// ListAllSectionImages 返回 profile 下所有 section 图片，包括孤儿图片。
func (r *Repository) ListAllSectionImages(ctx context.Context, profileID uint) ([]database.SectionImage, error) {
	var rows []database.SectionImage
	err := r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list section images: %w", err)
	}
	return rows, nil
}

func (r *Repository) FindSectionImage(ctx context.Context, profileID uint, scope ImageScope, imageID uint) (*database.SectionImage, error) {
	q := r.db.WithContext(ctx).Where("id = ? AND profile_id = ?", imageID, profileID)
	if scope.SectionID != "" {
		q = q.Where("section_id = ?", scope.SectionID)
	}
	var row database.SectionImage
	if err := q.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("find section image %d: %w", imageID, err)
	}
	return &row, nil
}

func (r *Repository) CreateSectionImage(ctx context.Context, row *database.SectionImage) error {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("create section image: %w", err)
	}
	return nil
}

func (r *Repository) UpdateSectionImageCaption(ctx context.Context, row *database.SectionImage, caption string) error {
	if err := r.db.WithContext(ctx).Model(row).Update("caption", caption).Error; err != nil {
		return fmt.Errorf("update section image %d: %w", row.ID, err)
	}
	return nil
}

func (r *Repository) DeleteSectionImage(ctx context.Context, imageID uint) error {
	if err := r.db.WithContext(ctx).Delete(&database.SectionImage{}, imageID).Error; err != nil {
		return fmt.Errorf("delete section image %d: %w", imageID, err)
	}
	return nil
}

func (r *Repository) ListProfileImages(ctx context.Context, profileID uint) ([]database.ProfileImage, error) {
	var rows []database.ProfileImage
	err := r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list profile images: %w", err)
	}
	return rows, nil
}

func (r *Repository) FindProfileImage(ctx context.Context, profileID, imageID uint) (*database.ProfileImage, error) {
	var row database.ProfileImage
	err := r.db.WithContext(ctx).Where("id = ? AND profile_id = ?", imageID, profileID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("find profile image %d: %w", imageID, err)
	}
	return &row, nil
}

func (r *Repository) CreateProfileImage(ctx context.Context, row *database.ProfileImage) error {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("create profile image: %w", err)
	}
	return nil
}

func (r *Repository) UpdateProfileImageCaption(ctx context.Context, row *database.ProfileImage, caption string) error {
	if err := r.db.WithContext(ctx).Model(row).Update("caption", caption).Error; err != nil {
		return fmt.Errorf("update profile image %d: %w", row.ID, err)
	}
	return nil
}

func (r *Repository) DeleteProfileImage(ctx context.Context, imageID uint) error {
	if err := r.db.WithContext(ctx).Delete(&database.ProfileImage{}, imageID).Error; err != nil {
		return fmt.Errorf("delete profile image %d: %w", imageID, err)
	}
	return nil
}
