package profile

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Lordevs/legacyverse-backend/internal/database"
)

// ImageView 是图片对外的表示，URL 为限时预签名链接。
type ImageView struct {
	ID          uint      `json:"id"`
	SectionID   string    `json:"section_id,omitempty"`
	URL         string    `json:"url"`
	Caption     string    `json:"caption"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProfileView 是 profile 的完整投影。
type ProfileView struct {
	ID              uint                   `json:"id"`
	UserID          uint                   `json:"user_id"`
	Username        string                 `json:"username"`
	Email           string                 `json:"email,omitempty"`
	Fullname        string                 `json:"fullname"`
	Image           string                 `json:"image"`
	Bio             string                 `json:"bio"`
	Location        string                 `json:"location"`
	Website         string                 `json:"website"`
	JoinedDate      *string                `json:"joined_date"`
	Sections        []database.Section     `json:"sections"`
	SectionImages   map[string][]ImageView `json:"section_images"`
	ChildhoodImages []ImageView            `json:"childhood_images"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

func (s *Service) presign(ctx context.Context, key string) string {
	if key == "" {
		return ""
	}
	u, err := s.store.GeneratePresignedURL(ctx, key, s.urlTTL)
	if err != nil {
		s.logger.Warn("generate image url", zap.String("object_key", key), zap.Error(err))
		return ""
	}
	return u
}

// SectionImageViews 把行转换为带预签名 URL 的视图。
func (s *Service) SectionImageViews(ctx context.Context, rows []database.SectionImage) []ImageView {
	out := make([]ImageView, 0, len(rows))
	for _, row := range rows {
		out = append(out, ImageView{
			ID:          row.ID,
			SectionID:   row.SectionID,
			URL:         s.presign(ctx, row.ObjectKey),
			Caption:     row.Caption,
			ContentType: row.ContentType,
			Size:        row.Size,
			Width:       row.Width,
			Height:      row.Height,
			CreatedAt:   row.CreatedAt,
		})
	}
	return out
}

func (s *Service) ProfileImageViews(ctx context.Context, rows []database.ProfileImage) []ImageView {
	out := make([]ImageView, 0, len(rows))
	for _, row := range rows {
		out = append(out, ImageView{
			ID:          row.ID,
			URL:         s.presign(ctx, row.ObjectKey),
			Caption:     row.Caption,
			ContentType: row.ContentType,
			Size:        row.Size,
			Width:       row.Width,
			Height:      row.Height,
			CreatedAt:   row.CreatedAt,
		})
	}
	return out
}

// View 构造用户 profile 的完整投影。孤儿图片不会出现在 section_images 中。
func (s *Service) View(ctx context.Context, user *database.User, p *database.Profile) (*ProfileView, error) {
	sectionRows, err := s.repo.ListAllSectionImages(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	profileRows, err := s.repo.ListProfileImages(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	bySection := make(map[string][]ImageView, len(p.Sections))
	for _, section := range p.Sections {
		bySection[section.ID] = []ImageView{}
	}
	for _, v := range s.SectionImageViews(ctx, sectionRows) {
		if _, live := bySection[v.SectionID]; live {
			bySection[v.SectionID] = append(bySection[v.SectionID], v)
		}
	}

	view := &ProfileView{
		ID:              p.ID,
		UserID:          user.ID,
		Username:        user.Username,
		Email:           user.Email,
		Fullname:        user.Fullname,
		Image:           s.presign(ctx, p.ImageKey),
		Bio:             p.Bio,
		Location:        p.Location,
		Website:         p.Website,
		Sections:        normalizeSections(p.Sections),
		SectionImages:   bySection,
		ChildhoodImages: s.ProfileImageViews(ctx, profileRows),
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
	if p.JoinedDate != nil {
		d := p.JoinedDate.Format(dateLayout)
		view.JoinedDate = &d
	}
	return view, nil
}

// GetProfile 返回目标用户自己的完整投影（包含 email）。
func (s *Service) GetProfile(ctx context.Context, userID uint) (*ProfileView, error) {
	user, err := s.repo.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.View(ctx, user, p)
}

// PublicProfile 按用户名返回公开投影（不含 email），结果缓存在 ProfileCache 中。
func (s *Service) PublicProfile(ctx context.Context, username string) (*ProfileView, error) {
	user, err := s.repo.FindActiveUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	cached, err := s.cache.Get(ctx, user.ID)
	if err != nil {
		s.logger.Warn("read public profile cache", zap.Uint("user_id", user.ID), zap.Error(err))
	} else if cached != nil {
		return cached, nil
	}

	p, err := s.GetOrCreate(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	view, err := s.View(ctx, user, p)
	if err != nil {
		return nil, err
	}
	view.Email = ""

	if err := s.cache.Set(ctx, user.ID, view); err != nil {
		s.logger.Warn("write public profile cache", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	return view, nil
}
