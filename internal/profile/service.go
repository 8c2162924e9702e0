package profile

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Lordevs/legacyverse-backend/internal/database"
	"github.com/Lordevs/legacyverse-backend/internal/media"
)

// ObjectStore 是 Service 需要的对象存储子集，由 storage.Client 实现。
type ObjectStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

// ImagePreparer 扫描并规范化上传的图片，由 media.Processor 实现。
type ImagePreparer interface {
	Prepare(ctx context.Context, filename string, data []byte) (*media.Prepared, error)
}

// ProfileCache 缓存公开资料的投影。Get 未命中时返回 (nil, nil)。
type ProfileCache interface {
	Get(ctx context.Context, userID uint) (*ProfileView, error)
	Set(ctx context.Context, userID uint, view *ProfileView) error
	Invalidate(ctx context.Context, userID uint) error
}

type nopCache struct{}

func (nopCache) Get(context.Context, uint) (*ProfileView, error) { return nil, nil }
func (nopCache) Set(context.Context, uint, *ProfileView) error   { return nil }
func (nopCache) Invalidate(context.Context, uint) error          { return nil }

// Options 控制上传数量与链接有效期。
type Options struct {
	MaxImagesPerUpload int
	URLTTL             time.Duration
}

// Service 实现 profile、section 与图片的全部操作。
// 所有方法都接收已解析好的目标 userID，self 与 admin 两种入口共用同一套逻辑。
type Service struct {
	repo     *Repository
	store    ObjectStore
	preparer ImagePreparer
	cache    ProfileCache
	logger   *zap.Logger

	maxImages int
	urlTTL    time.Duration
	now       func() time.Time
}

func NewService(db *gorm.DB, store ObjectStore, preparer ImagePreparer, cache ProfileCache, logger *zap.Logger, opts Options) *Service {
	if cache == nil {
		cache = nopCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxImagesPerUpload <= 0 {
		opts.MaxImagesPerUpload = 10
	}
	if opts.URLTTL <= 0 {
		opts.URLTTL = time.Hour
	}
	return &Service{
		repo:      NewRepository(db),
		store:     store,
		preparer:  preparer,
		cache:     cache,
		logger:    logger,
		maxImages: opts.MaxImagesPerUpload,
		urlTTL:    opts.URLTTL,
		now:       time.Now,
	}
}

// Repository exposes the underlying repository.
func (s *Service) Repository() *Repository { return s.repo }

// ResolveUser 校验目标用户存在。
func (s *Service) ResolveUser(ctx context.Context, userID uint) (*database.User, error) {
	return s.repo.FindUser(ctx, userID)
}

// GetOrCreate 返回用户的 profile；首次访问时以默认 sections 创建。
func (s *Service) GetOrCreate(ctx context.Context, userID uint) (*database.Profile, error) {
	return s.repo.GetOrCreate(ctx, userID, func() []database.Section {
		return DefaultSections(s.now())
	})
}

func (s *Service) save(ctx context.Context, p *database.Profile) error {
	if err := s.repo.Save(ctx, p); err != nil {
		return err
	}
	s.invalidate(ctx, p.UserID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, userID uint) {
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("invalidate public profile cache", zap.Uint("user_id", userID), zap.Error(err))
	}
}

// FieldsUpdate 是 profile 标量字段的部分更新；nil 表示不修改。
// JoinedDate 使用 YYYY-MM-DD，空字符串表示清空。
type FieldsUpdate struct {
	Bio        *string `json:"bio"`
	Location   *string `json:"location"`
	Website    *string `json:"website"`
	JoinedDate *string `json:"joined_date"`
}

const dateLayout = "2006-01-02"

func (f FieldsUpdate) empty() bool {
	return f.Bio == nil && f.Location == nil && f.Website == nil && f.JoinedDate == nil
}

func (f FieldsUpdate) validate() error {
	if f.Bio != nil && len([]rune(*f.Bio)) > 500 {
		return invalidf("bio must be at most 500 characters")
	}
	if f.Location != nil && len([]rune(*f.Location)) > 100 {
		return invalidf("location must be at most 100 characters")
	}
	if f.Website != nil {
		w := strings.TrimSpace(*f.Website)
		if len(w) > 200 {
			return invalidf("website must be at most 200 characters")
		}
		if w != "" {
			u, err := url.ParseRequestURI(w)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return invalidf("website must be a valid URL")
			}
		}
	}
	if f.JoinedDate != nil && strings.TrimSpace(*f.JoinedDate) != "" {
		if _, err := time.Parse(dateLayout, strings.TrimSpace(*f.JoinedDate)); err != nil {
			return invalidf("joined_date must use YYYY-MM-DD")
		}
	}
	return nil
}

func (f FieldsUpdate) apply(p *database.Profile) {
	if f.Bio != nil {
		p.Bio = *f.Bio
	}
	if f.Location != nil {
		p.Location = *f.Location
	}
	if f.Website != nil {
		p.Website = strings.TrimSpace(*f.Website)
	}
	if f.JoinedDate != nil {
		raw := strings.TrimSpace(*f.JoinedDate)
		if raw == "" {
			p.JoinedDate = nil
		} else {
			d, _ := time.Parse(dateLayout, raw)
			p.JoinedDate = &d
		}
	}
}

// UpdateFields 更新 bio、location、website、joined_date。
func (s *Service) UpdateFields(ctx context.Context, userID uint, fields FieldsUpdate) (*database.Profile, error) {
	if err := fields.validate(); err != nil {
		return nil, err
	}
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	fields.apply(p)
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ImageFile 是一张待处理的上传图片。
type ImageFile struct {
	Filename string
	Data     []byte
}

// ImageBatch 是同一个 section 的一批图片及其标题。
type ImageBatch struct {
	Images   []ImageFile
	Captions []string
}

// CompleteUpdate 是 UpdateComplete 的输入。Sections 为 nil 表示不替换。
type CompleteUpdate struct {
	Fields        FieldsUpdate
	Sections      []SectionInput
	SectionImages map[string]ImageBatch
	DisplayImage  *ImageFile
}

// UpdateComplete 依次执行：替换 sections、逐个 section 替换图片、设置头像、更新标量字段。
// 不是原子操作：中途失败时，之前已完成的步骤保持生效。
func (s *Service) UpdateComplete(ctx context.Context, userID uint, in CompleteUpdate) (*database.Profile, error) {
	if err := in.Fields.validate(); err != nil {
		return nil, err
	}
	for sectionID, batch := range in.SectionImages {
		if _, err := s.checkBatch(batch.Images, batch.Captions); err != nil {
			return nil, fmt.Errorf("section %s: %w", sectionID, err)
		}
	}

	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	order := p.Sections
	if in.Sections != nil {
		order, err = s.ReplaceSections(ctx, userID, in.Sections)
		if err != nil {
			return nil, err
		}
	}

	for _, section := range order {
		batch, ok := in.SectionImages[section.ID]
		if !ok {
			continue
		}
		if _, err := s.UploadReplacing(ctx, userID, section.ID, batch.Images, batch.Captions); err != nil {
			return nil, err
		}
	}

	if in.DisplayImage != nil {
		if _, err := s.SetDisplayImage(ctx, userID, *in.DisplayImage); err != nil {
			return nil, err
		}
	}

	if !in.Fields.empty() {
		return s.UpdateFields(ctx, userID, in.Fields)
	}
	return s.GetOrCreate(ctx, userID)
}

// SetDisplayImage 上传新头像；旧头像的对象在 key 被替换之前删除。
func (s *Service) SetDisplayImage(ctx context.Context, userID uint, file ImageFile) (*database.Profile, error) {
	prepared, err := s.prepare(ctx, file)
	if err != nil {
		return nil, err
	}

	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	key, err := s.putDisplayImage(ctx, p.ID, prepared)
	if err != nil {
		return nil, err
	}

	if p.ImageKey != "" {
		if err := s.deletePayload(ctx, p.ImageKey, kindDisplay); err != nil {
			s.discardPayload(ctx, key)
			return nil, err
		}
	}

	p.ImageKey = key
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteDisplayImage 删除头像对象并清空 key。
func (s *Service) DeleteDisplayImage(ctx context.Context, userID uint) error {
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	if p.ImageKey == "" {
		return invalidf("No profile image to delete")
	}
	if err := s.deletePayload(ctx, p.ImageKey, kindDisplay); err != nil {
		return err
	}
	p.ImageKey = ""
	return s.save(ctx, p)
}
