package profile

import (
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Lordevs/legacyverse-backend/internal/database"
	"github.com/Lordevs/legacyverse-backend/internal/media"
	"github.com/Lordevs/legacyverse-backend/internal/metrics"
	"github.com/Lordevs/legacyverse-backend/internal/storage"
)

const (
	kindSection = metrics.ImageKindSection
	kindProfile = metrics.ImageKindProfile
	kindDisplay = metrics.ImageKindDisplay

	maxCaptionLength = 255
)

// checkBatch 校验图片与标题数量，返回按下标补齐后的标题。
func (s *Service) checkBatch(images []ImageFile, captions []string) ([]string, error) {
	if len(images) == 0 {
		return nil, invalidf("at least one image is required")
	}
	if len(images) > s.maxImages {
		return nil, invalidf("at most %d images can be uploaded at once", s.maxImages)
	}
	if len(captions) > len(images) {
		return nil, invalidf("number of captions (%d) must not exceed number of images (%d)", len(captions), len(images))
	}
	out := make([]string, len(images))
	for i, c := range captions {
		if len([]rune(c)) > maxCaptionLength {
			return nil, invalidf("caption %d is longer than %d characters", i+1, maxCaptionLength)
		}
		out[i] = c
	}
	return out, nil
}

func (s *Service) prepare(ctx context.Context, file ImageFile) (*media.Prepared, error) {
	prepared, err := s.preparer.Prepare(ctx, file.Filename, file.Data)
	if err != nil {
		if media.IsRejected(err) {
			metrics.ImageRejected(media.RejectReason(err))
			return nil, invalidf("%v", err)
		}
		return nil, fmt.Errorf("prepare image %s: %w", file.Filename, err)
	}
	return prepared, nil
}

// prepareAll 在修改任何状态之前处理完整批图片。
func (s *Service) prepareAll(ctx context.Context, files []ImageFile) ([]*media.Prepared, error) {
	out := make([]*media.Prepared, 0, len(files))
	for _, f := range files {
		p, err := s.prepare(ctx, f)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Service) putObject(ctx context.Context, key string, img *media.Prepared, kind string) error {
	if _, err := s.store.UploadFile(ctx, key, bytes.NewReader(img.Data), int64(len(img.Data)), img.ContentType); err != nil {
		return fmt.Errorf("store image payload: %w", err)
	}
	metrics.ImageStored(kind)
	return nil
}

// deletePayload 删除对象；失败时调用方必须保留元数据行。
func (s *Service) deletePayload(ctx context.Context, key, kind string) error {
	if err := s.store.DeleteObject(ctx, key); err != nil {
		metrics.ImageDeleteFailed(kind)
		return fmt.Errorf("%w %q: %w", ErrPayloadDelete, key, err)
	}
	metrics.ImageDeleted(kind)
	return nil
}

// discardPayload 清理已经上传但没有落库的对象。
func (s *Service) discardPayload(ctx context.Context, key string) {
	if err := s.store.DeleteObject(ctx, key); err != nil {
		s.logger.Warn("discard unreferenced image payload", zap.String("object_key", key), zap.Error(err))
	}
}

func (s *Service) putDisplayImage(ctx context.Context, profileID uint, img *media.Prepared) (string, error) {
	key := storage.DisplayImageKey(profileID, img.Ext)
	if err := s.putObject(ctx, key, img, kindDisplay); err != nil {
		return "", err
	}
	return key, nil
}

// UploadReplacing 用新的一批图片替换 section 现有的全部图片，返回新建的行。
func (s *Service) UploadReplacing(ctx context.Context, userID uint, sectionID string, images []ImageFile, captions []string) ([]database.SectionImage, error) {
	return s.uploadSectionImages(ctx, userID, sectionID, images, captions, true)
}

// UploadAppending 只追加图片，返回该 section 追加后的全部图片。
func (s *Service) UploadAppending(ctx context.Context, userID uint, sectionID string, images []ImageFile, captions []string) ([]database.SectionImage, error) {
	created, err := s.uploadSectionImages(ctx, userID, sectionID, images, captions, false)
	if err != nil {
		return nil, err
	}
	if len(created) == 0 {
		return created, nil
	}
	return s.repo.ListSectionImages(ctx, created[0].ProfileID, sectionID)
}

func (s *Service) uploadSectionImages(ctx context.Context, userID uint, sectionID string, images []ImageFile, captions []string, replace bool) ([]database.SectionImage, error) {
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if findSection(p.Sections, sectionID) < 0 {
		return nil, ErrSectionNotFound
	}

	captions, err = s.checkBatch(images, captions)
	if err != nil {
		return nil, err
	}
	prepared, err := s.prepareAll(ctx, images)
	if err != nil {
		return nil, err
	}

	if replace {
		existing, err := s.repo.ListSectionImages(ctx, p.ID, sectionID)
		if err != nil {
			return nil, err
		}
		for i := range existing {
			if err := s.removeSectionImage(ctx, &existing[i]); err != nil {
				return nil, err
			}
		}
	}

	created := make([]database.SectionImage, 0, len(prepared))
	defer func() {
		if len(created) > 0 || replace {
			s.invalidate(ctx, userID)
		}
	}()

	for i, img := range prepared {
		key := storage.SectionImageKey(p.ID, sectionID, img.Ext)
		if err := s.putObject(ctx, key, img, kindSection); err != nil {
			return nil, err
		}
		row := database.SectionImage{
			ProfileID:   p.ID,
			SectionID:   sectionID,
			ObjectKey:   key,
			ContentType: img.ContentType,
			Size:        int64(len(img.Data)),
			Width:       img.Width,
			Height:      img.Height,
			Caption:     captions[i],
		}
		if err := s.repo.CreateSectionImage(ctx, &row); err != nil {
			s.discardPayload(ctx, key)
			return nil, err
		}
		created = append(created, row)
	}
	return created, nil
}

func (s *Service) removeSectionImage(ctx context.Context, row *database.SectionImage) error {
	if err := s.deletePayload(ctx, row.ObjectKey, kindSection); err != nil {
		return err
	}
	return s.repo.DeleteSectionImage(ctx, row.ID)
}

// ListSectionImages 返回 section 的图片；section 必须仍在列表中。
func (s *Service) ListSectionImages(ctx context.Context, userID uint, sectionID string) ([]database.SectionImage, error) {
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if findSection(p.Sections, sectionID) < 0 {
		return nil, ErrSectionNotFound
	}
	return s.repo.ListSectionImages(ctx, p.ID, sectionID)
}

// UpdateSectionImageCaption 修改图片标题。范围之外的图片一律报告为不存在。
func (s *Service) UpdateSectionImageCaption(ctx context.Context, userID uint, scope ImageScope, imageID uint, caption string) (*database.SectionImage, error) {
	if len([]rune(caption)) > maxCaptionLength {
		return nil, invalidf("caption must be at most %d characters", maxCaptionLength)
	}
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	row, err := s.repo.FindSectionImage(ctx, p.ID, scope, imageID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateSectionImageCaption(ctx, row, caption); err != nil {
		return nil, err
	}
	row.Caption = caption
	s.invalidate(ctx, userID)
	return row, nil
}

// DeleteSectionImage 先删对象再删行；对象删除失败时行保留。
func (s *Service) DeleteSectionImage(ctx context.Context, userID uint, scope ImageScope, imageID uint) error {
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	row, err := s.repo.FindSectionImage(ctx, p.ID, scope, imageID)
	if err != nil {
		return err
	}
	if err := s.removeSectionImage(ctx, row); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// SweepOrphanedSectionImages 删除 section ID 已不在列表中的图片，返回删除数量。
// 遇到第一个对象删除失败即停止。
func (s *Service) SweepOrphanedSectionImages(ctx context.Context, userID uint) (int, error) {
	if _, err := s.ResolveUser(ctx, userID); err != nil {
		return 0, err
	}
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return 0, err
	}
	rows, err := s.repo.ListAllSectionImages(ctx, p.ID)
	if err != nil {
		return 0, err
	}

	live := make(map[string]struct{}, len(p.Sections))
	for _, section := range p.Sections {
		live[section.ID] = struct{}{}
	}

	removed := 0
	defer func() {
		if removed > 0 {
			s.invalidate(ctx, userID)
		}
	}()
	for i := range rows {
		if _, ok := live[rows[i].SectionID]; ok {
			continue
		}
		if err := s.removeSectionImage(ctx, &rows[i]); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// UploadProfileImages 追加 profile 级别的图片（childhood images）。
func (s *Service) UploadProfileImages(ctx context.Context, userID uint, images []ImageFile, captions []string) ([]database.ProfileImage, error) {
	captions, err := s.checkBatch(images, captions)
	if err != nil {
		return nil, err
	}
	prepared, err := s.prepareAll(ctx, images)
	if err != nil {
		return nil, err
	}
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	created := make([]database.ProfileImage, 0, len(prepared))
	defer func() {
		if len(created) > 0 {
			s.invalidate(ctx, userID)
		}
	}()
	for i, img := range prepared {
		key := storage.ProfileImageKey(p.ID, img.Ext)
		if err := s.putObject(ctx, key, img, kindProfile); err != nil {
			return nil, err
		}
		row := database.ProfileImage{
			ProfileID:   p.ID,
			ObjectKey:   key,
			ContentType: img.ContentType,
			Size:        int64(len(img.Data)),
			Width:       img.Width,
			Height:      img.Height,
			Caption:     captions[i],
		}
		if err := s.repo.CreateProfileImage(ctx, &row); err != nil {
			s.discardPayload(ctx, key)
			return nil, err
		}
		created = append(created, row)
	}
	return created, nil
}

func (s *Service) ListProfileImages(ctx context.Context, userID uint) ([]database.ProfileImage, error) {
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListProfileImages(ctx, p.ID)
}

func (s *Service) UpdateProfileImageCaption(ctx context.Context, userID, imageID uint, caption string) (*database.ProfileImage, error) {
	if len([]rune(caption)) > maxCaptionLength {
		return nil, invalidf("caption must be at most %d characters", maxCaptionLength)
	}
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	row, err := s.repo.FindProfileImage(ctx, p.ID, imageID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateProfileImageCaption(ctx, row, caption); err != nil {
		return nil, err
	}
	row.Caption = caption
	s.invalidate(ctx, userID)
	return row, nil
}

func (s *Service) DeleteProfileImage(ctx context.Context, userID, imageID uint) error {
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	row, err := s.repo.FindProfileImage(ctx, p.ID, imageID)
	if err != nil {
		return err
	}
	if err := s.deletePayload(ctx, row.ObjectKey, kindProfile); err != nil {
		return err
	}
	if err := s.repo.DeleteProfileImage(ctx, row.ID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// DeleteAllProfileImages 逐张删除 profile 级别图片，返回删除数量。
func (s *Service) DeleteAllProfileImages(ctx context.Context, userID uint) (int, error) {
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return 0, err
	}
	rows, err := s.repo.ListProfileImages(ctx, p.ID)
	if err != nil {
		return 0, err
	}

	removed := 0
	defer func() {
		if removed > 0 {
			s.invalidate(ctx, userID)
		}
	}()
	for _, row := range rows {
		if err := s.deletePayload(ctx, row.ObjectKey, kindProfile); err != nil {
			return removed, err
		}
		if err := s.repo.DeleteProfileImage(ctx, row.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
