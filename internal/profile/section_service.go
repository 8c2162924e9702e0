package profile

import (
	"context"
	"strings"

	"github.com/Lordevs/legacyverse-backend/internal/database"
)

// ListSections 返回当前顺序下的全部 section。
func (s *Service) ListSections(ctx context.Context, userID uint) ([]database.Section, error) {
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return p.Sections, nil
}

// AddSection 在末尾追加一个 section。
func (s *Service) AddSection(ctx context.Context, userID uint, title, content string) (*database.Section, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(content) == "" {
		return nil, invalidf("title and content are required")
	}

	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	section := newSection(title, content, s.now())
	p.Sections = append(p.Sections, section)
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	return &section, nil
}

func (s *Service) GetSection(ctx context.Context, userID uint, sectionID string) (*database.Section, error) {
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	i := findSection(p.Sections, sectionID)
	if i < 0 {
		return nil, ErrSectionNotFound
	}
	section := p.Sections[i]
	return &section, nil
}

// UpdateSection 只修改标题和/或内容，并刷新 updated_at。
func (s *Service) UpdateSection(ctx context.Context, userID uint, sectionID string, patch SectionPatch) (*database.Section, error) {
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	i := findSection(p.Sections, sectionID)
	if i < 0 {
		return nil, ErrSectionNotFound
	}
	if err := applyPatch(&p.Sections[i], patch, s.now()); err != nil {
		return nil, err
	}
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	section := p.Sections[i]
	return &section, nil
}

// DeleteSection 从列表中移除 section。该 section 的图片行不会被删除。
func (s *Service) DeleteSection(ctx context.Context, userID uint, sectionID string) error {
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	remaining, found := withoutSection(p.Sections, sectionID)
	if !found {
		return ErrSectionNotFound
	}
	p.Sections = remaining
	return s.save(ctx, p)
}

// ReorderSections 按给定 ID 顺序排列；未列出的 section 保持相对顺序排在最后，未知 ID 忽略。
func (s *Service) ReorderSections(ctx context.Context, userID uint, ids []string) ([]database.Section, error) {
	if len(ids) == 0 {
		return nil, invalidf("section_ids array is required")
	}
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.Sections = reorderSections(p.Sections, ids)
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	return p.Sections, nil
}

// ReplaceSections 整体覆盖 section 列表。被移除的 section 的图片行会成为孤儿。
func (s *Service) ReplaceSections(ctx context.Context, userID uint, inputs []SectionInput) ([]database.Section, error) {
	replacement, err := buildReplacement(inputs, s.now())
	if err != nil {
		return nil, err
	}
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.Sections = replacement
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	return p.Sections, nil
}

// ResetSections 用六个默认 section 覆盖当前列表。
func (s *Service) ResetSections(ctx context.Context, userID uint) ([]database.Section, error) {
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.Sections = DefaultSections(s.now())
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	return p.Sections, nil
}
