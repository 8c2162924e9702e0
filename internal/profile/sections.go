package profile

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Lordevs/legacyverse-backend/internal/database"
)

// MaxSectionIDLen 与 section_images.section_id 的列宽一致。
const MaxSectionIDLen = 64

// SectionInput 是整表替换时的单个 section 描述。ID 为空时生成新 ID。
type SectionInput struct {
	ID        string                     `json:"id"`
	Title     string                     `json:"title"`
	Content   string                     `json:"content"`
	Images    []database.SectionImageRef `json:"images"`
	CreatedAt string                     `json:"created_at"`
}

// SectionPatch 只允许修改标题和内容；nil 表示不修改。
type SectionPatch struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

type defaultSection struct {
	title   string
	content string
}

var defaultSections = []defaultSection{
	{"Early Childhood", "Where were you born, and what are your earliest memories?"},
	{"Family", "Tell the story of your parents, siblings and the people who raised you."},
	{"Education", "Which schools did you attend, and which teachers shaped you?"},
	{"Society & Community", "What communities, traditions or causes have you been part of?"},
	{"Professional Experience", "Describe the work you have done and what it taught you."},
	{"Story Telling", "Share a story you want the next generation to remember."},
}

func timestamp(now time.Time) string {
	return now.UTC().Format(time.RFC3339)
}

func newSection(title, content string, now time.Time) database.Section {
	ts := timestamp(now)
	return database.Section{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		Images:    []database.SectionImageRef{},
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

// DefaultSections 返回六个默认 section，每次调用都会生成新的 ID。
func DefaultSections(now time.Time) []database.Section {
	out := make([]database.Section, 0, len(defaultSections))
	for _, d := range defaultSections {
		out = append(out, newSection(d.title, d.content, now))
	}
	return out
}

// DefaultSectionTitles lists the canonical titles in display order.
func DefaultSectionTitles() []string {
	titles := make([]string, 0, len(defaultSections))
	for _, d := range defaultSections {
		titles = append(titles, d.title)
	}
	return titles
}

func findSection(list []database.Section, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func withoutSection(list []database.Section, id string) ([]database.Section, bool) {
	out := make([]database.Section, 0, len(list))
	found := false
	for _, s := range list {
		if s.ID == id {
			found = true
			continue
		}
		out = append(out, s)
	}
	return out, found
}

func applyPatch(s *database.Section, patch SectionPatch, now time.Time) error {
	if patch.Title == nil && patch.Content == nil {
		return invalidf("title or content is required")
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return invalidf("title cannot be blank")
	}
	if patch.Content != nil && strings.TrimSpace(*patch.Content) == "" {
		return invalidf("content cannot be blank")
	}
	if patch.Title != nil {
		s.Title = *patch.Title
	}
	if patch.Content != nil {
		s.Content = *patch.Content
	}
	s.UpdatedAt = timestamp(now)
	return nil
}

// reorderSections 按 ids 中的位置稳定排序；未出现的 id 排在最后并保持原有顺序。
func reorderSections(list []database.Section, ids []string) []database.Section {
	const unranked = int(^uint(0) >> 1)

	rank := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, seen := rank[id]; !seen {
			rank[id] = i
		}
	}
	rankOf := func(id string) int {
		if r, ok := rank[id]; ok {
			return r
		}
		return unranked
	}

	out := make([]database.Section, len(list))
	copy(out, list)
	sort.SliceStable(out, func(i, j int) bool {
		return rankOf(out[i].ID) < rankOf(out[j].ID)
	})
	return out
}

func buildReplacement(inputs []SectionInput, now time.Time) ([]database.Section, error) {
	out := make([]database.Section, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	ts := timestamp(now)

	for i, in := range inputs {
		if strings.TrimSpace(in.Title) == "" {
			return nil, invalidf("sections[%d]: title is required", i)
		}

		id := strings.TrimSpace(in.ID)
		if id == "" {
			id = uuid.NewString()
		}
		if len(id) > MaxSectionIDLen {
			return nil, invalidf("sections[%d]: id must be at most %d characters", i, MaxSectionIDLen)
		}
		if _, dup := seen[id]; dup {
			return nil, invalidf("duplicate section id %q", id)
		}
		seen[id] = struct{}{}

		images := in.Images
		if images == nil {
			images = []database.SectionImageRef{}
		}
		createdAt := strings.TrimSpace(in.CreatedAt)
		if createdAt == "" {
			createdAt = ts
		}

		out = append(out, database.Section{
			ID:        id,
			Title:     in.Title,
			Content:   in.Content,
			Images:    images,
			CreatedAt: createdAt,
			UpdatedAt: ts,
		})
	}
	return out, nil
}

func normalizeSections(list []database.Section) []database.Section {
	if list == nil {
		return []database.Section{}
	}
	for i := range list {
		if list[i].Images == nil {
			list[i].Images = []database.SectionImageRef{}
		}
	}
	return list
}
