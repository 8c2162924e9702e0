package profile

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lordevs/legacyverse-backend/internal/database"
)

func ids(list []database.Section) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, s.ID)
	}
	return out
}

func TestDefaultSections(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	list := DefaultSections(now)

	require.Len(t, list, 6)
	seen := map[string]bool{}
	for i, s := range list {
		assert.Equal(t, DefaultSectionTitles()[i], s.Title)
		assert.NotEmpty(t, s.Content)
		assert.NotEmpty(t, s.ID)
		assert.False(t, seen[s.ID])
		seen[s.ID] = true
		assert.NotNil(t, s.Images)
		assert.Empty(t, s.Images)
		assert.Equal(t, "2024-01-02T03:04:05Z", s.CreatedAt)
	}
	assert.Equal(t, []string{
		"Early Childhood", "Family", "Education",
		"Society & Community", "Professional Experience", "Story Telling",
	}, DefaultSectionTitles())

	again := DefaultSections(now)
	assert.NotEqual(t, ids(list), ids(again))
}

func TestReorderSections(t *testing.T) {
	list := []database.Section{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}

	cases := []struct {
		name string
		ids  []string
		want []string
	}{
		{"full", []string{"d", "c", "b", "a"}, []string{"d", "c", "b", "a"}},
		{"swap two", []string{"b", "a"}, []string{"b", "a", "c", "d"}},
		{"partial keeps rest in order", []string{"c"}, []string{"c", "a", "b", "d"}},
		{"unknown ids ignored", []string{"x", "d", "y"}, []string{"d", "a", "b", "c"}},
		{"duplicates use first position", []string{"b", "a", "b"}, []string{"b", "a", "c", "d"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ids(reorderSections(list, tc.ids)))
		})
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(list))
}

func TestApplyPatch(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	title := "New"
	blank := "  "

	s := database.Section{ID: "a", Title: "Old", Content: "Body", UpdatedAt: "old"}
	require.NoError(t, applyPatch(&s, SectionPatch{Title: &title}, now))
	assert.Equal(t, "New", s.Title)
	assert.Equal(t, "Body", s.Content)
	assert.Equal(t, "2024-05-01T00:00:00Z", s.UpdatedAt)

	err := applyPatch(&s, SectionPatch{}, now)
	assert.True(t, IsValidation(err))

	err = applyPatch(&s, SectionPatch{Content: &blank}, now)
	assert.EqualError(t, err, "content cannot be blank")
	assert.Equal(t, "Body", s.Content)
}

func TestBuildReplacement(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	out, err := buildReplacement([]SectionInput{
		{ID: "keep", Title: "One", Content: "1", CreatedAt: "2020-01-01T00:00:00Z"},
		{Title: "Two"},
	}, now)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "keep", out[0].ID)
	assert.Equal(t, "2020-01-01T00:00:00Z", out[0].CreatedAt)
	assert.NotEmpty(t, out[1].ID)
	assert.Equal(t, "2024-05-01T00:00:00Z", out[1].CreatedAt)
	assert.NotNil(t, out[1].Images)

	_, err = buildReplacement([]SectionInput{{ID: "x", Title: "A"}, {ID: "x", Title: "B"}}, now)
	assert.EqualError(t, err, `duplicate section id "x"`)

	_, err = buildReplacement([]SectionInput{{Title: " "}}, now)
	assert.True(t, IsValidation(err))

	_, err = buildReplacement([]SectionInput{{ID: strings.Repeat("a", MaxSectionIDLen), Title: "A"}}, now)
	assert.NoError(t, err)

	_, err = buildReplacement([]SectionInput{{Title: "A"}, {ID: strings.Repeat("a", MaxSectionIDLen+1), Title: "B"}}, now)
	assert.EqualError(t, err, "sections[1]: id must be at most 64 characters")

	out, err = buildReplacement([]SectionInput{}, now)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}
