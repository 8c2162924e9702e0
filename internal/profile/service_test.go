package profile

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lordevs/legacyverse-backend/internal/database"
)

func strptr(s string) *string { return &s }

func TestGetOrCreate_BootstrapsDefaultSections(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice")

	p, err := f.svc.GetOrCreate(context.Background(), u.ID)
	require.NoError(t, err)
	require.Len(t, p.Sections, 6)
	for i, s := range p.Sections {
		assert.Equal(t, DefaultSectionTitles()[i], s.Title)
		assert.NotEmpty(t, s.ID)
		assert.Empty(t, s.Images)
	}

	again, err := f.svc.GetOrCreate(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)
	assert.Equal(t, ids(p.Sections), ids(again.Sections))
}

func TestGetOrCreate_ConcurrentFirstAccessCreatesOneProfile(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice")

	const workers = 8
	var wg sync.WaitGroup
	profileIDs := make([]uint, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := f.svc.GetOrCreate(context.Background(), u.ID)
			errs[i] = err
			if err == nil {
				profileIDs[i] = p.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, profileIDs[0], profileIDs[i])
	}

	var count int64
	require.NoError(t, f.db.Model(&database.Profile{}).Where("user_id = ?", u.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreateIfAbsent_SecondInsertIsNoop(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice")
	repo := f.svc.Repository()
	ctx := context.Background()

	created, err := repo.createIfAbsent(ctx, &database.Profile{UserID: u.ID, Bio: "first"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.createIfAbsent(ctx, &database.Profile{UserID: u.ID, Bio: "second"})
	require.NoError(t, err)
	assert.False(t, created)

	p, err := repo.GetOrCreate(ctx, u.ID, func() []database.Section { return nil })
	require.NoError(t, err)
	assert.Equal(t, "first", p.Bio)
}

func TestAddSection_RoundTrip(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice")
	ctx := context.Background()

	before, err := f.svc.ListSections(ctx, u.ID)
	require.NoError(t, err)

	added, err := f.svc.AddSection(ctx, u.ID, "T", "C")
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)
	for _, s := range before {
		assert.NotEqual(t, s.ID, added.ID)
	}

	got, err := f.svc.GetSection(ctx, u.ID, added.ID)
	require.NoError(t, err)
	assert.Equal(t, "T", got.Title)
	assert.Equal(t, "C", got.Content)
	assert.NotNil(t, got.Images)

	after, err := f.svc.ListSections(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, after, len(before)+1)
	assert.Equal(t, added.ID, after[len(after)-1].ID)
}

func TestAddSection_RequiresTitleAndContent(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice")

	_, err := f.svc.AddSection(context.Background(), u.ID, "", "C")
	assert.True(t, IsValidation(err))
	_, err = f.svc.AddSection(context.Background(), u.ID, "T", "   ")
	assert.True(t, IsValidation(err))

	sections, err := f.svc.ListSections(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Len(t, sections, 6)
}

func TestGetSection_NotFound(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice")

	_, err := f.svc.GetSection(context.Background(), u.ID, "missing")
	assert.ErrorIs(t, err, ErrSectionNotFound)
}

func TestUpdateSection_OnlyTouchesSuppliedFields(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice")
	ctx := context.Background()
	id := firstSectionID(t, f, u.ID)

	f.svc.now = func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }
	updated, err := f.svc.UpdateSection(ctx, u.ID, id, SectionPatch{Content: strptr("My childhood")})
	require.NoError(t, err)
	assert.Equal(t, "Early Childhood", updated.Title)
	assert.Equal(t, "My childhood", updated.Content)
	assert.Equal(t, "2030-01-01T00:00:00Z", updated.UpdatedAt)

	got, err := f.svc.GetSection(ctx, u.ID, id)
	require.NoError(t, err)
	assert.Equal(t, "My childhood", got.Content)

	_, err = f.svc.UpdateSection(ctx, u.ID, id, SectionPatch{Title: strptr("")})
	assert.True(t, IsValidation(err))

	_, err = f.svc.UpdateSection(ctx, u.ID, "missing", SectionPatch{Title: strptr("x")})
	assert.ErrorIs(t, err, ErrSectionNotFound)
}

func TestDeleteSection(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice")
	ctx := context.Background()
	id := firstSectionID(t, f, u.ID)

	require.NoError(t, f.svc.DeleteSection(ctx, u.ID, id))
	_, err := f.svc.GetSection(ctx, u.ID, id)
	assert.ErrorIs(t, err, ErrSectionNotFound)

	sections, err := f.svc.ListSections(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, sections, 5)

	assert.ErrorIs(t, f.svc.DeleteSection(ctx, u.ID, id), ErrSectionNotFound)
}

// 删除 section 不会删除其图片：图片行成为孤儿，仍能按 section id 直接查到。
func TestDeleteSection_LeavesImagesOrphaned(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice")
	ctx := context.Background()
	id := firstSectionID(t, f, u.ID)

	rows, err := f.svc.UploadReplacing(ctx, u.ID, id, files("a", "b"), nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NoError(t, f.svc.DeleteSection(ctx, u.ID, id))

	orphans, err := f.svc.Repository().ListSectionImages(ctx, rows[0].ProfileID, id)
	require.NoError(t, err)
	assert.Len(t, orphans, 2)
	assert.True(t, f.store.has(rows[0].ObjectKey))

	_, err = f.svc.ListSectionImages(ctx, u.ID, id)
	assert.ErrorIs(t, err, ErrSectionNotFound)
}

func TestService_ReorderSections(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice")
	ctx := context.Background()

	_, err := f.svc.ReplaceSections(ctx, u.ID, []SectionInput{{ID: "id1", Title: "One"}, {ID: "id2", Title: "Two"}, {ID: "id3", Title: "Three"}})
	require.NoError(t, err)

	out, err := f.svc.ReorderSections(ctx, u.ID, []string{"id2", "id1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"id2", "id1", "id3"}, ids(out))

	stored, err := f.svc.ListSections(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"id2", "id1", "id3"}, ids(stored))

	_, err = f.svc.ReorderSections(ctx, u.ID, nil)
	assert.EqualError(t, err, "section_ids array is required")
}

func TestReplaceAndResetSections_OrphanImages(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice")
	ctx := context.Background()
	id := firstSectionID(t, f, u.ID)

	_, err := f.svc.UploadReplacing(ctx, u.ID, id, files("a"), nil)
	require.NoError(t, err)

	replaced, err := f.svc.ReplaceSections(ctx, u.ID, []SectionInput{{Title: "Only", Content: "one"}})
	require.NoError(t, err)
	require.Len(t, replaced, 1)

	reset, err := f.svc.ResetSections(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, reset, 6)
	assert.NotEqual(t, id, reset[0].ID)

	p, err := f.svc.GetOrCreate(ctx, u.ID)
	require.NoError(t, err)
	orphans, err := f.svc.Repository().ListSectionImages(ctx, p.ID, id)
	require.NoError(t, err)
	assert.Len(t, orphans, 1)
}

// 超长 id 在写入前被拒绝，不会进入列表，也就无法再上传到 section_images。
func TestReplaceSections_RejectsOverlongID(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice")
	ctx := context.Background()
	before, err := f.svc.ListSections(ctx, u.ID)
	require.NoError(t, err)

	long := strings.Repeat("x", 200)
	_, err = f.svc.ReplaceSections(ctx, u.ID, []SectionInput{{ID: long, Title: "Too long"}})
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	after, err := f.svc.ListSections(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, ids(before), ids(after))

	_, err = f.svc.UploadReplacing(ctx, u.ID, long, files("a"), nil)
	assert.ErrorIs(t, err, ErrSectionNotFound)
	assert.Zero(t, f.store.count())
}

// 两个基于旧快照的写入者：后写入的整行覆盖前者，前者的修改丢失。
func TestConcurrentWriters_LastWriteWins(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice")
	ctx := context.Background()
	repo := f.svc.Repository()

	stale1, err := f.svc.GetOrCreate(ctx, u.ID)
	require.NoError(t, err)
	stale2, err := f.svc.GetOrCreate(ctx, u.ID)
	require.NoError(t, err)

	stale1.Sections = append(stale1.Sections, newSection("Added", "lost", time.Now()))
	require.NoError(t, repo.Save(ctx, stale1))

	last := stale2.Sections[len(stale2.Sections)-1].ID
	stale2.Sections = reorderSections(stale2.Sections, []string{last})
	require.NoError(t, repo.Save(ctx, stale2))

	final, err := f.svc.ListSections(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, final, 6)
	assert.Equal(t, last, final[0].ID)
	for _, s := range final {
		assert.NotEqual(t, "Added", s.Title)
	}
}

func TestUpdateFields(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice")
	ctx := context.Background()

	p, err := f.svc.UpdateFields(ctx, u.ID, FieldsUpdate{
		Bio:        strptr("Hello"),
		Website:    strptr("https://alice.example"),
		JoinedDate: strptr("2001-09-10"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", p.Bio)
	require.NotNil(t, p.JoinedDate)
	assert.Equal(t, "2001-09-10", p.JoinedDate.Format("2006-01-02"))

	p, err = f.svc.UpdateFields(ctx, u.ID, FieldsUpdate{Location: strptr("Lahore"), JoinedDate: strptr("")})
	require.NoError(t, err)
	assert.Equal(t, "Hello", p.Bio)
	assert.Equal(t, "Lahore", p.Location)
	assert.Nil(t, p.JoinedDate)

	_, err = f.svc.UpdateFields(ctx, u.ID, FieldsUpdate{Website: strptr("not a url")})
	assert.EqualError(t, err, "website must be a valid URL")
	_, err = f.svc.UpdateFields(ctx, u.ID, FieldsUpdate{JoinedDate: strptr("10/09/2001")})
	assert.True(t, IsValidation(err))
}

func TestUpdateComplete_AppliesInOrder(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice")
	ctx := context.Background()

	p, err := f.svc.UpdateComplete(ctx, u.ID, CompleteUpdate{
		Fields:   FieldsUpdate{Bio: strptr("bio")},
		Sections: []SectionInput{{ID: "s1", Title: "One"}, {ID: "s2", Title: "Two"}},
		SectionImages: map[string]ImageBatch{
			"s2":      {Images: files("x", "y"), Captions: []string{"first"}},
			"unknown": {Images: files("z")},
		},
		DisplayImage: &ImageFile{Filename: "me.png", Data: []byte("me")},
	})
	require.NoError(t, err)
	assert.Equal(t, "bio", p.Bio)
	assert.Equal(t, []string{"s1", "s2"}, ids(p.Sections))
	assert.NotEmpty(t, p.ImageKey)

	rows, err := f.svc.ListSectionImages(ctx, u.ID, "s2")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "first", rows[0].Caption)
	assert.Equal(t, "", rows[1].Caption)
}

// 中途失败时不回滚：sections 替换与第一个 section 的图片已生效，标量字段未更新。
func TestUpdateComplete_PartialApplicationOnFailure(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice")
	ctx := context.Background()
	f.store.failUploadContain = "/sections/s2/"

	_, err := f.svc.UpdateComplete(ctx, u.ID, CompleteUpdate{
		Fields:   FieldsUpdate{Bio: strptr("never applied")},
		Sections: []SectionInput{{ID: "s1", Title: "One"}, {ID: "s2", Title: "Two"}},
		SectionImages: map[string]ImageBatch{
			"s1": {Images: files("a")},
			"s2": {Images: files("b")},
		},
	})
	require.Error(t, err)
	assert.False(t, IsValidation(err))

	p, err := f.svc.GetOrCreate(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, ids(p.Sections))
	assert.Equal(t, "", p.Bio)

	s1, err := f.svc.ListSectionImages(ctx, u.ID, "s1")
	require.NoError(t, err)
	assert.Len(t, s1, 1)
	s2, err := f.svc.ListSectionImages(ctx, u.ID, "s2")
	require.NoError(t, err)
	assert.Empty(t, s2)
}

func TestUpdateComplete_ValidationAppliesNothing(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice")
	ctx := context.Background()

	_, err := f.svc.UpdateComplete(ctx, u.ID, CompleteUpdate{
		Sections:      []SectionInput{{ID: "s1", Title: "One"}},
		SectionImages: map[string]ImageBatch{"s1": {Images: files("a"), Captions: []string{"1", "2"}}},
	})
	require.True(t, IsValidation(err))

	sections, err := f.svc.ListSections(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, sections, 6)
}
