package profile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Lordevs/legacyverse-backend/internal/database"
	"github.com/Lordevs/legacyverse-backend/internal/database/dbtest"
	"github.com/Lordevs/legacyverse-backend/internal/media"
)

type fakeStore struct {
	mu sync.Mutex

	objects map[string][]byte
	deleted []string

	failDelete        map[string]bool
	failUploadContain string
	presignTTLs       []time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}, failDelete: map[string]bool{}}
}

func (s *fakeStore) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUploadContain != "" && strings.Contains(objectName, s.failUploadContain) {
		return nil, errors.New("storage unavailable")
	}
	b, _ := io.ReadAll(reader)
	s.objects[objectName] = b
	return &minio.UploadInfo{Key: objectName}, nil
}

func (s *fakeStore) GeneratePresignedURL(_ context.Context, objectKey string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	s.presignTTLs = append(s.presignTTLs, ttl)
	s.mu.Unlock()
	return "https://files.example.invalid/" + objectKey, nil
}

func (s *fakeStore) DeleteObject(_ context.Context, objectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete[objectKey] {
		return errors.New("storage unavailable")
	}
	s.deleted = append(s.deleted, objectKey)
	delete(s.objects, objectKey)
	return nil
}

func (s *fakeStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// fakePreparer 把文件内容原样返回；内容为 "virus" 时视为感染。
type fakePreparer struct{}

func (fakePreparer) Prepare(_ context.Context, filename string, data []byte) (*media.Prepared, error) {
	if bytes.Equal(data, []byte("virus")) {
		return nil, fmt.Errorf("%s: %w", filename, media.ErrInfected)
	}
	return &media.Prepared{Data: data, ContentType: "image/png", Ext: "png", Width: 10, Height: 10}, nil
}

type fakeCache struct {
	mu          sync.Mutex
	entries     map[uint]*ProfileView
	sets        int
	invalidated []uint
}

func newFakeCache() *fakeCache { return &fakeCache{entries: map[uint]*ProfileView{}} }

func (c *fakeCache) Get(_ context.Context, userID uint) (*ProfileView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[userID], nil
}

func (c *fakeCache) Set(_ context.Context, userID uint, view *ProfileView) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.entries[userID] = view
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, userID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, userID)
	delete(c.entries, userID)
	return nil
}

type fixture struct {
	db    *gorm.DB
	svc   *Service
	store *fakeStore
	cache *fakeCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	store := newFakeStore()
	cache := newFakeCache()
	svc := NewService(db, store, fakePreparer{}, cache, nil, Options{MaxImagesPerUpload: 10})
	return &fixture{db: db, svc: svc, store: store, cache: cache}
}

func (f *fixture) user(t *testing.T, username string) *database.User {
	t.Helper()
	u := &database.User{
		Email:    username + "@example.com",
		Fullname: strings.ToUpper(username[:1]) + username[1:],
		Username: username,
		IsActive: true,
	}
	require.NoError(t, f.db.Create(u).Error)
	return u
}

func files(names ...string) []ImageFile {
	out := make([]ImageFile, 0, len(names))
	for _, n := range names {
		out = append(out, ImageFile{Filename: n + ".png", Data: []byte(n)})
	}
	return out
}

func firstSectionID(t *testing.T, f *fixture, userID uint) string {
	t.Helper()
	sections, err := f.svc.ListSections(context.Background(), userID)
	require.NoError(t, err)
	require.NotEmpty(t, sections)
	return sections[0].ID
}
