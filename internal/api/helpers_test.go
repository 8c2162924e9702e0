package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Lordevs/legacyverse-backend/internal/auth"
	"github.com/Lordevs/legacyverse-backend/internal/config"
	"github.com/Lordevs/legacyverse-backend/internal/database"
	"github.com/Lordevs/legacyverse-backend/internal/database/dbtest"
	"github.com/Lordevs/legacyverse-backend/internal/media"
	"github.com/Lordevs/legacyverse-backend/internal/profile"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *fakeStore) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, _ := io.ReadAll(reader)
	s.objects[objectName] = b
	return &minio.UploadInfo{Key: objectName}, nil
}

func (s *fakeStore) GeneratePresignedURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	return "https://files.example.invalid/" + objectKey, nil
}

func (s *fakeStore) DeleteObject(_ context.Context, objectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectKey)
	return nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type fakeQueue struct {
	tasks []*asynq.Task
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: fmt.Sprintf("task-%d", len(q.tasks)), Type: task.Type()}, nil
}

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
	auth   *auth.AuthService
	store  *fakeStore
	queue  *fakeQueue
	resets *resetOutbox
}

// resetOutbox 收集发出的重置令牌。
type resetOutbox struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (o *resetOutbox) SendPasswordReset(_ context.Context, user *database.User, token string, _ time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tokens[user.Email] = token
	return nil
}

func (o *resetOutbox) token(email string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tokens[email]
}

func newAuthService(t *testing.T) *auth.AuthService {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	svc, err := auth.NewAuthService(privPEM, pubPEM, 15*time.Minute, time.Hour)
	require.NoError(t, err)
	return svc
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := dbtest.Open(t)
	store := &fakeStore{objects: map[string][]byte{}}
	queue := &fakeQueue{}
	authService := newAuthService(t)

	cfg := &config.Config{
		API: config.APIConfig{
			MaxUploadMB:           10,
			LoginRateLimitPerHour: 10,
			LoginLockThreshold:    5,
			LoginLockTTL:          time.Minute,
		},
		Media: config.MediaConfig{
			MaxDimension:       512,
			MaxImageBytes:      1 << 20,
			MaxImagesPerUpload: 3,
		},
	}

	// 测试环境没有 Redis：登录限流按不可用降级处理。
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })

	processor := media.NewProcessor(media.NopScanner{}, cfg.Media.MaxDimension, cfg.Media.MaxImageBytes)
	profiles := profile.NewService(db, store, processor, nil, zap.NewNop(), profile.Options{MaxImagesPerUpload: cfg.Media.MaxImagesPerUpload})

	outbox := &resetOutbox{tokens: map[string]string{}}
	router := NewRouter(cfg, zap.NewNop())
	RegisterRoutes(router, Dependencies{
		Config:   cfg,
		DB:       db,
		Auth:     authService,
		Resets:   auth.NewPasswordResetService(db, outbox, time.Hour),
		Profiles: profiles,
		Redis:    rdb,
		Queue:    queue,
		Logger:   zap.NewNop(),
	})
	return &testEnv{router: router, db: db, auth: authService, store: store, queue: queue, resets: outbox}
}

func (e *testEnv) createUser(t *testing.T, username string, admin bool) *database.User {
	t.Helper()
	hashed, err := auth.HashPassword("correct-horse-1")
	require.NoError(t, err)
	u := &database.User{
		Email:        username + "@example.com",
		Fullname:     username,
		Username:     username,
		PasswordHash: hashed,
		IsActive:     true,
		IsStaff:      admin,
	}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

func (e *testEnv) token(t *testing.T, userID uint) string {
	t.Helper()
	pair, err := e.auth.GenerateTokenPair(userID, false)
	require.NoError(t, err)
	return pair.AccessToken
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// upload 发送 multipart 请求，field 下附 n 张 PNG 图片。
func (e *testEnv) upload(t *testing.T, method, path, token, field string, n int, captions ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for i := 0; i < n; i++ {
		part, err := mw.CreateFormFile(field, fmt.Sprintf("photo-%d.png", i))
		require.NoError(t, err)
		_, err = part.Write(pngBytes(t))
		require.NoError(t, err)
	}
	for _, c := range captions {
		require.NoError(t, mw.WriteField("captions", c))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type sectionsBody struct {
	Message  string             `json:"message"`
	Sections []database.Section `json:"sections"`
}

type imagesBody struct {
	Message string              `json:"message"`
	Images  []profile.ImageView `json:"images"`
}

func (e *testEnv) sections(t *testing.T, path, token string) []database.Section {
	t.Helper()
	w := e.do(t, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[sectionsBody](t, w).Sections
}
