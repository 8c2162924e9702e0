package api

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Lordevs/legacyverse-backend/internal/api/middleware"
	"github.com/Lordevs/legacyverse-backend/internal/database"
)

var (
	slugStrip    = regexp.MustCompile(`[^\w\s-]`)
	slugCollapse = regexp.MustCompile(`[-\s]+`)

	errBlogNotFound = errors.New("Blog not found")
)

// BlogHandler 提供博客的增删改查。
type BlogHandler struct {
	db     *gorm.DB
	policy *bluemonday.Policy
	now    func() time.Time
}

func NewBlogHandler(db *gorm.DB) *BlogHandler {
	return &BlogHandler{db: db, policy: bluemonday.UGCPolicy(), now: time.Now}
}

type blogAuthor struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Fullname string `json:"fullname"`
}

type blogResponse struct {
	ID            uint       `json:"id"`
	Author        blogAuthor `json:"author"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	Status        string     `json:"status"`
	ContentSource string     `json:"content_source"`
	AIPrompt      string     `json:"ai_prompt,omitempty"`
	Slug          string     `json:"slug"`
	Excerpt       string     `json:"excerpt"`
	Tags          []string   `json:"tags"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	PublishedAt   *time.Time `json:"published_at"`
}

func newBlogResponse(b *database.Blog) blogResponse {
	return blogResponse{
		ID:            b.ID,
		Author:        blogAuthor{ID: b.Author.ID, Username: b.Author.Username, Fullname: b.Author.Fullname},
		Title:         b.Title,
		Content:       b.Content,
		Status:        b.Status,
		ContentSource: b.ContentSource,
		AIPrompt:      b.AIPrompt,
		Slug:          b.Slug,
		Excerpt:       b.Excerpt,
		Tags:          splitTags(b.Tags),
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
		PublishedAt:   b.PublishedAt,
	}
}

func splitTags(tags string) []string {
	out := []string{}
	for _, tag := range strings.Split(tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// slugify 只保留字母数字、下划线和连字符，空白折叠为单个连字符。
func slugify(title string) string {
	s := slugStrip.ReplaceAllString(strings.ToLower(title), "")
	s = slugCollapse.ReplaceAllString(strings.TrimSpace(s), "-")
	s = strings.Trim(s, "-_")
	if len(s) > 180 {
		s = strings.TrimRight(s[:180], "-_")
	}
	if s == "" {
		return "post"
	}
	return s
}

// uniqueSlug 在冲突时追加 -1, -2, ...
func (h *BlogHandler) uniqueSlug(tx *gorm.DB, title string) (string, error) {
	base := slugify(title)
	slug := base
	for counter := 1; ; counter++ {
		var count int64
		if err := tx.Unscoped().Model(&database.Blog{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, counter)
	}
}

type blogRequest struct {
	Title         *string `json:"title"`
	Content       *string `json:"content"`
	Status        *string `json:"status"`
	ContentSource *string `json:"content_source"`
	AIPrompt      *string `json:"ai_prompt"`
	Excerpt       *string `json:"excerpt"`
	Tags          *string `json:"tags"`
}

func (r blogRequest) validate(creating bool) error {
	if creating && (r.Title == nil || strings.TrimSpace(*r.Title) == "") {
		return errors.New("title is required")
	}
	if creating && r.Content == nil {
		return errors.New("content is required")
	}
	if r.Title != nil {
		title := strings.TrimSpace(*r.Title)
		if title == "" {
			return errors.New("title cannot be blank")
		}
		if len([]rune(title)) > 200 {
			return errors.New("title must be at most 200 characters")
		}
	}
	if r.Status != nil && *r.Status != database.BlogStatusDraft && *r.Status != database.BlogStatusPublic {
		return errors.New("status must be draft or public")
	}
	if r.ContentSource != nil {
		switch *r.ContentSource {
		case database.ContentSourceUserWritten, database.ContentSourceAIGenerated, database.ContentSourceAIRewritten:
		default:
			return errors.New("invalid content_source")
		}
	}
	if r.Tags != nil && len(*r.Tags) > 500 {
		return errors.New("tags must be at most 500 characters")
	}
	return nil
}

func (h *BlogHandler) apply(b *database.Blog, r blogRequest) {
	if r.Title != nil {
		b.Title = strings.TrimSpace(*r.Title)
	}
	if r.Content != nil {
		b.Content = h.policy.Sanitize(*r.Content)
	}
	if r.Status != nil {
		b.Status = *r.Status
	}
	if r.ContentSource != nil {
		b.ContentSource = *r.ContentSource
	}
	if r.AIPrompt != nil {
		b.AIPrompt = *r.AIPrompt
	}
	if r.Excerpt != nil {
		b.Excerpt = h.policy.Sanitize(*r.Excerpt)
	}
	if r.Tags != nil {
		b.Tags = strings.Join(splitTags(*r.Tags), ",")
	}
	// 首次公开时记录发布时间，之后不再改动
	if b.Status == database.BlogStatusPublic && b.PublishedAt == nil {
		now := h.now().UTC()
		b.PublishedAt = &now
	}
}

// List 返回公开博客，按创建时间倒序。
func (h *BlogHandler) List(c *gin.Context) {
	page, size := pagination(c)
	query := h.db.WithContext(c.Request.Context()).Model(&database.Blog{}).
		Where("status = ?", database.BlogStatusPublic)
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(content) LIKE ? OR LOWER(excerpt) LIKE ? OR LOWER(tags) LIKE ?", like, like, like, like)
	}
	if tag := strings.TrimSpace(c.Query("tag")); tag != "" {
		query = query.Where("LOWER(tags) LIKE ?", "%"+strings.ToLower(tag)+"%")
	}
	h.respondList(c, query, page, size)
}

// Mine 返回当前用户的全部博客（含草稿）。
func (h *BlogHandler) Mine(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	page, size := pagination(c)
	query := h.db.WithContext(c.Request.Context()).Model(&database.Blog{}).Where("author_id = ?", userID)
	h.respondList(c, query, page, size)
}

func (h *BlogHandler) respondList(c *gin.Context, query *gorm.DB, page, size int) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		middleware.LoggerFromContext(c).Error("count blogs failed", zap.Error(err))
		Internal(c, "failed to list blogs")
		return
	}
	var blogs []database.Blog
	if err := query.Preload("Author").Order("created_at DESC, id DESC").
		Offset((page - 1) * size).Limit(size).Find(&blogs).Error; err != nil {
		middleware.LoggerFromContext(c).Error("list blogs failed", zap.Error(err))
		Internal(c, "failed to list blogs")
		return
	}
	results := make([]blogResponse, 0, len(blogs))
	for i := range blogs {
		results = append(results, newBlogResponse(&blogs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"count": total, "page": page, "page_size": size, "results": results})
}

func (h *BlogHandler) findBySlug(c *gin.Context) (*database.Blog, error) {
	var blog database.Blog
	err := h.db.WithContext(c.Request.Context()).Preload("Author").Where("slug = ?", c.Param("slug")).First(&blog).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errBlogNotFound
	}
	if err != nil {
		return nil, err
	}
	return &blog, nil
}

// loadOwned 取出博客并确认当前用户是作者。
func (h *BlogHandler) loadOwned(c *gin.Context) (*database.Blog, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return nil, false
	}
	blog, err := h.findBySlug(c)
	if err != nil {
		h.blogError(c, err)
		return nil, false
	}
	if blog.AuthorID != userID {
		Forbidden(c, "You can only modify your own blogs")
		return nil, false
	}
	return blog, true
}

func (h *BlogHandler) blogError(c *gin.Context, err error) {
	if errors.Is(err, errBlogNotFound) {
		NotFound(c, err.Error())
		return
	}
	middleware.LoggerFromContext(c).Error("load blog failed", zap.Error(err))
	Internal(c, "failed to load blog")
}

// Get 返回单篇博客；草稿只对作者可见。
func (h *BlogHandler) Get(c *gin.Context) {
	blog, err := h.findBySlug(c)
	if err != nil {
		h.blogError(c, err)
		return
	}
	if blog.Status != database.BlogStatusPublic {
		if userID, ok := userIDFromContext(c); !ok || userID != blog.AuthorID {
			NotFound(c, errBlogNotFound.Error())
			return
		}
	}
	c.JSON(http.StatusOK, newBlogResponse(blog))
}

func (h *BlogHandler) Create(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req blogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if err := req.validate(true); err != nil {
		BadRequest(c, err.Error())
		return
	}

	blog := database.Blog{
		AuthorID:      userID,
		Status:        database.BlogStatusDraft,
		ContentSource: database.ContentSourceUserWritten,
	}
	h.apply(&blog, req)

	ctx := c.Request.Context()
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slug, err := h.uniqueSlug(tx, blog.Title)
		if err != nil {
			return err
		}
		blog.Slug = slug
		return tx.Create(&blog).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			Conflict(c, "slug already taken, retry")
			return
		}
		middleware.LoggerFromContext(c).Error("create blog failed", zap.Error(err))
		Internal(c, "failed to create blog")
		return
	}
	if err := h.db.WithContext(ctx).First(&blog.Author, userID).Error; err != nil {
		middleware.LoggerFromContext(c).Warn("load blog author failed", zap.Error(err))
	}
	c.JSON(http.StatusCreated, newBlogResponse(&blog))
}

// Update 处理 PUT 与 PATCH；slug 创建后不变。
func (h *BlogHandler) Update(c *gin.Context) {
	blog, ok := h.loadOwned(c)
	if !ok {
		return
	}
	var req blogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if err := req.validate(false); err != nil {
		BadRequest(c, err.Error())
		return
	}
	h.apply(blog, req)
	if err := h.db.WithContext(c.Request.Context()).Omit("Author").Save(blog).Error; err != nil {
		middleware.LoggerFromContext(c).Error("update blog failed", zap.Error(err))
		Internal(c, "failed to update blog")
		return
	}
	c.JSON(http.StatusOK, newBlogResponse(blog))
}

func (h *BlogHandler) Delete(c *gin.Context) {
	blog, ok := h.loadOwned(c)
	if !ok {
		return
	}
	if err := h.db.WithContext(c.Request.Context()).Unscoped().Delete(blog).Error; err != nil {
		middleware.LoggerFromContext(c).Error("delete blog failed", zap.Error(err))
		Internal(c, "failed to delete blog")
		return
	}
	c.Status(http.StatusNoContent)
}
