package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Lordevs/legacyverse-backend/internal/profile"
)

// ProfileHandler 同时服务 self 与 admin 两套路由。
// 两者只在目标用户解析、权限与图片上传语义（替换/追加）上不同。
type ProfileHandler struct {
	svc           *profile.Service
	admin         bool
	maxImageBytes int64
}

// NewSelfProfileHandler 作用于当前登录用户。
func NewSelfProfileHandler(svc *profile.Service, maxImageBytes int64) *ProfileHandler {
	return &ProfileHandler{svc: svc, maxImageBytes: maxImageBytes}
}

// NewAdminProfileHandler 作用于路径参数 :userId 指定的用户。
func NewAdminProfileHandler(svc *profile.Service, maxImageBytes int64) *ProfileHandler {
	return &ProfileHandler{svc: svc, admin: true, maxImageBytes: maxImageBytes}
}

// target 解析目标用户；失败时已写出响应。
func (h *ProfileHandler) target(c *gin.Context) (uint, bool) {
	if !h.admin {
		userID, ok := userIDFromContext(c)
		if !ok {
			AbortUnauthorized(c)
		}
		return userID, ok
	}

	id, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil || id == 0 {
		NotFound(c, profile.ErrUserNotFound.Error())
		return 0, false
	}
	if _, err := h.svc.ResolveUser(c.Request.Context(), uint(id)); err != nil {
		serviceError(c, err, "resolve user")
		return 0, false
	}
	return uint(id), true
}

func (h *ProfileHandler) respondProfile(c *gin.Context, userID uint) {
	view, err := h.svc.GetProfile(c.Request.Context(), userID)
	if err != nil {
		serviceError(c, err, "load profile")
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetProfile 返回完整 profile（不存在时自动创建）。
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID, ok := h.target(c)
	if !ok {
		return
	}
	h.respondProfile(c, userID)
}

// UpdateProfile 部分更新 bio、location、website、joined_date。
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	userID, ok := h.target(c)
	if !ok {
		return
	}
	var req profile.FieldsUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if _, err := h.svc.UpdateFields(c.Request.Context(), userID, req); err != nil {
		serviceError(c, err, "update profile")
		return
	}
	h.respondProfile(c, userID)
}

// UploadDisplayImage 替换头像（字段 image）。
func (h *ProfileHandler) UploadDisplayImage(c *gin.Context) {
	userID, ok := h.target(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("image")
	if err != nil {
		BadRequest(c, "image file is required")
		return
	}
	data, err := readFileHeader(fh, h.maxImageBytes)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	if _, err := h.svc.SetDisplayImage(c.Request.Context(), userID, profile.ImageFile{Filename: fh.Filename, Data: data}); err != nil {
		serviceError(c, err, "upload profile image")
		return
	}
	h.respondProfile(c, userID)
}

func (h *ProfileHandler) DeleteDisplayImage(c *gin.Context) {
	userID, ok := h.target(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteDisplayImage(c.Request.Context(), userID); err != nil {
		serviceError(c, err, "delete profile image")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile image deleted successfully"})
}

type completeUpdateRequest struct {
	profile.FieldsUpdate
	Sections []profile.SectionInput `json:"sections"`
}

// UpdateComplete 接受 JSON 或 multipart。
// multipart 时：sections 为 JSON 字符串，头像字段 image，
// 每个 section 的图片字段为 section_{id}_images，标题为 section_{id}_captions。
func (h *ProfileHandler) UpdateComplete(c *gin.Context) {
	userID, ok := h.target(c)
	if !ok {
		return
	}

	var in profile.CompleteUpdate
	if isMultipart(c) {
		parsed, err := h.parseCompleteForm(c)
		if err != nil {
			BadRequest(c, err.Error())
			return
		}
		in = *parsed
	} else {
		var req completeUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, err.Error())
			return
		}
		in = profile.CompleteUpdate{Fields: req.FieldsUpdate, Sections: req.Sections}
	}

	if _, err := h.svc.UpdateComplete(c.Request.Context(), userID, in); err != nil {
		serviceError(c, err, "update profile")
		return
	}
	h.respondProfile(c, userID)
}

func (h *ProfileHandler) parseCompleteForm(c *gin.Context) (*profile.CompleteUpdate, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}

	in := &profile.CompleteUpdate{
		Fields: profile.FieldsUpdate{
			Bio:        formValue(form, "bio"),
			Location:   formValue(form, "location"),
			Website:    formValue(form, "website"),
			JoinedDate: formValue(form, "joined_date"),
		},
		SectionImages: map[string]profile.ImageBatch{},
	}

	if raw := formValue(form, "sections"); raw != nil && strings.TrimSpace(*raw) != "" {
		var sections []profile.SectionInput
		if err := json.Unmarshal([]byte(*raw), &sections); err != nil {
			return nil, errInvalidSectionsField
		}
		in.Sections = sections
	}

	if files, err := formFiles(form, "image", h.maxImageBytes); err != nil {
		return nil, err
	} else if len(files) > 0 {
		in.DisplayImage = &files[0]
	}

	for field := range form.File {
		sectionID, ok := sectionImageField(field)
		if !ok {
			continue
		}
		if _, done := in.SectionImages[sectionID]; done {
			continue
		}
		images, err := formFiles(form, "section_"+sectionID+"_images", h.maxImageBytes)
		if err != nil {
			return nil, err
		}
		captions, err := formCaptions(form, "section_"+sectionID+"_captions")
		if err != nil {
			return nil, err
		}
		in.SectionImages[sectionID] = profile.ImageBatch{Images: images, Captions: captions}
	}
	return in, nil
}

// sectionImageField 从 section_{id}_images（或带 []）中取出 section id。
func sectionImageField(field string) (string, bool) {
	field = strings.TrimSuffix(field, "[]")
	if !strings.HasPrefix(field, "section_") || !strings.HasSuffix(field, "_images") {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(field, "section_"), "_images")
	return id, id != ""
}

// PublicProfile 按用户名返回公开资料，无需登录。
func (h *ProfileHandler) PublicProfile(c *gin.Context) {
	view, err := h.svc.PublicProfile(c.Request.Context(), c.Param("username"))
	if err != nil {
		serviceError(c, err, "load profile")
		return
	}
	c.JSON(http.StatusOK, view)
}
