package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Lordevs/legacyverse-backend/internal/database"
	"github.com/Lordevs/legacyverse-backend/internal/profile"
)

type captionRequest struct {
	Caption *string `json:"caption"`
}

func imageIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("imageId"), 10, 64)
	if err != nil || id == 0 {
		NotFound(c, profile.ErrImageNotFound.Error())
		return 0, false
	}
	return uint(id), true
}

// imageScope: self 路由只按 profile 限定；admin 路由额外按 section 限定。
func (h *ProfileHandler) imageScope(c *gin.Context) profile.ImageScope {
	if h.admin {
		return profile.ImageScope{SectionID: c.Param("sectionId")}
	}
	return profile.ImageScope{}
}

func (h *ProfileHandler) ListSectionImages(c *gin.Context) {
	userID, ok := h.target(c)
	if !ok {
		return
	}
	rows, err := h.svc.ListSectionImages(c.Request.Context(), userID, c.Param("sectionId"))
	if err != nil {
		serviceError(c, err, "list images")
		return
	}
	c.JSON(http.StatusOK, gin.H{"images": h.svc.SectionImageViews(c.Request.Context(), rows)})
}

// UploadSectionImages: self 替换该 section 的全部图片，admin 只追加。
func (h *ProfileHandler) UploadSectionImages(c *gin.Context) {
	userID, ok := h.target(c)
	if !ok {
		return
	}
	images, captions, err := imageBatchFromRequest(c, h.maxImageBytes)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	sectionID := c.Param("sectionId")
	upload := h.svc.UploadReplacing
	if h.admin {
		upload = h.svc.UploadAppending
	}
	rows, err := upload(ctx, userID, sectionID, images, captions)
	if err != nil {
		serviceError(c, err, "upload images")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Images uploaded successfully",
		"images":  h.svc.SectionImageViews(ctx, rows),
	})
}

func (h *ProfileHandler) UpdateSectionImage(c *gin.Context) {
	userID, ok := h.target(c)
	if !ok {
		return
	}
	imageID, ok := imageIDParam(c)
	if !ok {
		return
	}
	var req captionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Caption == nil {
		BadRequest(c, "caption is required")
		return
	}
	ctx := c.Request.Context()
	row, err := h.svc.UpdateSectionImageCaption(ctx, userID, h.imageScope(c), imageID, *req.Caption)
	if err != nil {
		serviceError(c, err, "update image")
		return
	}
	c.JSON(http.StatusOK, h.svc.SectionImageViews(ctx, []database.SectionImage{*row})[0])
}

func (h *ProfileHandler) DeleteSectionImage(c *gin.Context) {
	userID, ok := h.target(c)
	if !ok {
		return
	}
	imageID, ok := imageIDParam(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteSectionImage(c.Request.Context(), userID, h.imageScope(c), imageID); err != nil {
		serviceError(c, err, "delete image")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Image deleted successfully"})
}

func (h *ProfileHandler) ListChildhoodImages(c *gin.Context) {
	userID, ok := h.target(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	rows, err := h.svc.ListProfileImages(ctx, userID)
	if err != nil {
		serviceError(c, err, "list images")
		return
	}
	c.JSON(http.StatusOK, gin.H{"images": h.svc.ProfileImageViews(ctx, rows)})
}

// UploadChildhoodImages 总是追加。
func (h *ProfileHandler) UploadChildhoodImages(c *gin.Context) {
	userID, ok := h.target(c)
	if !ok {
		return
	}
	images, captions, err := imageBatchFromRequest(c, h.maxImageBytes)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	rows, err := h.svc.UploadProfileImages(ctx, userID, images, captions)
	if err != nil {
		serviceError(c, err, "upload images")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Images uploaded successfully",
		"images":  h.svc.ProfileImageViews(ctx, rows),
	})
}

func (h *ProfileHandler) UpdateChildhoodImage(c *gin.Context) {
	userID, ok := h.target(c)
	if !ok {
		return
	}
	imageID, ok := imageIDParam(c)
	if !ok {
		return
	}
	var req captionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Caption == nil {
		BadRequest(c, "caption is required")
		return
	}
	ctx := c.Request.Context()
	row, err := h.svc.UpdateProfileImageCaption(ctx, userID, imageID, *req.Caption)
	if err != nil {
		serviceError(c, err, "update image")
		return
	}
	c.JSON(http.StatusOK, h.svc.ProfileImageViews(ctx, []database.ProfileImage{*row})[0])
}

func (h *ProfileHandler) DeleteChildhoodImage(c *gin.Context) {
	userID, ok := h.target(c)
	if !ok {
		return
	}
	imageID, ok := imageIDParam(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteProfileImage(c.Request.Context(), userID, imageID); err != nil {
		serviceError(c, err, "delete image")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Image deleted successfully"})
}

func (h *ProfileHandler) DeleteAllChildhoodImages(c *gin.Context) {
	userID, ok := h.target(c)
	if !ok {
		return
	}
	removed, err := h.svc.DeleteAllProfileImages(c.Request.Context(), userID)
	if err != nil {
		serviceError(c, err, "delete images")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Images deleted successfully", "deleted": removed})
}
