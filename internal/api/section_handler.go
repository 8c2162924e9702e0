package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Lordevs/legacyverse-backend/internal/profile"
)

type addSectionRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type reorderSectionsRequest struct {
	SectionIDs []string `json:"section_ids"`
}

func (h *ProfileHandler) ListSections(c *gin.Context) {
	userID, ok := h.target(c)
	if !ok {
		return
	}
	sections, err := h.svc.ListSections(c.Request.Context(), userID)
	if err != nil {
		serviceError(c, err, "list sections")
		return
	}
	c.JSON(http.StatusOK, gin.H{"sections": sections})
}

// AddSection 追加 section，返回 201。
func (h *ProfileHandler) AddSection(c *gin.Context) {
	userID, ok := h.target(c)
	if !ok {
		return
	}
	var req addSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "title and content are required")
		return
	}
	section, err := h.svc.AddSection(c.Request.Context(), userID, req.Title, req.Content)
	if err != nil {
		serviceError(c, err, "add section")
		return
	}
	c.JSON(http.StatusCreated, section)
}

func (h *ProfileHandler) GetSection(c *gin.Context) {
	userID, ok := h.target(c)
	if !ok {
		return
	}
	section, err := h.svc.GetSection(c.Request.Context(), userID, c.Param("sectionId"))
	if err != nil {
		serviceError(c, err, "get section")
		return
	}
	c.JSON(http.StatusOK, section)
}

// UpdateSection 处理 PUT 与 PATCH，两者都只修改提交了的字段。
func (h *ProfileHandler) UpdateSection(c *gin.Context) {
	userID, ok := h.target(c)
	if !ok {
		return
	}
	var patch profile.SectionPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		BadRequest(c, err.Error())
		return
	}
	section, err := h.svc.UpdateSection(c.Request.Context(), userID, c.Param("sectionId"), patch)
	if err != nil {
		serviceError(c, err, "update section")
		return
	}
	c.JSON(http.StatusOK, section)
}

func (h *ProfileHandler) DeleteSection(c *gin.Context) {
	userID, ok := h.target(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteSection(c.Request.Context(), userID, c.Param("sectionId")); err != nil {
		serviceError(c, err, "delete section")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Section deleted successfully"})
}

func (h *ProfileHandler) ReorderSections(c *gin.Context) {
	userID, ok := h.target(c)
	if !ok {
		return
	}
	var req reorderSectionsRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.SectionIDs) == 0 {
		BadRequest(c, "section_ids array is required")
		return
	}
	sections, err := h.svc.ReorderSections(c.Request.Context(), userID, req.SectionIDs)
	if err != nil {
		serviceError(c, err, "reorder sections")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Sections reordered successfully", "sections": sections})
}

func (h *ProfileHandler) ResetSections(c *gin.Context) {
	userID, ok := h.target(c)
	if !ok {
		return
	}
	sections, err := h.svc.ResetSections(c.Request.Context(), userID)
	if err != nil {
		serviceError(c, err, "reset sections")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Sections reset to default", "sections": sections})
}
