package handler

import (
	"net/http"

	"github.com/damoang/recipe-cms/internal/common"
	"github.com/damoang/recipe-cms/internal/domain"
	"github.com/damoang/recipe-cms/internal/middleware"
	"github.com/damoang/recipe-cms/internal/service"
	"github.com/damoang/recipe-cms/pkg/ginutil"
	"github.com/gin-gonic/gin"
)

// CreateVersionRequest body for POST /posts/:id/versions
type CreateVersionRequest struct {
	Snapshot map[string]interface{} `json:"snapshot"`
	Note     string                 `json:"note" binding:"max=500"`
}

// UpdateDraftRequest body for PUT /posts/:id/draft
type UpdateDraftRequest struct {
	Snapshot map[string]interface{} `json:"snapshot"`
}

// VersionHandler handles content version endpoints
type VersionHandler struct {
	service service.VersionService
}

// NewVersionHandler creates a new VersionHandler
func NewVersionHandler(service service.VersionService) *VersionHandler {
	return &VersionHandler{service: service}
}

// ListVersions GET /api/v1/posts/:id/versions
func (h *VersionHandler) ListVersions(c *gin.Context) {
	ref, ok := postRef(c)
	if !ok {
		return
	}

	versions, err := h.service.ListVersions(c.Request.Context(), ref)
	if err != nil {
		common.ServiceErrorResponse(c, "Failed to fetch versions", err)
		return
	}

	common.SuccessResponse(c, versions, &common.Meta{Total: int64(len(versions))})
}

// CreateVersion POST /api/v1/posts/:id/versions
func (h *VersionHandler) CreateVersion(c *gin.Context) {
	ref, ok := postRef(c)
	if !ok {
		return
	}

	var req CreateVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	actor, _ := middleware.GetActor(c)
	version, err := h.service.CreateVersion(c.Request.Context(), ref, service.CreateVersionInput{
		Snapshot: req.Snapshot,
		Note:     req.Note,
		ActorID:  actor.ID,
	})
	if err != nil {
		common.ServiceErrorResponse(c, "Failed to create version", err)
		return
	}

	common.CreatedResponse(c, version)
}

// UpdateDraft PUT /api/v1/posts/:id/draft
// snapshot이 없으면 게시글의 현재 필드로 draft를 덮어씀
func (h *VersionHandler) UpdateDraft(c *gin.Context) {
	ref, ok := postRef(c)
	if !ok {
		return
	}

	var req UpdateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	actor, _ := middleware.GetActor(c)
	version, err := h.service.UpdateDraftVersion(c.Request.Context(), ref, req.Snapshot, actor.ID)
	if err != nil {
		common.ServiceErrorResponse(c, "Failed to update draft", err)
		return
	}

	common.SuccessResponse(c, version, nil)
}

// CurrentDraft GET /api/v1/posts/:id/draft
func (h *VersionHandler) CurrentDraft(c *gin.Context) {
	ref, ok := postRef(c)
	if !ok {
		return
	}

	version, err := h.service.CurrentDraft(c.Request.Context(), ref)
	if err != nil {
		common.ServiceErrorResponse(c, "Failed to fetch draft", err)
		return
	}

	common.SuccessResponse(c, version, nil)
}

// CurrentActive GET /api/v1/posts/:id/active
func (h *VersionHandler) CurrentActive(c *gin.Context) {
	ref, ok := postRef(c)
	if !ok {
		return
	}

	version, err := h.service.CurrentActive(c.Request.Context(), ref)
	if err != nil {
		common.ServiceErrorResponse(c, "Failed to fetch published version", err)
		return
	}

	common.SuccessResponse(c, version, nil)
}

// GetVersion GET /api/v1/versions/:id
func (h *VersionHandler) GetVersion(c *gin.Context) {
	id, err := ginutil.ParamUint64(c, "id")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid version ID", err)
		return
	}

	version, err := h.service.GetVersion(c.Request.Context(), id)
	if err != nil {
		common.ServiceErrorResponse(c, "Failed to fetch version", err)
		return
	}

	common.SuccessResponse(c, version, nil)
}

// History GET /api/v1/versions/:id/history
func (h *VersionHandler) History(c *gin.Context) {
	id, err := ginutil.ParamUint64(c, "id")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid version ID", err)
		return
	}

	records, err := h.service.History(c.Request.Context(), id)
	if err != nil {
		common.ServiceErrorResponse(c, "Failed to fetch history", err)
		return
	}

	common.SuccessResponse(c, records, &common.Meta{Total: int64(len(records))})
}

// Restore POST /api/v1/versions/:id/restore
func (h *VersionHandler) Restore(c *gin.Context) {
	id, err := ginutil.ParamUint64(c, "id")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid version ID", err)
		return
	}

	actor, _ := middleware.GetActor(c)
	version, err := h.service.RestoreFromVersion(c.Request.Context(), id, actor.ID)
	if err != nil {
		common.ServiceErrorResponse(c, "Failed to restore version", err)
		return
	}

	common.CreatedResponse(c, version)
}

func postRef(c *gin.Context) (domain.OwnerRef, bool) {
	id, err := ginutil.ParamUint64(c, "id")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid post ID", err)
		return domain.OwnerRef{}, false
	}
	return domain.OwnerRef{Type: domain.OwnerTypePost, ID: id}, true
}
