package handler

import (
	"net/http"

	"github.com/damoang/recipe-cms/internal/common"
	"github.com/damoang/recipe-cms/internal/middleware"
	"github.com/damoang/recipe-cms/internal/service"
	"github.com/damoang/recipe-cms/pkg/ginutil"
	"github.com/gin-gonic/gin"
)

// PostHandler handles HTTP requests for posts
type PostHandler struct {
	service service.PostService
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(service service.PostService) *PostHandler {
	return &PostHandler{service: service}
}

// GetPost GET /api/v1/posts/:id
func (h *PostHandler) GetPost(c *gin.Context) {
	id, err := ginutil.ParamUint64(c, "id")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid post ID", err)
		return
	}

	post, err := h.service.GetPost(c.Request.Context(), id)
	if err != nil {
		common.ServiceErrorResponse(c, "Failed to fetch post", err)
		return
	}

	common.SuccessResponse(c, post, nil)
}

// CreatePost POST /api/v1/posts
// 게시글과 함께 첫 번째 버전(draft)을 생성
func (h *PostHandler) CreatePost(c *gin.Context) {
	var req service.PostInput
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	actor, _ := middleware.GetActor(c)
	post, version, err := h.service.CreatePost(c.Request.Context(), &req, actor)
	if err != nil {
		common.ServiceErrorResponse(c, "Failed to create post", err)
		return
	}

	common.CreatedResponse(c, gin.H{"post": post, "version": version})
}

// UpdatePost PUT /api/v1/posts/:id
// 게시글 필드를 저장하고 현재 draft 버전에 반영
func (h *PostHandler) UpdatePost(c *gin.Context) {
	id, err := ginutil.ParamUint64(c, "id")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid post ID", err)
		return
	}

	var req service.PostInput
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	actor, _ := middleware.GetActor(c)
	post, version, err := h.service.UpdatePost(c.Request.Context(), id, &req, actor)
	if err != nil {
		common.ServiceErrorResponse(c, "Failed to update post", err)
		return
	}

	common.SuccessResponse(c, gin.H{"post": post, "version": version}, nil)
}

// DeletePost DELETE /api/v1/posts/:id
func (h *PostHandler) DeletePost(c *gin.Context) {
	id, err := ginutil.ParamUint64(c, "id")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid post ID", err)
		return
	}

	if err := h.service.DeletePost(c.Request.Context(), id); err != nil {
		common.ServiceErrorResponse(c, "Failed to delete post", err)
		return
	}

	c.Status(http.StatusNoContent)
}
