package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/damoang/recipe-cms/internal/common"
	"github.com/damoang/recipe-cms/internal/domain"
	"github.com/damoang/recipe-cms/internal/middleware"
	"github.com/damoang/recipe-cms/internal/service"
	"github.com/damoang/recipe-cms/pkg/ginutil"
	"github.com/damoang/recipe-cms/pkg/logger"
	"github.com/gin-gonic/gin"
)

// TransitionRequest body for POST /versions/:id/transition
type TransitionRequest struct {
	ToStatus string `json:"to_status" binding:"required"`
	Comment  string `json:"comment" binding:"max=1000"`
}

// WorkflowConfigStore persists per-type workflow overrides
type WorkflowConfigStore interface {
	Save(workflowKey string, cfg *domain.WorkflowConfig) error
}

// ConfigInvalidator drops a cached workflow config
type ConfigInvalidator interface {
	Invalidate(ctx context.Context, workflowKey string) error
}

// WorkflowHandler handles workflow transitions and workflow config administration
type WorkflowHandler struct {
	workflow    service.WorkflowService
	integrity   service.IntegrityService
	configs     service.ConfigProvider
	store       WorkflowConfigStore
	invalidator ConfigInvalidator
}

// NewWorkflowHandler creates a new WorkflowHandler. store and invalidator may be nil.
func NewWorkflowHandler(
	workflow service.WorkflowService,
	integrity service.IntegrityService,
	configs service.ConfigProvider,
	store WorkflowConfigStore,
	invalidator ConfigInvalidator,
) *WorkflowHandler {
	return &WorkflowHandler{
		workflow:    workflow,
		integrity:   integrity,
		configs:     configs,
		store:       store,
		invalidator: invalidator,
	}
}

// Transition POST /api/v1/versions/:id/transition
func (h *WorkflowHandler) Transition(c *gin.Context) {
	id, err := ginutil.ParamUint64(c, "id")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid version ID", err)
		return
	}

	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	actor, _ := middleware.GetActor(c)
	version, err := h.workflow.Transition(c.Request.Context(), id, req.ToStatus, req.Comment, actor)
	if err != nil {
		common.ServiceErrorResponse(c, "Transition failed", err)
		return
	}

	common.SuccessResponse(c, version, nil)
}

// AvailableTransitions GET /api/v1/versions/:id/transitions
func (h *WorkflowHandler) AvailableTransitions(c *gin.Context) {
	id, err := ginutil.ParamUint64(c, "id")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid version ID", err)
		return
	}

	actor, _ := middleware.GetActor(c)
	transitions, err := h.workflow.AvailableTransitions(c.Request.Context(), id, actor)
	if err != nil {
		common.ServiceErrorResponse(c, "Failed to fetch transitions", err)
		return
	}
	if transitions == nil {
		transitions = []domain.TransitionDef{}
	}

	common.SuccessResponse(c, transitions, nil)
}

// PostWorkflow GET /api/v1/posts/:id/workflow
func (h *WorkflowHandler) PostWorkflow(c *gin.Context) {
	ref, ok := postRef(c)
	if !ok {
		return
	}

	cfg, err := h.workflow.ResolveConfig(c.Request.Context(), ref)
	if err != nil {
		common.ServiceErrorResponse(c, "Failed to resolve workflow", err)
		return
	}

	common.SuccessResponse(c, cfg, nil)
}

// GetWorkflowConfig GET /api/v1/admin/workflows/:key
func (h *WorkflowHandler) GetWorkflowConfig(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))

	cfg, err := h.configs.Resolve(c.Request.Context(), key)
	if err != nil {
		common.ServiceErrorResponse(c, "Failed to resolve workflow", err)
		return
	}

	common.SuccessResponse(c, cfg, nil)
}

// SaveWorkflowConfig PUT /api/v1/admin/workflows/:key
// 설정 테이블에 저장 후 캐시 무효화
func (h *WorkflowHandler) SaveWorkflowConfig(c *gin.Context) {
	if h.store == nil {
		common.ErrorResponse(c, http.StatusNotImplemented, "Workflow overrides are read-only", nil)
		return
	}
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		common.ErrorResponse(c, http.StatusBadRequest, "Missing workflow key", nil)
		return
	}

	var cfg domain.WorkflowConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.store.Save(key, &cfg); err != nil {
		if errors.Is(err, common.ErrWorkflowConfig) {
			common.ErrorResponse(c, http.StatusUnprocessableEntity, "Invalid workflow config", err)
			return
		}
		common.ServiceErrorResponse(c, "Failed to save workflow", err)
		return
	}
	if h.invalidator != nil {
		if err := h.invalidator.Invalidate(c.Request.Context(), key); err != nil {
			logger.GetLogger().Warn().Err(err).Str("workflow_key", key).Msg("workflow config cache invalidation failed")
		}
	}

	common.SuccessResponse(c, cfg, nil)
}

// AuditPost POST /api/v1/admin/posts/:id/audit?fix=true
func (h *WorkflowHandler) AuditPost(c *gin.Context) {
	ref, ok := postRef(c)
	if !ok {
		return
	}
	repair := c.Query("fix") == "true"

	report, err := h.integrity.Audit(c.Request.Context(), ref, repair)
	if err != nil {
		common.ServiceErrorResponse(c, "Audit failed", err)
		return
	}

	common.SuccessResponse(c, report, nil)
}
