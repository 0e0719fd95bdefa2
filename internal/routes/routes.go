package routes

import (
	"github.com/damoang/recipe-cms/internal/domain"
	"github.com/damoang/recipe-cms/internal/handler"
	"github.com/damoang/recipe-cms/internal/middleware"
	"github.com/damoang/recipe-cms/pkg/jwt"
	"github.com/gin-gonic/gin"
)

// Setup configures all API routes
func Setup(
	router *gin.Engine,
	postHandler *handler.PostHandler,
	versionHandler *handler.VersionHandler,
	workflowHandler *handler.WorkflowHandler,
	jwtManager *jwt.Manager,
	writeLimit gin.HandlerFunc,
) {
	api := router.Group("/api/v1", middleware.JWTAuth(jwtManager))
	if writeLimit == nil {
		writeLimit = func(c *gin.Context) { c.Next() }
	}

	// Posts
	posts := api.Group("/posts")
	posts.POST("", writeLimit, postHandler.CreatePost)
	posts.GET("/:id", postHandler.GetPost)
	posts.PUT("/:id", writeLimit, postHandler.UpdatePost)
	posts.DELETE("/:id", middleware.RequireRole(domain.RoleEditor, domain.RoleAdmin), postHandler.DeletePost)

	// Post versions
	posts.GET("/:id/versions", versionHandler.ListVersions)
	posts.POST("/:id/versions", writeLimit, versionHandler.CreateVersion)
	posts.GET("/:id/draft", versionHandler.CurrentDraft)
	posts.PUT("/:id/draft", writeLimit, versionHandler.UpdateDraft)
	posts.GET("/:id/active", versionHandler.CurrentActive)
	posts.GET("/:id/workflow", workflowHandler.PostWorkflow)

	// Versions
	versions := api.Group("/versions")
	versions.GET("/:id", versionHandler.GetVersion)
	versions.GET("/:id/history", versionHandler.History)
	versions.POST("/:id/restore", writeLimit, versionHandler.Restore)
	versions.GET("/:id/transitions", workflowHandler.AvailableTransitions)
	versions.POST("/:id/transition", writeLimit, workflowHandler.Transition)

	// Admin (관리자 전용)
	admin := api.Group("/admin", middleware.RequireRole(domain.RoleAdmin))
	admin.GET("/workflows/:key", workflowHandler.GetWorkflowConfig)
	admin.PUT("/workflows/:key", workflowHandler.SaveWorkflowConfig)
	admin.POST("/posts/:id/audit", workflowHandler.AuditPost)
}
