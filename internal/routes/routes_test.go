package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/damoang/recipe-cms/internal/common"
	"github.com/damoang/recipe-cms/internal/domain"
	"github.com/damoang/recipe-cms/internal/handler"
	"github.com/damoang/recipe-cms/internal/migration"
	"github.com/damoang/recipe-cms/internal/repository"
	"github.com/damoang/recipe-cms/internal/service"
	"github.com/damoang/recipe-cms/pkg/jwt"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type envelope struct {
	Data  json.RawMessage   `json:"data"`
	Meta  *common.Meta      `json:"meta"`
	Error *common.ErrorInfo `json:"error"`
}

type createdPost struct {
	Post    domain.Post           `json:"post"`
	Version domain.ContentVersion `json:"version"`
}

// APISuite drives the editorial API end to end against SQLite
type APISuite struct {
	suite.Suite
	db     *gorm.DB
	router *gin.Engine

	writerToken string
	editorToken string
	adminToken  string
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
}

func (s *APISuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	s.Require().NoError(err)
	sqlDB, err := db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)
	s.Require().NoError(migration.Run(db))
	s.db = db

	jwtManager := jwt.NewManager("test-secret-key-for-api-tests", time.Hour)
	s.writerToken = s.token(jwtManager, 1, "writer", domain.RoleWriter)
	s.editorToken = s.token(jwtManager, 2, "editor", domain.RoleEditor)
	s.adminToken = s.token(jwtManager, 3, "admin", domain.RoleAdmin)

	store := repository.NewStore(db)
	posts := repository.NewPostRepository(db)
	settings := service.NewSettingSource(repository.NewSettingRepository(db))
	configs := service.NewCachedConfigProvider(service.NewWorkflowConfigProvider(settings), nil)

	versionSvc := service.NewVersionService(store)
	workflowSvc := service.NewWorkflowService(store, configs)
	integritySvc := service.NewIntegrityService(store)

	s.router = gin.New()
	Setup(s.router,
		handler.NewPostHandler(service.NewPostService(posts, versionSvc)),
		handler.NewVersionHandler(versionSvc),
		handler.NewWorkflowHandler(workflowSvc, integritySvc, configs, settings, configs),
		jwtManager,
		nil,
	)
}

func (s *APISuite) TearDownTest() {
	sqlDB, err := s.db.DB()
	if err == nil {
		sqlDB.Close()
	}
}

func (s *APISuite) token(m *jwt.Manager, id uint64, name, role string) string {
	tok, err := m.GenerateToken(id, name, []string{role})
	s.Require().NoError(err)
	return tok
}

func (s *APISuite) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (s *APISuite) createPost(title string, complete bool) createdPost {
	body := gin.H{"post_type": domain.PostTypeRecipe, "title": title, "body": "steps"}
	if complete {
		tag := domain.Tag{Name: title, Slug: title}
		s.Require().NoError(s.db.Create(&tag).Error)
		body["category_ids"] = []uint64{1}
		body["tag_ids"] = []uint64{tag.ID}
	}
	w, env := s.do(http.MethodPost, "/api/v1/posts", s.writerToken, body)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var created createdPost
	s.Require().NoError(json.Unmarshal(env.Data, &created))
	return created
}

func (s *APISuite) transition(versionID uint64, token, to string) (*httptest.ResponseRecorder, envelope) {
	return s.do(http.MethodPost, fmt.Sprintf("/api/v1/versions/%d/transition", versionID), token,
		gin.H{"to_status": to, "comment": "via api"})
}

func (s *APISuite) TestMissingToken() {
	w, env := s.do(http.MethodGet, "/api/v1/posts/1", "", nil)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("UNAUTHORIZED", env.Error.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/posts/1", "not-a-jwt", nil)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *APISuite) TestEditorialFlow() {
	created := s.createPost("pajeon", true)
	s.Equal(uint(1), created.Version.VersionNumber)
	s.Equal(domain.StatusDraft, created.Version.WorkflowStatus)
	vid := created.Version.ID

	w, _ := s.transition(vid, s.writerToken, domain.StatusReview)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	// writer cannot send to copydesk
	w, env := s.transition(vid, s.writerToken, domain.StatusCopydesk)
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal("FORBIDDEN", env.Error.Code)

	for _, to := range []string{domain.StatusCopydesk, domain.StatusApproved, domain.StatusPublished} {
		w, _ = s.transition(vid, s.editorToken, to)
		s.Require().Equal(http.StatusOK, w.Code, "to %s: %s", to, w.Body.String())
	}

	w, env = s.do(http.MethodGet, fmt.Sprintf("/api/v1/posts/%d/active", created.Post.ID), s.writerToken, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var active domain.ContentVersion
	s.Require().NoError(json.Unmarshal(env.Data, &active))
	s.Equal(vid, active.ID)
	s.True(active.IsActive)

	w, env = s.do(http.MethodGet, fmt.Sprintf("/api/v1/versions/%d/history", vid), s.writerToken, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var history []domain.TransitionRecord
	s.Require().NoError(json.Unmarshal(env.Data, &history))
	s.Require().Len(history, 5, "creation record plus four transitions")
	s.Nil(history[0].FromStatus)
	s.Equal(domain.StatusPublished, history[4].ToStatus)

	w, env = s.do(http.MethodGet, fmt.Sprintf("/api/v1/versions/%d/transitions", vid), s.editorToken, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var next []domain.TransitionDef
	s.Require().NoError(json.Unmarshal(env.Data, &next))
	s.Require().Len(next, 1)
	s.Equal(domain.StatusDraft, next[0].To)

	// 작성자에게는 가능한 전이가 없음
	w, env = s.do(http.MethodGet, fmt.Sprintf("/api/v1/versions/%d/transitions", vid), s.writerToken, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`[]`, string(env.Data))
}

func (s *APISuite) TestInvalidTransitions() {
	incomplete := s.createPost("sundubu", false)

	w, env := s.transition(incomplete.Version.ID, s.editorToken, domain.StatusPublished)
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal("UNPROCESSABLE_ENTITY", env.Error.Code)

	vid := incomplete.Version.ID
	for _, to := range []string{domain.StatusReview, domain.StatusCopydesk, domain.StatusApproved} {
		w, _ = s.transition(vid, s.editorToken, to)
		s.Require().Equal(http.StatusOK, w.Code)
	}
	w, _ = s.transition(vid, s.editorToken, domain.StatusPublished)
	s.Equal(http.StatusUnprocessableEntity, w.Code, "publishing without categories and tags")

	w, _ = s.do(http.MethodPost, fmt.Sprintf("/api/v1/versions/%d/transition", vid), s.editorToken, gin.H{})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *APISuite) TestNotFoundAndBadIDs() {
	w, _ := s.do(http.MethodGet, "/api/v1/versions/999", s.writerToken, nil)
	s.Equal(http.StatusNotFound, w.Code)

	w, _ = s.transition(999, s.editorToken, domain.StatusReview)
	s.Equal(http.StatusNotFound, w.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/posts/abc", s.writerToken, nil)
	s.Equal(http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/posts/0/versions", s.writerToken, nil)
	s.Equal(http.StatusBadRequest, w.Code)

	created := s.createPost("gimbap", false)
	w, _ = s.do(http.MethodGet, fmt.Sprintf("/api/v1/posts/%d/active", created.Post.ID), s.writerToken, nil)
	s.Equal(http.StatusNotFound, w.Code, "never published")
}

func (s *APISuite) TestDraftEditingAndRestore() {
	created := s.createPost("kalguksu", false)
	base := fmt.Sprintf("/api/v1/posts/%d", created.Post.ID)

	w, env := s.do(http.MethodPut, base+"/draft", s.writerToken, gin.H{"snapshot": gin.H{"title": "kalguksu v2"}})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var draft domain.ContentVersion
	s.Require().NoError(json.Unmarshal(env.Data, &draft))
	s.Equal(created.Version.ID, draft.ID, "draft rewritten in place")
	s.Equal("kalguksu v2", draft.ContentSnapshot["title"])

	w, env = s.do(http.MethodPost, fmt.Sprintf("/api/v1/versions/%d/restore", created.Version.ID), s.writerToken, nil)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var restored domain.ContentVersion
	s.Require().NoError(json.Unmarshal(env.Data, &restored))
	s.Equal(uint(2), restored.VersionNumber)
	s.Equal(domain.StatusDraft, restored.WorkflowStatus)

	w, env = s.do(http.MethodGet, base+"/versions", s.writerToken, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Require().NotNil(env.Meta)
	s.Equal(int64(2), env.Meta.Total)

	w, env = s.do(http.MethodGet, base+"/draft", s.writerToken, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Require().NoError(json.Unmarshal(env.Data, &draft))
	s.Equal(restored.ID, draft.ID)
}

func (s *APISuite) TestDeleteRequiresEditor() {
	created := s.createPost("hobakjuk", false)
	path := fmt.Sprintf("/api/v1/posts/%d", created.Post.ID)

	w, _ := s.do(http.MethodDelete, path, s.writerToken, nil)
	s.Equal(http.StatusForbidden, w.Code)

	w, _ = s.do(http.MethodDelete, path, s.editorToken, nil)
	s.Equal(http.StatusNoContent, w.Code)

	w, _ = s.do(http.MethodGet, path, s.editorToken, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *APISuite) TestAdminWorkflowConfig() {
	w, _ := s.do(http.MethodGet, "/api/v1/admin/workflows/recipe", s.editorToken, nil)
	s.Equal(http.StatusForbidden, w.Code)

	w, env := s.do(http.MethodGet, "/api/v1/admin/workflows/recipe", s.adminToken, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var cfg domain.WorkflowConfig
	s.Require().NoError(json.Unmarshal(env.Data, &cfg))
	s.Equal("default", cfg.Name)

	w, _ = s.do(http.MethodPut, "/api/v1/admin/workflows/recipe", s.adminToken, gin.H{
		"name":        "broken",
		"states":      []gin.H{{"key": "draft"}},
		"transitions": []gin.H{{"from": "draft", "to": "nowhere"}},
	})
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	w, _ = s.do(http.MethodPut, "/api/v1/admin/workflows/recipe", s.adminToken, gin.H{
		"name":        "fast-track",
		"states":      []gin.H{{"key": "draft"}},
		"transitions": []gin.H{{"from": "draft", "to": "published", "roles": []string{domain.RoleWriter}}},
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	created := s.createPost("dakgalbi", true)
	w, env = s.do(http.MethodGet, fmt.Sprintf("/api/v1/posts/%d/workflow", created.Post.ID), s.writerToken, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Require().NoError(json.Unmarshal(env.Data, &cfg))
	s.Equal("fast-track", cfg.Name)

	// draft는 approved가 아니므로 발행 불가
	w, _ = s.transition(created.Version.ID, s.writerToken, domain.StatusPublished)
	s.Equal(http.StatusUnprocessableEntity, w.Code)
}

func (s *APISuite) TestAdminAudit() {
	created := s.createPost("yukgaejang", false)
	path := fmt.Sprintf("/api/v1/admin/posts/%d/audit?fix=true", created.Post.ID)

	s.Require().NoError(s.db.Model(&domain.Post{}).Where("id = ?", created.Post.ID).
		UpdateColumn("workflow_status", domain.StatusApproved).Error)

	w, env := s.do(http.MethodPost, path, s.adminToken, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var report service.IntegrityReport
	s.Require().NoError(json.Unmarshal(env.Data, &report))
	s.Require().Len(report.Issues, 1)
	s.Equal(service.IssueStaleWorkflowStatus, report.Issues[0].Code)
	s.True(report.Issues[0].Repaired)

	w, _ = s.do(http.MethodPost, path, s.editorToken, nil)
	s.Equal(http.StatusForbidden, w.Code)
}
