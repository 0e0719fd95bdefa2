package service

import (
	"context"
	"testing"

	"github.com/damoang/recipe-cms/internal/domain"
	"github.com/damoang/recipe-cms/internal/migration"
	"github.com/damoang/recipe-cms/internal/repository"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	writerID uint64 = 10
	editorID uint64 = 20

	writer = domain.Actor{ID: &writerID, Name: "writer", Roles: []string{domain.RoleWriter}}
	editor = domain.Actor{ID: &editorID, Name: "editor", Roles: []string{domain.RoleEditor}}
)

type testEnv struct {
	db        *gorm.DB
	store     repository.Store
	posts     repository.PostRepository
	settings  *repository.SettingRepository
	versions  VersionService
	workflow  WorkflowService
	integrity IntegrityService
	postSvc   PostService
}

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// :memory: DB는 커넥션마다 별도이므로 하나로 고정
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, migration.Run(db))
	return db
}

// newTestEnv wires the services against a fresh database; overrides are keyed by post type
func newTestEnv(t *testing.T, overrides StaticSource) *testEnv {
	t.Helper()
	db := setupServiceTestDB(t)
	store := repository.NewStore(db)
	posts := repository.NewPostRepository(db)
	settings := repository.NewSettingRepository(db)
	versions := NewVersionService(store)
	configs := NewWorkflowConfigProvider(NewSettingSource(settings), overrides)

	return &testEnv{
		db:        db,
		store:     store,
		posts:     posts,
		settings:  settings,
		versions:  versions,
		workflow:  NewWorkflowService(store, configs),
		integrity: NewIntegrityService(store),
		postSvc:   NewPostService(posts, versions),
	}
}

// createTag inserts a tag and returns its id
func (e *testEnv) createTag(t *testing.T, slug string) uint64 {
	t.Helper()
	tag := domain.Tag{Name: slug, Slug: slug}
	require.NoError(t, e.db.Create(&tag).Error)
	return tag.ID
}

// newPost creates a post through PostService; complete posts carry a category and a tag
func (e *testEnv) newPost(t *testing.T, title string, complete bool) (*domain.Post, *domain.ContentVersion) {
	t.Helper()
	in := &PostInput{PostType: domain.PostTypeRecipe, Title: title, Body: "body of " + title}
	if complete {
		in.CategoryIDs = []uint64{1}
		in.TagIDs = []uint64{e.createTag(t, "tag-"+slugify(title))}
	}
	post, version, err := e.postSvc.CreatePost(context.Background(), in, writer)
	require.NoError(t, err)
	return post, version
}

// advance walks a version through the given statuses as an editor
func (e *testEnv) advance(t *testing.T, versionID uint64, statuses ...string) *domain.ContentVersion {
	t.Helper()
	var v *domain.ContentVersion
	for _, status := range statuses {
		var err error
		v, err = e.workflow.Transition(context.Background(), versionID, status, "", editor)
		require.NoError(t, err, "transition to %s", status)
	}
	return v
}

func (e *testEnv) reloadPost(t *testing.T, id uint64) *domain.Post {
	t.Helper()
	post, err := e.posts.FindByID(id)
	require.NoError(t, err)
	return post
}

func (e *testEnv) reloadVersion(t *testing.T, id uint64) *domain.ContentVersion {
	t.Helper()
	v, err := e.store.Versions().FindByID(id)
	require.NoError(t, err)
	return v
}
