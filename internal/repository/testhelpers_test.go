package repository

import (
	"testing"

	"github.com/damoang/recipe-cms/internal/domain"
	"github.com/damoang/recipe-cms/internal/migration"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupRepoTestDB(t *testing.T) *gorm.DB {
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

func createTestPost(t *testing.T, db *gorm.DB, title string) *domain.Post {
	t.Helper()
	post := &domain.Post{PostType: domain.PostTypeRecipe, Title: title, Slug: title, WorkflowStatus: domain.StatusDraft}
	require.NoError(t, db.Create(post).Error)
	return post
}

func createTestVersion(t *testing.T, db *gorm.DB, owner domain.OwnerRef, number uint, status string) *domain.ContentVersion {
	t.Helper()
	v := &domain.ContentVersion{
		VersionableType: owner.Type,
		VersionableID:   owner.ID,
		VersionNumber:   number,
		ContentSnapshot: map[string]interface{}{"title": "v"},
		WorkflowStatus:  status,
	}
	require.NoError(t, db.Create(v).Error)
	return v
}
