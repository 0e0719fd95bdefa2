package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/damoang/recipe-cms/internal/common"
	"github.com/damoang/recipe-cms/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostOwnerRepository_FindAndSavePointers(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewPostOwnerRepository(db)
	post := createTestPost(t, db, "galbi")

	owner, err := repo.Find(post.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OwnerRef{Type: domain.OwnerTypePost, ID: post.ID}, owner.VersionableRef())
	assert.Equal(t, domain.PostTypeRecipe, owner.WorkflowKey())
	assert.Nil(t, owner.Pointers().DraftVersionID)

	draft, active := uint64(3), uint64(2)
	now := time.Now().Truncate(time.Second)
	require.NoError(t, repo.SavePointers(post.ID, domain.Pointers{
		DraftVersionID:  &draft,
		ActiveVersionID: &active,
		WorkflowStatus:  domain.StatusReview,
		PublishedAt:     &now,
	}))

	locked, err := repo.LockForUpdate(post.ID)
	require.NoError(t, err)
	p := locked.Pointers()
	require.NotNil(t, p.DraftVersionID)
	require.NotNil(t, p.ActiveVersionID)
	assert.Equal(t, draft, *p.DraftVersionID)
	assert.Equal(t, active, *p.ActiveVersionID)
	assert.Equal(t, domain.StatusReview, p.WorkflowStatus)
	assert.NotNil(t, p.PublishedAt)

	// nil 포인터 저장 시 컬럼이 비워짐
	require.NoError(t, repo.SavePointers(post.ID, domain.Pointers{WorkflowStatus: domain.StatusDraft}))
	again, err := repo.Find(post.ID)
	require.NoError(t, err)
	assert.Nil(t, again.Pointers().ActiveVersionID)
}

func TestPostOwnerRepository_NotFound(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewPostOwnerRepository(db)

	owner, err := repo.Find(404)
	assert.Nil(t, owner)
	assert.ErrorIs(t, err, common.ErrOwnerNotFound)

	assert.ErrorIs(t, repo.SavePointers(404, domain.Pointers{}), common.ErrOwnerNotFound)
}

func TestPostOwnerRepository_ListIDs(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewPostOwnerRepository(db)
	a := createTestPost(t, db, "a")
	b := createTestPost(t, db, "b")
	c := createTestPost(t, db, "c")

	ids, err := repo.ListIDs(0, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{a.ID, b.ID}, ids)

	ids, err = repo.ListIDs(b.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{c.ID}, ids)
}

func TestStore_OwnersUnknownType(t *testing.T) {
	store := NewStore(setupRepoTestDB(t))

	_, err := store.Owners("page")
	assert.ErrorIs(t, err, common.ErrOwnerNotFound)
}

func TestStore_AtomicRollsBack(t *testing.T) {
	db := setupRepoTestDB(t)
	store := NewStore(db)
	owner := domain.OwnerRef{Type: domain.OwnerTypePost, ID: 1}
	boom := errors.New("boom")

	err := store.Atomic(context.Background(), func(tx Store) error {
		v := &domain.ContentVersion{VersionableType: owner.Type, VersionableID: owner.ID, VersionNumber: 1, WorkflowStatus: domain.StatusDraft}
		if err := tx.Versions().Create(v); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	count, err := store.Versions().CountByOwner(owner)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestTransitionRepository_ListByOwner(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewTransitionRepository(db)
	owner := domain.OwnerRef{Type: domain.OwnerTypePost, ID: 1}
	v1 := createTestVersion(t, db, owner, 1, domain.StatusReview)
	v2 := createTestVersion(t, db, owner, 2, domain.StatusDraft)
	stranger := createTestVersion(t, db, domain.OwnerRef{Type: domain.OwnerTypePost, ID: 2}, 1, domain.StatusDraft)

	draft := domain.StatusDraft
	require.NoError(t, repo.Create(&domain.TransitionRecord{ContentVersionID: v1.ID, ToStatus: domain.StatusDraft}))
	require.NoError(t, repo.Create(&domain.TransitionRecord{ContentVersionID: v1.ID, FromStatus: &draft, ToStatus: domain.StatusReview}))
	require.NoError(t, repo.Create(&domain.TransitionRecord{ContentVersionID: v2.ID, ToStatus: domain.StatusDraft}))
	require.NoError(t, repo.Create(&domain.TransitionRecord{ContentVersionID: stranger.ID, ToStatus: domain.StatusDraft}))

	byVersion, err := repo.ListByVersion(v1.ID)
	require.NoError(t, err)
	require.Len(t, byVersion, 2)
	assert.Nil(t, byVersion[0].FromStatus)
	assert.Equal(t, domain.StatusReview, byVersion[1].ToStatus)

	byOwner, err := repo.ListByOwner(owner)
	require.NoError(t, err)
	assert.Len(t, byOwner, 3)
}

func TestSettingRepository_Upsert(t *testing.T) {
	repo := NewSettingRepository(setupRepoTestDB(t))

	_, err := repo.Get("workflow.post_type.recipe")
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, repo.Upsert("workflow.post_type.recipe", `{"name":"a"}`))
	require.NoError(t, repo.Upsert("workflow.post_type.recipe", `{"name":"b"}`))

	s, err := repo.Get("workflow.post_type.recipe")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"b"}`, s.Value)

	require.NoError(t, repo.Delete("workflow.post_type.recipe"))
	_, err = repo.Get("workflow.post_type.recipe")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
