package service

import (
	"context"
	"testing"

	"github.com/damoang/recipe-cms/internal/common"
	"github.com/damoang/recipe-cms/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issueCodes(r *IntegrityReport) []string {
	codes := make([]string, 0, len(r.Issues))
	for _, issue := range r.Issues {
		codes = append(codes, issue.Code)
	}
	return codes
}

func (e *testEnv) setPointers(t *testing.T, postID uint64, mutate func(p *domain.Pointers)) {
	t.Helper()
	owners, err := e.store.Owners(domain.OwnerTypePost)
	require.NoError(t, err)
	owner, err := owners.Find(postID)
	require.NoError(t, err)
	p := owner.Pointers()
	mutate(&p)
	require.NoError(t, owners.SavePointers(postID, p))
}

func TestAudit_Healthy(t *testing.T) {
	env := newTestEnv(t, nil)
	post, v1 := env.newPost(t, "Bibimbap", true)
	env.advance(t, v1.ID, domain.StatusReview, domain.StatusCopydesk, domain.StatusApproved, domain.StatusPublished)

	report, err := env.integrity.Audit(context.Background(), post.VersionableRef(), false)
	require.NoError(t, err)
	assert.False(t, report.HasIssues(), "issues: %v", issueCodes(report))
	assert.NoError(t, report.Err())
}

func TestAudit_NoVersions(t *testing.T) {
	env := newTestEnv(t, nil)
	post := &domain.Post{PostType: domain.PostTypeRecipe, Title: "Bare", Slug: "bare", Body: "imported"}
	require.NoError(t, env.posts.Create(post))
	ref := post.VersionableRef()

	report, err := env.integrity.Audit(context.Background(), ref, false)
	require.NoError(t, err)
	assert.Equal(t, []string{IssueNoVersions}, issueCodes(report))
	assert.ErrorIs(t, report.Err(), common.ErrIntegrityViolation)

	report, err = env.integrity.Audit(context.Background(), ref, true)
	require.NoError(t, err)
	assert.True(t, report.Issues[0].Repaired)
	assert.NoError(t, report.Err())

	versions, err := env.versions.ListVersions(context.Background(), ref)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, uint(1), versions[0].VersionNumber)
	assert.Equal(t, "Bare", versions[0].ContentSnapshot["title"])

	reloaded := env.reloadPost(t, post.ID)
	require.NotNil(t, reloaded.DraftVersionID)
	assert.Equal(t, versions[0].ID, *reloaded.DraftVersionID)

	// 복구 후 재검사는 깨끗해야 함
	report, err = env.integrity.Audit(context.Background(), ref, false)
	require.NoError(t, err)
	assert.False(t, report.HasIssues(), "issues: %v", issueCodes(report))
}

func TestAudit_ForeignDraftPointer(t *testing.T) {
	env := newTestEnv(t, nil)
	a, v1 := env.newPost(t, "Japchae", false)
	_, other := env.newPost(t, "Tteokbokki", false)

	env.setPointers(t, a.ID, func(p *domain.Pointers) { p.DraftVersionID = &other.ID })

	report, err := env.integrity.Audit(context.Background(), a.VersionableRef(), false)
	require.NoError(t, err)
	assert.Contains(t, issueCodes(report), IssueForeignDraft)
	assert.False(t, report.Issues[0].Repaired)

	_, err = env.integrity.Audit(context.Background(), a.VersionableRef(), true)
	require.NoError(t, err)

	reloaded := env.reloadPost(t, a.ID)
	require.NotNil(t, reloaded.DraftVersionID)
	assert.Equal(t, v1.ID, *reloaded.DraftVersionID)
}

func TestAudit_DanglingPointers(t *testing.T) {
	env := newTestEnv(t, nil)
	post, v1 := env.newPost(t, "Galbi", false)

	missing := uint64(99999)
	env.setPointers(t, post.ID, func(p *domain.Pointers) {
		p.DraftVersionID = &missing
		p.ActiveVersionID = &missing
	})

	report, err := env.integrity.Audit(context.Background(), post.VersionableRef(), true)
	require.NoError(t, err)
	codes := issueCodes(report)
	assert.Contains(t, codes, IssueDanglingDraft)
	assert.Contains(t, codes, IssueDanglingActive)

	reloaded := env.reloadPost(t, post.ID)
	require.NotNil(t, reloaded.DraftVersionID)
	assert.Equal(t, v1.ID, *reloaded.DraftVersionID)
	assert.Nil(t, reloaded.ActiveVersionID)
}

func TestAudit_MultipleActiveVersions(t *testing.T) {
	env := newTestEnv(t, nil)
	post, v1 := env.newPost(t, "Samgyetang", true)
	env.advance(t, v1.ID, domain.StatusReview, domain.StatusCopydesk, domain.StatusApproved, domain.StatusPublished)

	v2, err := env.versions.CreateVersion(context.Background(), post.VersionableRef(), CreateVersionInput{ActorID: &writerID})
	require.NoError(t, err)
	require.NoError(t, env.db.Model(&domain.ContentVersion{}).Where("id = ?", v2.ID).
		Updates(map[string]interface{}{"is_active": true, "workflow_status": domain.StatusPublished}).Error)

	report, err := env.integrity.Audit(context.Background(), post.VersionableRef(), true)
	require.NoError(t, err)
	codes := issueCodes(report)
	assert.Contains(t, codes, IssueMultipleActive)
	assert.Contains(t, codes, IssueStaleWorkflowStatus)

	actives, err := env.store.Versions().ListActiveByOwner(post.VersionableRef())
	require.NoError(t, err)
	require.Len(t, actives, 1)
	assert.Equal(t, v1.ID, actives[0].ID)

	reloaded := env.reloadPost(t, post.ID)
	require.NotNil(t, reloaded.ActiveVersionID)
	assert.Equal(t, v1.ID, *reloaded.ActiveVersionID)
	assert.Equal(t, domain.StatusPublished, reloaded.WorkflowStatus)
}

func TestAudit_ActivePointerToInactiveVersion(t *testing.T) {
	env := newTestEnv(t, nil)
	post, v1 := env.newPost(t, "Kimbap", false)

	env.setPointers(t, post.ID, func(p *domain.Pointers) { p.ActiveVersionID = &v1.ID })

	report, err := env.integrity.Audit(context.Background(), post.VersionableRef(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{IssueInactiveActive}, issueCodes(report))
	assert.Nil(t, env.reloadPost(t, post.ID).ActiveVersionID)
}

func TestAudit_StaleWorkflowStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	post, _ := env.newPost(t, "Naengmyeon", false)

	require.NoError(t, env.db.Model(&domain.Post{}).Where("id = ?", post.ID).
		UpdateColumn("workflow_status", domain.StatusApproved).Error)

	report, err := env.integrity.Audit(context.Background(), post.VersionableRef(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{IssueStaleWorkflowStatus}, issueCodes(report))
	assert.Equal(t, domain.StatusDraft, env.reloadPost(t, post.ID).WorkflowStatus)
}

func TestAudit_OwnerNotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.integrity.Audit(context.Background(), domain.OwnerRef{Type: domain.OwnerTypePost, ID: 404}, false)
	assert.ErrorIs(t, err, common.ErrOwnerNotFound)
}

func TestAuditAll(t *testing.T) {
	env := newTestEnv(t, nil)
	env.newPost(t, "Bulgogi", false)
	broken, _ := env.newPost(t, "Doenjang-jjigae", false)
	env.newPost(t, "Hotteok", false)

	require.NoError(t, env.db.Model(&domain.Post{}).Where("id = ?", broken.ID).
		UpdateColumn("draft_version_id", nil).Error)

	var seen []domain.OwnerRef
	summary, err := env.integrity.AuditAll(context.Background(), domain.OwnerTypePost, true, 2, func(r *IntegrityReport) {
		seen = append(seen, r.Owner)
	})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Scanned)
	assert.Equal(t, 1, summary.WithIssues)
	assert.Equal(t, 1, summary.Issues)
	assert.Equal(t, 1, summary.Repaired)
	require.Len(t, seen, 3)
	assert.Equal(t, broken.ID, seen[1].ID)

	assert.NotNil(t, env.reloadPost(t, broken.ID).DraftVersionID)
}

func TestAuditAll_UnknownOwnerType(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.integrity.AuditAll(context.Background(), domain.OwnerType("video"), false, 10, nil)
	assert.Error(t, err)
}
