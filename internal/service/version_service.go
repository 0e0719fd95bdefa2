package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/damoang/recipe-cms/internal/common"
	"github.com/damoang/recipe-cms/internal/domain"
	"github.com/damoang/recipe-cms/internal/repository"
	"github.com/damoang/recipe-cms/pkg/logger"
)

// CreateVersionInput options for a new version
type CreateVersionInput struct {
	// Snapshot overrides the owner's live fields when non-nil
	Snapshot map[string]interface{}
	Note     string
	ActorID  *uint64
}

// VersionService creates and edits the versions of a content owner
type VersionService interface {
	CreateVersion(ctx context.Context, owner domain.OwnerRef, in CreateVersionInput) (*domain.ContentVersion, error)
	UpdateDraftVersion(ctx context.Context, owner domain.OwnerRef, snapshot map[string]interface{}, actorID *uint64) (*domain.ContentVersion, error)
	RestoreFromVersion(ctx context.Context, versionID uint64, actorID *uint64) (*domain.ContentVersion, error)

	GetVersion(ctx context.Context, id uint64) (*domain.ContentVersion, error)
	ListVersions(ctx context.Context, owner domain.OwnerRef) ([]*domain.ContentVersion, error)
	CurrentDraft(ctx context.Context, owner domain.OwnerRef) (*domain.ContentVersion, error)
	CurrentActive(ctx context.Context, owner domain.OwnerRef) (*domain.ContentVersion, error)
	History(ctx context.Context, versionID uint64) ([]*domain.TransitionRecord, error)
}

type versionService struct {
	store repository.Store
}

// NewVersionService creates a new VersionService
func NewVersionService(store repository.Store) VersionService {
	return &versionService{store: store}
}

// CreateVersion appends a new draft version numbered MAX+1 and points the owner's draft at it
func (s *versionService) CreateVersion(ctx context.Context, ref domain.OwnerRef, in CreateVersionInput) (*domain.ContentVersion, error) {
	var created *domain.ContentVersion
	err := s.store.Atomic(ctx, func(tx repository.Store) error {
		owners, err := tx.Owners(ref.Type)
		if err != nil {
			return err
		}
		owner, err := owners.LockForUpdate(ref.ID)
		if err != nil {
			return err
		}
		created, err = createVersionTx(tx, owners, owner, owner.Pointers(), in, "create")
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateDraftVersion overwrites the snapshot of the owner's draft in place. When the
// draft pointer is unset, dangling, owned by someone else or no longer a draft, a new
// version is created instead. A nil snapshot captures the owner's live fields.
func (s *versionService) UpdateDraftVersion(ctx context.Context, ref domain.OwnerRef, snapshot map[string]interface{}, actorID *uint64) (*domain.ContentVersion, error) {
	var result *domain.ContentVersion
	err := s.store.Atomic(ctx, func(tx repository.Store) error {
		owners, err := tx.Owners(ref.Type)
		if err != nil {
			return err
		}
		owner, err := owners.LockForUpdate(ref.ID)
		if err != nil {
			return err
		}
		pointers := owner.Pointers()

		draft, reason, err := usableDraft(tx, ref, pointers)
		if err != nil {
			return err
		}
		if draft == nil {
			if reason != "" {
				logger.GetLogger().Warn().
					Str("owner", ref.String()).
					Str("reason", reason).
					Msg("draft pointer unusable, creating new version")
				integrityIssuesTotal.WithLabelValues(reason, "true").Inc()
			}
			result, err = createVersionTx(tx, owners, owner, pointers,
				CreateVersionInput{Snapshot: snapshot, ActorID: actorID}, "draft_fallback")
			return err
		}

		if snapshot == nil {
			snapshot = owner.BuildContentSnapshot()
		}
		cloned, err := domain.CloneSnapshot(snapshot)
		if err != nil {
			return fmt.Errorf("%w: snapshot: %v", common.ErrInvalidInput, err)
		}
		if err := tx.Versions().UpdateSnapshot(draft.ID, cloned); err != nil {
			return err
		}
		draft.ContentSnapshot = cloned
		result = draft
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// usableDraft resolves the cached draft pointer. It returns a nil version and the
// reason when the pointer cannot be trusted; storage errors are returned as-is.
func usableDraft(tx repository.Store, ref domain.OwnerRef, p domain.Pointers) (*domain.ContentVersion, string, error) {
	if p.DraftVersionID == nil {
		return nil, "", nil
	}
	draft, err := tx.Versions().FindByID(*p.DraftVersionID)
	if err != nil {
		if errors.Is(err, common.ErrVersionNotFound) {
			return nil, IssueDanglingDraft, nil
		}
		return nil, "", err
	}
	if !draft.BelongsTo(ref) {
		return nil, IssueForeignDraft, nil
	}
	if !draft.IsDraft() {
		return nil, "", nil
	}
	return draft, "", nil
}

// RestoreFromVersion creates a new version carrying an old version's snapshot
func (s *versionService) RestoreFromVersion(ctx context.Context, versionID uint64, actorID *uint64) (*domain.ContentVersion, error) {
	old, err := s.store.WithContext(ctx).Versions().FindByID(versionID)
	if err != nil {
		return nil, err
	}
	ref := old.Owner()

	var restored *domain.ContentVersion
	err = s.store.Atomic(ctx, func(tx repository.Store) error {
		owners, err := tx.Owners(ref.Type)
		if err != nil {
			return err
		}
		owner, err := owners.LockForUpdate(ref.ID)
		if err != nil {
			return err
		}
		restored, err = createVersionTx(tx, owners, owner, owner.Pointers(), CreateVersionInput{
			Snapshot: old.ContentSnapshot,
			Note:     fmt.Sprintf("Restored from version %d", old.VersionNumber),
			ActorID:  actorID,
		}, "restore")
		return err
	})
	if err != nil {
		return nil, err
	}
	return restored, nil
}

func (s *versionService) GetVersion(ctx context.Context, id uint64) (*domain.ContentVersion, error) {
	return s.store.WithContext(ctx).Versions().FindByID(id)
}

func (s *versionService) ListVersions(ctx context.Context, ref domain.OwnerRef) ([]*domain.ContentVersion, error) {
	return s.store.WithContext(ctx).Versions().ListByOwner(ref)
}

// CurrentDraft returns the version the owner's draft pointer references, if it is valid
func (s *versionService) CurrentDraft(ctx context.Context, ref domain.OwnerRef) (*domain.ContentVersion, error) {
	return s.pointed(ctx, ref, func(p domain.Pointers) *uint64 { return p.DraftVersionID })
}

// CurrentActive returns the published version the owner's active pointer references
func (s *versionService) CurrentActive(ctx context.Context, ref domain.OwnerRef) (*domain.ContentVersion, error) {
	return s.pointed(ctx, ref, func(p domain.Pointers) *uint64 { return p.ActiveVersionID })
}

func (s *versionService) History(ctx context.Context, versionID uint64) ([]*domain.TransitionRecord, error) {
	st := s.store.WithContext(ctx)
	if _, err := st.Versions().FindByID(versionID); err != nil {
		return nil, err
	}
	return st.Transitions().ListByVersion(versionID)
}

func (s *versionService) pointed(ctx context.Context, ref domain.OwnerRef, pick func(domain.Pointers) *uint64) (*domain.ContentVersion, error) {
	st := s.store.WithContext(ctx)
	owners, err := st.Owners(ref.Type)
	if err != nil {
		return nil, err
	}
	owner, err := owners.Find(ref.ID)
	if err != nil {
		return nil, err
	}
	id := pick(owner.Pointers())
	if id == nil {
		return nil, common.ErrVersionNotFound
	}
	v, err := st.Versions().FindByID(*id)
	if err != nil {
		return nil, err
	}
	if !v.BelongsTo(ref) {
		return nil, fmt.Errorf("%w: %s points at version %d of %s",
			common.ErrIntegrityViolation, ref, v.ID, v.Owner())
	}
	return v, nil
}

// createVersionTx inserts the next draft version for a locked owner, appends the
// initial transition record and saves the owner's pointers (base with the draft
// pointer and status cache replaced). Must run inside Store.Atomic.
func createVersionTx(tx repository.Store, owners repository.OwnerRepository, owner domain.Versionable,
	base domain.Pointers, in CreateVersionInput, reason string) (*domain.ContentVersion, error) {
	ref := owner.VersionableRef()

	next, err := tx.Versions().NextVersionNumber(ref)
	if err != nil {
		return nil, err
	}

	snapshot := in.Snapshot
	if snapshot == nil {
		snapshot = owner.BuildContentSnapshot()
	}
	cloned, err := domain.CloneSnapshot(snapshot)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot: %v", common.ErrInvalidInput, err)
	}

	version := &domain.ContentVersion{
		VersionableType: ref.Type,
		VersionableID:   ref.ID,
		VersionNumber:   next,
		ContentSnapshot: cloned,
		WorkflowStatus:  domain.StatusDraft,
		IsActive:        false,
		CreatedBy:       in.ActorID,
	}
	if in.Note != "" {
		note := in.Note
		version.VersionNote = &note
	}
	if err := tx.Versions().Create(version); err != nil {
		return nil, err
	}

	record := &domain.TransitionRecord{
		ContentVersionID: version.ID,
		ToStatus:         domain.StatusDraft,
		PerformedBy:      in.ActorID,
		Comment:          version.VersionNote,
	}
	if err := tx.Transitions().Create(record); err != nil {
		return nil, err
	}

	id := version.ID
	base.DraftVersionID = &id
	base.WorkflowStatus = domain.StatusDraft
	if err := owners.SavePointers(ref.ID, base); err != nil {
		return nil, err
	}

	contentVersionsCreatedTotal.WithLabelValues(string(ref.Type), reason).Inc()
	return version, nil
}
