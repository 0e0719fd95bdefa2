package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/damoang/recipe-cms/internal/common"
	"github.com/damoang/recipe-cms/internal/domain"
	"github.com/damoang/recipe-cms/internal/repository"
	"github.com/damoang/recipe-cms/pkg/logger"
)

// WorkflowService moves content versions between workflow states
type WorkflowService interface {
	Transition(ctx context.Context, versionID uint64, toStatus, comment string, actor domain.Actor) (*domain.ContentVersion, error)
	AvailableTransitions(ctx context.Context, versionID uint64, actor domain.Actor) ([]domain.TransitionDef, error)
	ResolveConfig(ctx context.Context, owner domain.OwnerRef) (*domain.WorkflowConfig, error)
}

type workflowService struct {
	store   repository.Store
	configs ConfigProvider
	now     func() time.Time
}

// NewWorkflowService creates a new WorkflowService
func NewWorkflowService(store repository.Store, configs ConfigProvider) WorkflowService {
	return &workflowService{store: store, configs: configs, now: time.Now}
}

// Transition validates toStatus against the owner's workflow config and the
// actor's roles, then applies it. Status change, activation, audit record and
// owner pointers are written in one transaction under the owner row lock; the
// version is re-read inside it so a concurrent transition is validated against
// the already-updated status.
func (s *workflowService) Transition(ctx context.Context, versionID uint64, toStatus, comment string, actor domain.Actor) (*domain.ContentVersion, error) {
	toStatus = strings.TrimSpace(toStatus)

	version, owner, cfg, err := s.load(ctx, versionID)
	if err != nil {
		return nil, err
	}

	var (
		result *domain.ContentVersion
		from   = version.WorkflowStatus
	)
	err = s.store.Atomic(ctx, func(tx repository.Store) error {
		owners, err := tx.Owners(version.VersionableType)
		if err != nil {
			return err
		}
		locked, err := owners.LockForUpdate(owner.VersionableRef().ID)
		if err != nil {
			return err
		}
		current, err := tx.Versions().FindByID(versionID)
		if err != nil {
			return err
		}
		from = current.WorkflowStatus

		edge, ok := cfg.FindTransition(from, toStatus)
		if !ok {
			return fmt.Errorf("%w: %s -> %s", common.ErrInvalidTransition, from, toStatus)
		}
		if !cfg.CanPerform(edge, actor) {
			return fmt.Errorf("%w: %s -> %s", common.ErrForbiddenTransition, from, toStatus)
		}
		if toStatus == domain.StatusPublished && !current.CanBePublished(locked.RequiredPublishFields()...) {
			if from != domain.StatusApproved {
				return fmt.Errorf("%w: only approved versions can be published (status %s)",
					common.ErrInvalidTransition, from)
			}
			missing := current.MissingFields(locked.RequiredPublishFields()...)
			return fmt.Errorf("%w: %w: missing %s", common.ErrInvalidTransition,
				common.ErrIncompleteContent, strings.Join(missing, ", "))
		}

		if err := tx.Versions().UpdateStatus(current.ID, from, toStatus); err != nil {
			return err
		}
		current.WorkflowStatus = toStatus

		pointers, err := s.applyPointers(tx, current, from, locked.Pointers())
		if err != nil {
			return err
		}

		record := &domain.TransitionRecord{
			ContentVersionID: current.ID,
			FromStatus:       &from,
			ToStatus:         toStatus,
			PerformedBy:      actor.ID,
		}
		if c := strings.TrimSpace(comment); c != "" {
			record.Comment = &c
		}
		if err := tx.Transitions().Create(record); err != nil {
			return err
		}
		if err := owners.SavePointers(current.VersionableID, pointers); err != nil {
			return err
		}

		result = current
		return nil
	})

	workflowTransitionsTotal.WithLabelValues(from, toStatus, transitionResult(err)).Inc()
	if err != nil {
		return nil, err
	}

	logger.GetLogger().Info().
		Uint64("version_id", result.ID).
		Str("owner", result.Owner().String()).
		Str("from", from).
		Str("to", toStatus).
		Str("actor", actor.Name).
		Msg("workflow transition")
	return result, nil
}

// applyPointers activates/deactivates the version and computes the owner's new pointers
func (s *workflowService) applyPointers(tx repository.Store, v *domain.ContentVersion, from string, p domain.Pointers) (domain.Pointers, error) {
	id := v.ID

	if v.WorkflowStatus == domain.StatusPublished {
		if err := tx.Versions().Activate(v); err != nil {
			return p, err
		}
		p.ActiveVersionID = &id
		if p.PublishedAt == nil {
			now := s.now()
			p.PublishedAt = &now
		}
		// 상태 캐시는 편집 중인 draft 버전을 따라감
		if p.DraftVersionID == nil || *p.DraftVersionID == id {
			p.WorkflowStatus = v.WorkflowStatus
		}
		return p, nil
	}

	if from == domain.StatusPublished {
		if err := tx.Versions().Deactivate(id); err != nil {
			return p, err
		}
		v.IsActive = false
		if p.ActiveVersionID != nil && *p.ActiveVersionID == id {
			p.ActiveVersionID = nil
		}
	}
	p.DraftVersionID = &id
	p.WorkflowStatus = v.WorkflowStatus
	return p, nil
}

// AvailableTransitions lists the edges the actor may take from the version's current status
func (s *workflowService) AvailableTransitions(ctx context.Context, versionID uint64, actor domain.Actor) ([]domain.TransitionDef, error) {
	version, _, cfg, err := s.load(ctx, versionID)
	if err != nil {
		return nil, err
	}
	var out []domain.TransitionDef
	for _, t := range cfg.TransitionsFrom(version.WorkflowStatus) {
		if cfg.CanPerform(t, actor) {
			out = append(out, t)
		}
	}
	return out, nil
}

// ResolveConfig returns the workflow config applying to an owner
func (s *workflowService) ResolveConfig(ctx context.Context, ref domain.OwnerRef) (*domain.WorkflowConfig, error) {
	owners, err := s.store.WithContext(ctx).Owners(ref.Type)
	if err != nil {
		return nil, err
	}
	owner, err := owners.Find(ref.ID)
	if err != nil {
		return nil, err
	}
	return s.configs.Resolve(ctx, owner.WorkflowKey())
}

func (s *workflowService) load(ctx context.Context, versionID uint64) (*domain.ContentVersion, domain.Versionable, *domain.WorkflowConfig, error) {
	st := s.store.WithContext(ctx)
	version, err := st.Versions().FindByID(versionID)
	if err != nil {
		return nil, nil, nil, err
	}
	owners, err := st.Owners(version.VersionableType)
	if err != nil {
		return nil, nil, nil, err
	}
	owner, err := owners.Find(version.VersionableID)
	if err != nil {
		return nil, nil, nil, err
	}
	cfg, err := s.configs.Resolve(ctx, owner.WorkflowKey())
	if err != nil {
		return nil, nil, nil, err
	}
	return version, owner, cfg, nil
}

func transitionResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrForbiddenTransition):
		return "forbidden"
	case errors.Is(err, common.ErrInvalidTransition):
		return "invalid"
	case errors.Is(err, common.ErrConcurrentModification):
		return "conflict"
	default:
		return "error"
	}
}
