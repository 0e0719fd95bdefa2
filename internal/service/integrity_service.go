package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/damoang/recipe-cms/internal/common"
	"github.com/damoang/recipe-cms/internal/domain"
	"github.com/damoang/recipe-cms/internal/repository"
	"github.com/damoang/recipe-cms/pkg/logger"
)

// Integrity issue codes
const (
	IssueNoVersions          = "no_versions"
	IssueMissingDraft        = "missing_draft_pointer"
	IssueDanglingDraft       = "dangling_draft_pointer"
	IssueForeignDraft        = "foreign_draft_pointer"
	IssueMissingActive       = "missing_active_pointer"
	IssueDanglingActive      = "dangling_active_pointer"
	IssueForeignActive       = "foreign_active_pointer"
	IssueInactiveActive      = "active_pointer_not_active"
	IssueActiveNotPublished  = "active_version_not_published"
	IssueMultipleActive      = "multiple_active_versions"
	IssueStaleWorkflowStatus = "stale_workflow_status"
)

// IntegrityIssue one detected defect
type IntegrityIssue struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Repaired bool   `json:"repaired"`
}

// IntegrityReport audit result for one owner
type IntegrityReport struct {
	Owner  domain.OwnerRef  `json:"owner"`
	Issues []IntegrityIssue `json:"issues"`
}

// HasIssues reports whether any defect was found
func (r *IntegrityReport) HasIssues() bool {
	return len(r.Issues) > 0
}

// Err returns ErrIntegrityViolation when unrepaired issues remain
func (r *IntegrityReport) Err() error {
	for _, issue := range r.Issues {
		if !issue.Repaired {
			return fmt.Errorf("%w: %s: %s", common.ErrIntegrityViolation, r.Owner, issue.Code)
		}
	}
	return nil
}

func (r *IntegrityReport) add(code, message string, repaired bool) {
	r.Issues = append(r.Issues, IntegrityIssue{Code: code, Message: message, Repaired: repaired})
	integrityIssuesTotal.WithLabelValues(code, strconv.FormatBool(repaired)).Inc()
}

// AuditSummary totals of an AuditAll run
type AuditSummary struct {
	Scanned    int `json:"scanned"`
	WithIssues int `json:"with_issues"`
	Issues     int `json:"issues"`
	Repaired   int `json:"repaired"`
}

// IntegrityService audits and repairs owner version pointers
type IntegrityService interface {
	Audit(ctx context.Context, owner domain.OwnerRef, repair bool) (*IntegrityReport, error)
	AuditAll(ctx context.Context, ownerType domain.OwnerType, repair bool, batchSize int, onReport func(*IntegrityReport)) (*AuditSummary, error)
}

type integrityService struct {
	store repository.Store
}

// NewIntegrityService creates a new IntegrityService
func NewIntegrityService(store repository.Store) IntegrityService {
	return &integrityService{store: store}
}

// Audit checks one owner's pointers against its version list and, with repair,
// corrects them: an initial version is created when none exist, pointers are
// re-pointed at the versions actually found, extra active versions are cleared.
func (s *integrityService) Audit(ctx context.Context, ref domain.OwnerRef, repair bool) (*IntegrityReport, error) {
	report := &IntegrityReport{Owner: ref}

	err := s.store.Atomic(ctx, func(tx repository.Store) error {
		owners, err := tx.Owners(ref.Type)
		if err != nil {
			return err
		}
		owner, err := owners.LockForUpdate(ref.ID)
		if err != nil {
			return err
		}
		versions, err := tx.Versions().ListByOwner(ref)
		if err != nil {
			return err
		}

		current := owner.Pointers()
		fixed := current

		if len(versions) == 0 {
			if fixed.ActiveVersionID != nil {
				report.add(IssueDanglingActive, fmt.Sprintf("active pointer %d but owner has no versions", *fixed.ActiveVersionID), repair)
				fixed.ActiveVersionID = nil
			}
			report.add(IssueNoVersions, "owner has no versions", repair)
			if repair {
				_, err := createVersionTx(tx, owners, owner, fixed, CreateVersionInput{Note: "Initial version"}, "repair")
				return err
			}
			return nil
		}

		byID := make(map[uint64]*domain.ContentVersion, len(versions))
		for _, v := range versions {
			byID[v.ID] = v
		}

		if err := s.checkDraft(tx, ref, versions, byID, &fixed, report, repair); err != nil {
			return err
		}
		if err := s.checkActive(tx, ref, versions, byID, &fixed, report, repair); err != nil {
			return err
		}

		// 상태 캐시는 draft 포인터가 가리키는 버전을 따름
		if fixed.DraftVersionID != nil {
			if v, ok := byID[*fixed.DraftVersionID]; ok && fixed.WorkflowStatus != v.WorkflowStatus {
				report.add(IssueStaleWorkflowStatus,
					fmt.Sprintf("cached status %q, draft version is %q", fixed.WorkflowStatus, v.WorkflowStatus), repair)
				fixed.WorkflowStatus = v.WorkflowStatus
			}
		}

		if repair && report.HasIssues() {
			return owners.SavePointers(ref.ID, fixed)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if report.HasIssues() {
		logger.GetLogger().Warn().
			Str("owner", ref.String()).
			Int("issues", len(report.Issues)).
			Bool("repair", repair).
			Msg("version integrity issues found")
	}
	return report, nil
}

func (s *integrityService) checkDraft(tx repository.Store, ref domain.OwnerRef, versions []*domain.ContentVersion,
	byID map[uint64]*domain.ContentVersion, fixed *domain.Pointers, report *IntegrityReport, repair bool) error {
	if fixed.DraftVersionID != nil {
		if _, ok := byID[*fixed.DraftVersionID]; ok {
			return nil
		}
		code, err := classifyPointer(tx, *fixed.DraftVersionID, IssueDanglingDraft, IssueForeignDraft)
		if err != nil {
			return err
		}
		report.add(code, fmt.Sprintf("draft pointer %d does not reference a version of %s", *fixed.DraftVersionID, ref), repair)
	} else {
		report.add(IssueMissingDraft, "owner has versions but no draft pointer", repair)
	}

	target := versions[0] // 최신 버전
	if draft, err := tx.Versions().FindDraft(ref); err == nil {
		target = draft
	} else if !errors.Is(err, common.ErrVersionNotFound) {
		return err
	}
	id := target.ID
	fixed.DraftVersionID = &id
	return nil
}

func (s *integrityService) checkActive(tx repository.Store, ref domain.OwnerRef, versions []*domain.ContentVersion,
	byID map[uint64]*domain.ContentVersion, fixed *domain.Pointers, report *IntegrityReport, repair bool) error {
	var actives []*domain.ContentVersion
	for _, v := range versions {
		if v.IsActive {
			actives = append(actives, v)
		}
	}

	// 유지할 active 버전: 포인터가 유효하면 그것, 아니면 가장 최신
	var keep *domain.ContentVersion
	if fixed.ActiveVersionID != nil {
		if v, ok := byID[*fixed.ActiveVersionID]; ok && v.IsActive {
			keep = v
		}
	}
	if keep == nil && len(actives) > 0 {
		keep = actives[0]
	}

	if len(actives) > 1 {
		report.add(IssueMultipleActive, fmt.Sprintf("%d versions are active", len(actives)), repair)
		if repair {
			if err := tx.Versions().Activate(keep); err != nil {
				return err
			}
		}
	}

	unpublished := keep != nil && !keep.IsPublished()
	if unpublished {
		report.add(IssueActiveNotPublished,
			fmt.Sprintf("active version %d has status %q", keep.ID, keep.WorkflowStatus), repair)
		if repair {
			if err := tx.Versions().Deactivate(keep.ID); err != nil {
				return err
			}
		}
		keep = nil
	}

	switch {
	case fixed.ActiveVersionID == nil:
		if keep != nil {
			report.add(IssueMissingActive, fmt.Sprintf("version %d is active but not referenced", keep.ID), repair)
		}
	case byID[*fixed.ActiveVersionID] == nil:
		code, err := classifyPointer(tx, *fixed.ActiveVersionID, IssueDanglingActive, IssueForeignActive)
		if err != nil {
			return err
		}
		report.add(code, fmt.Sprintf("active pointer %d does not reference a version of %s", *fixed.ActiveVersionID, ref), repair)
	case !unpublished && (keep == nil || keep.ID != *fixed.ActiveVersionID):
		report.add(IssueInactiveActive, fmt.Sprintf("active pointer %d references an inactive version", *fixed.ActiveVersionID), repair)
	}

	if keep != nil {
		id := keep.ID
		fixed.ActiveVersionID = &id
	} else {
		fixed.ActiveVersionID = nil
	}
	return nil
}

// classifyPointer distinguishes a pointer to a missing version from one owned elsewhere
func classifyPointer(tx repository.Store, id uint64, dangling, foreign string) (string, error) {
	_, err := tx.Versions().FindByID(id)
	if err == nil {
		return foreign, nil
	}
	if errors.Is(err, common.ErrVersionNotFound) {
		return dangling, nil
	}
	return "", err
}

// AuditAll audits every owner of a type in id order
func (s *integrityService) AuditAll(ctx context.Context, ownerType domain.OwnerType, repair bool, batchSize int, onReport func(*IntegrityReport)) (*AuditSummary, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	owners, err := s.store.WithContext(ctx).Owners(ownerType)
	if err != nil {
		return nil, err
	}

	summary := &AuditSummary{}
	var after uint64
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		ids, err := owners.ListIDs(after, batchSize)
		if err != nil {
			return summary, err
		}
		if len(ids) == 0 {
			return summary, nil
		}
		for _, id := range ids {
			report, err := s.Audit(ctx, domain.OwnerRef{Type: ownerType, ID: id}, repair)
			if err != nil {
				return summary, err
			}
			summary.Scanned++
			if report.HasIssues() {
				summary.WithIssues++
				summary.Issues += len(report.Issues)
				for _, issue := range report.Issues {
					if issue.Repaired {
						summary.Repaired++
					}
				}
			}
			if onReport != nil {
				onReport(report)
			}
		}
		after = ids[len(ids)-1]
	}
}
