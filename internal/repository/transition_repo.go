package repository

import (
	"github.com/damoang/recipe-cms/internal/domain"
	"gorm.io/gorm"
)

// TransitionRepository append-only workflow audit trail
type TransitionRepository interface {
	Create(record *domain.TransitionRecord) error
	ListByVersion(versionID uint64) ([]*domain.TransitionRecord, error)
	ListByOwner(owner domain.OwnerRef) ([]*domain.TransitionRecord, error)
}

type transitionRepository struct {
	db *gorm.DB
}

// NewTransitionRepository creates a new TransitionRepository
func NewTransitionRepository(db *gorm.DB) TransitionRepository {
	return &transitionRepository{db: db}
}

func (r *transitionRepository) Create(record *domain.TransitionRecord) error {
	return r.db.Create(record).Error
}

func (r *transitionRepository) ListByVersion(versionID uint64) ([]*domain.TransitionRecord, error) {
	var records []*domain.TransitionRecord
	err := r.db.Where("content_version_id = ?", versionID).Order("id ASC").Find(&records).Error
	return records, err
}

func (r *transitionRepository) ListByOwner(owner domain.OwnerRef) ([]*domain.TransitionRecord, error) {
	var records []*domain.TransitionRecord
	err := r.db.Model(&domain.TransitionRecord{}).
		Joins("JOIN content_versions cv ON cv.id = content_version_transitions.content_version_id").
		Where("cv.versionable_type = ? AND cv.versionable_id = ?", owner.Type, owner.ID).
		Order("content_version_transitions.id ASC").
		Find(&records).Error
	return records, err
}
