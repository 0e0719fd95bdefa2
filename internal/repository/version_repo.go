package repository

import (
	"errors"
	"time"

	"github.com/damoang/recipe-cms/internal/common"
	"github.com/damoang/recipe-cms/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// VersionRepository content version data access
type VersionRepository interface {
	Create(version *domain.ContentVersion) error
	FindByID(id uint64) (*domain.ContentVersion, error)
	FindLatest(owner domain.OwnerRef) (*domain.ContentVersion, error)
	FindActive(owner domain.OwnerRef) (*domain.ContentVersion, error)
	FindDraft(owner domain.OwnerRef) (*domain.ContentVersion, error)
	ListByOwner(owner domain.OwnerRef) ([]*domain.ContentVersion, error)
	ListActiveByOwner(owner domain.OwnerRef) ([]*domain.ContentVersion, error)
	ListByStatus(status string, updatedBefore time.Time, afterID uint64, limit int) ([]*domain.ContentVersion, error)
	CountByOwner(owner domain.OwnerRef) (int64, error)
	NextVersionNumber(owner domain.OwnerRef) (uint, error)
	UpdateSnapshot(id uint64, snapshot datatypes.JSONMap) error
	UpdateStatus(id uint64, from, to string) error
	Activate(version *domain.ContentVersion) error
	Deactivate(id uint64) error
}

type versionRepository struct {
	db *gorm.DB
}

// NewVersionRepository creates a new VersionRepository
func NewVersionRepository(db *gorm.DB) VersionRepository {
	return &versionRepository{db: db}
}

func (r *versionRepository) Create(version *domain.ContentVersion) error {
	return r.db.Create(version).Error
}

func (r *versionRepository) FindByID(id uint64) (*domain.ContentVersion, error) {
	var version domain.ContentVersion
	err := r.db.First(&version, id).Error
	return r.found(&version, err)
}

func (r *versionRepository) FindLatest(owner domain.OwnerRef) (*domain.ContentVersion, error) {
	var version domain.ContentVersion
	err := r.ownerScope(owner).Order("version_number DESC").First(&version).Error
	return r.found(&version, err)
}

func (r *versionRepository) FindActive(owner domain.OwnerRef) (*domain.ContentVersion, error) {
	var version domain.ContentVersion
	err := r.ownerScope(owner).Where("is_active = ?", true).
		Order("version_number DESC").First(&version).Error
	return r.found(&version, err)
}

func (r *versionRepository) FindDraft(owner domain.OwnerRef) (*domain.ContentVersion, error) {
	var version domain.ContentVersion
	err := r.ownerScope(owner).Where("workflow_status = ?", domain.StatusDraft).
		Order("version_number DESC").First(&version).Error
	return r.found(&version, err)
}

func (r *versionRepository) ListByOwner(owner domain.OwnerRef) ([]*domain.ContentVersion, error) {
	var versions []*domain.ContentVersion
	err := r.ownerScope(owner).Order("version_number DESC").Find(&versions).Error
	return versions, err
}

func (r *versionRepository) ListActiveByOwner(owner domain.OwnerRef) ([]*domain.ContentVersion, error) {
	var versions []*domain.ContentVersion
	err := r.ownerScope(owner).Where("is_active = ?", true).
		Order("version_number DESC").Find(&versions).Error
	return versions, err
}

// ListByStatus returns one page of versions sitting in status since before
// updatedBefore, keyed by id: pass the last id of the previous page as afterID.
func (r *versionRepository) ListByStatus(status string, updatedBefore time.Time, afterID uint64, limit int) ([]*domain.ContentVersion, error) {
	var versions []*domain.ContentVersion
	err := r.db.Where("workflow_status = ? AND updated_at < ? AND id > ?", status, updatedBefore, afterID).
		Order("id ASC").Limit(limit).Find(&versions).Error
	return versions, err
}

func (r *versionRepository) CountByOwner(owner domain.OwnerRef) (int64, error) {
	var count int64
	err := r.ownerScope(owner).Model(&domain.ContentVersion{}).Count(&count).Error
	return count, err
}

// NextVersionNumber returns MAX(version_number)+1; callers hold the owner lock
func (r *versionRepository) NextVersionNumber(owner domain.OwnerRef) (uint, error) {
	var maxVersion *uint
	err := r.db.Model(&domain.ContentVersion{}).
		Where("versionable_type = ? AND versionable_id = ?", owner.Type, owner.ID).
		Select("MAX(version_number)").
		Scan(&maxVersion).Error
	if err != nil {
		return 0, err
	}
	if maxVersion == nil {
		return 1, nil
	}
	return *maxVersion + 1, nil
}

func (r *versionRepository) UpdateSnapshot(id uint64, snapshot datatypes.JSONMap) error {
	res := r.db.Model(&domain.ContentVersion{}).Where("id = ?", id).
		Update("content_snapshot", snapshot)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.ErrVersionNotFound
	}
	return nil
}

// UpdateStatus moves a version from -> to, failing if the stored status is no longer from
func (r *versionRepository) UpdateStatus(id uint64, from, to string) error {
	res := r.db.Model(&domain.ContentVersion{}).
		Where("id = ? AND workflow_status = ?", id, from).
		Update("workflow_status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.ErrConcurrentModification
	}
	return nil
}

// Activate marks version active and clears every other active version of the same owner
func (r *versionRepository) Activate(version *domain.ContentVersion) error {
	if err := r.db.Model(&domain.ContentVersion{}).
		Where("versionable_type = ? AND versionable_id = ? AND id <> ? AND is_active = ?",
			version.VersionableType, version.VersionableID, version.ID, true).
		Update("is_active", false).Error; err != nil {
		return err
	}
	if err := r.db.Model(&domain.ContentVersion{}).Where("id = ?", version.ID).
		Update("is_active", true).Error; err != nil {
		return err
	}
	version.IsActive = true
	return nil
}

func (r *versionRepository) Deactivate(id uint64) error {
	return r.db.Model(&domain.ContentVersion{}).Where("id = ?", id).
		Update("is_active", false).Error
}

func (r *versionRepository) ownerScope(owner domain.OwnerRef) *gorm.DB {
	return r.db.Where("versionable_type = ? AND versionable_id = ?", owner.Type, owner.ID)
}

func (r *versionRepository) found(version *domain.ContentVersion, err error) (*domain.ContentVersion, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrVersionNotFound
		}
		return nil, err
	}
	return version, nil
}
