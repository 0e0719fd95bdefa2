package repository

import (
	"errors"

	"github.com/damoang/recipe-cms/internal/common"
	"github.com/damoang/recipe-cms/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OwnerRepository gives the versioning engine access to one owner type
type OwnerRepository interface {
	Find(id uint64) (domain.Versionable, error)
	// LockForUpdate loads the owner with a row lock held until the transaction ends
	LockForUpdate(id uint64) (domain.Versionable, error)
	SavePointers(id uint64, pointers domain.Pointers) error
	ListIDs(afterID uint64, limit int) ([]uint64, error)
}

type postOwnerRepository struct {
	db *gorm.DB
}

// NewPostOwnerRepository creates the OwnerRepository for posts
func NewPostOwnerRepository(db *gorm.DB) OwnerRepository {
	return &postOwnerRepository{db: db}
}

func (r *postOwnerRepository) Find(id uint64) (domain.Versionable, error) {
	post, err := r.load(r.db, id)
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (r *postOwnerRepository) LockForUpdate(id uint64) (domain.Versionable, error) {
	// SQLite 드라이버는 FOR UPDATE 절을 무시함 (트랜잭션 자체가 직렬화)
	post, err := r.load(r.db.Clauses(clause.Locking{Strength: "UPDATE"}), id)
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (r *postOwnerRepository) SavePointers(id uint64, pointers domain.Pointers) error {
	res := r.db.Model(&domain.Post{}).Where("id = ?", id).Updates(map[string]interface{}{
		"draft_version_id":  pointers.DraftVersionID,
		"active_version_id": pointers.ActiveVersionID,
		"workflow_status":   pointers.WorkflowStatus,
		"published_at":      pointers.PublishedAt,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.ErrOwnerNotFound
	}
	return nil
}

func (r *postOwnerRepository) ListIDs(afterID uint64, limit int) ([]uint64, error) {
	var ids []uint64
	err := r.db.Model(&domain.Post{}).Where("id > ?", afterID).
		Order("id ASC").Limit(limit).Pluck("id", &ids).Error
	return ids, err
}

func (r *postOwnerRepository) load(db *gorm.DB, id uint64) (*domain.Post, error) {
	var post domain.Post
	err := db.Preload("Categories").Preload("Tags").First(&post, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrOwnerNotFound
		}
		return nil, err
	}
	return &post, nil
}
