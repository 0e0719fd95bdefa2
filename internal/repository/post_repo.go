package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/damoang/recipe-cms/internal/common"
	"github.com/damoang/recipe-cms/internal/domain"
	"gorm.io/gorm"
)

// PostRepository 게시글 저장소 인터페이스
type PostRepository interface {
	// 조회
	FindByID(id uint64) (*domain.Post, error)
	ListDueForPublish(now time.Time, afterID uint64, limit int) ([]*domain.Post, error)
	FindCategories(ids []uint64) ([]domain.Category, error)
	FindTags(ids []uint64) ([]domain.Tag, error)

	// 작성/수정/삭제
	Create(post *domain.Post) error
	UpdateFields(post *domain.Post) error
	Delete(id uint64) error
	Purge(id uint64) error
}

// postRepository GORM 구현체
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository 생성자
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// FindByID 게시글 단건 조회 (카테고리/태그 포함)
func (r *postRepository) FindByID(id uint64) (*domain.Post, error) {
	var post domain.Post
	err := r.db.Preload("Categories").Preload("Tags").First(&post, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrOwnerNotFound
		}
		return nil, err
	}
	return &post, nil
}

// ListDueForPublish 예약 발행 시각이 지난 승인 상태 게시글 조회 (id 기준 페이지, afterID 이후)
func (r *postRepository) ListDueForPublish(now time.Time, afterID uint64, limit int) ([]*domain.Post, error) {
	var posts []*domain.Post
	err := r.db.Where("workflow_status = ? AND publish_at IS NOT NULL AND publish_at <= ? AND id > ?",
		domain.StatusApproved, now, afterID).
		Order("id ASC").Limit(limit).Find(&posts).Error
	return posts, err
}

// FindCategories 카테고리 조회; 존재하지 않는 ID가 있으면 ErrInvalidInput
func (r *postRepository) FindCategories(ids []uint64) ([]domain.Category, error) {
	var categories []domain.Category
	if len(ids) == 0 {
		return categories, nil
	}
	if err := r.db.Where("id IN ?", ids).Find(&categories).Error; err != nil {
		return nil, err
	}
	if len(categories) != len(uniqueIDs(ids)) {
		return nil, fmt.Errorf("%w: unknown category id", common.ErrInvalidInput)
	}
	return categories, nil
}

// FindTags 태그 조회; 존재하지 않는 ID가 있으면 ErrInvalidInput
func (r *postRepository) FindTags(ids []uint64) ([]domain.Tag, error) {
	var tags []domain.Tag
	if len(ids) == 0 {
		return tags, nil
	}
	if err := r.db.Where("id IN ?", ids).Find(&tags).Error; err != nil {
		return nil, err
	}
	if len(tags) != len(uniqueIDs(ids)) {
		return nil, fmt.Errorf("%w: unknown tag id", common.ErrInvalidInput)
	}
	return tags, nil
}

func uniqueIDs(ids []uint64) map[uint64]struct{} {
	set := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Create 게시글 작성 (버전 포인터는 비어 있는 상태)
func (r *postRepository) Create(post *domain.Post) error {
	if post.WorkflowStatus == "" {
		post.WorkflowStatus = domain.StatusDraft
	}
	return r.db.Create(post).Error
}

// UpdateFields 편집 가능한 필드만 갱신; 버전 포인터는 versioning 서비스가 관리
func (r *postRepository) UpdateFields(post *domain.Post) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Post{}).Where("id = ?", post.ID).Updates(map[string]interface{}{
			"post_type":  post.PostType,
			"title":      post.Title,
			"slug":       post.Slug,
			"excerpt":    post.Excerpt,
			"body":       post.Body,
			"meta":       post.Meta,
			"publish_at": post.PublishAt,
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(post).Association("Categories").Replace(post.Categories); err != nil {
			return err
		}
		return tx.Model(post).Association("Tags").Replace(post.Tags)
	})
}

// Delete 소프트 삭제 (버전은 유지)
func (r *postRepository) Delete(id uint64) error {
	return r.db.Delete(&domain.Post{}, id).Error
}

// Purge 게시글과 카테고리/태그 연결을 완전히 삭제 (작성 실패 시 정리용)
func (r *postRepository) Purge(id uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		post := &domain.Post{ID: id}
		if err := tx.Model(post).Association("Categories").Clear(); err != nil {
			return err
		}
		if err := tx.Model(post).Association("Tags").Clear(); err != nil {
			return err
		}
		return tx.Unscoped().Delete(&domain.Post{}, id).Error
	})
}
