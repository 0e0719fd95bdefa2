package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/damoang/recipe-cms/internal/common"
	"github.com/damoang/recipe-cms/internal/domain"
	"github.com/damoang/recipe-cms/internal/repository"
	"github.com/damoang/recipe-cms/pkg/logger"
	"github.com/go-playground/validator/v10"
)

var postValidator = validator.New()

// PostInput editable post fields
type PostInput struct {
	PostType    string                 `json:"post_type" validate:"omitempty,oneof=article recipe review"`
	Title       string                 `json:"title" validate:"required,max=255"`
	Slug        string                 `json:"slug" validate:"max=255"`
	Excerpt     *string                `json:"excerpt"`
	Body        string                 `json:"body"`
	Meta        map[string]interface{} `json:"meta"`
	CategoryIDs []uint64               `json:"category_ids"`
	TagIDs      []uint64               `json:"tag_ids"`
	PublishAt   *time.Time             `json:"publish_at"`
	VersionNote string                 `json:"version_note" validate:"max=500"`
}

// PostService business logic for posts. Saving a post keeps its versions in
// step: creation opens version 1, edits rewrite the current draft.
type PostService interface {
	GetPost(ctx context.Context, id uint64) (*domain.Post, error)
	CreatePost(ctx context.Context, in *PostInput, actor domain.Actor) (*domain.Post, *domain.ContentVersion, error)
	UpdatePost(ctx context.Context, id uint64, in *PostInput, actor domain.Actor) (*domain.Post, *domain.ContentVersion, error)
	DeletePost(ctx context.Context, id uint64) error
}

type postService struct {
	posts    repository.PostRepository
	versions VersionService
}

// NewPostService creates a new PostService
func NewPostService(posts repository.PostRepository, versions VersionService) PostService {
	return &postService{posts: posts, versions: versions}
}

// GetPost retrieves a single post by ID
func (s *postService) GetPost(_ context.Context, id uint64) (*domain.Post, error) {
	return s.posts.FindByID(id)
}

// CreatePost creates a post and its first draft version
func (s *postService) CreatePost(ctx context.Context, in *PostInput, actor domain.Actor) (*domain.Post, *domain.ContentVersion, error) {
	post := &domain.Post{AuthorID: actor.ID, WorkflowStatus: domain.StatusDraft}
	if err := s.apply(post, in); err != nil {
		return nil, nil, err
	}
	if err := s.posts.Create(post); err != nil {
		return nil, nil, err
	}

	version, err := s.versions.CreateVersion(ctx, post.VersionableRef(), CreateVersionInput{
		Note:    in.VersionNote,
		ActorID: actor.ID,
	})
	if err != nil {
		// 버전 없는 게시글을 남기지 않음
		if purgeErr := s.posts.Purge(post.ID); purgeErr != nil {
			logger.GetLogger().Warn().Err(purgeErr).Uint64("post_id", post.ID).
				Msg("failed to purge post without versions")
		}
		return nil, nil, err
	}

	post, err = s.posts.FindByID(post.ID)
	if err != nil {
		return nil, nil, err
	}
	return post, version, nil
}

// UpdatePost saves the live fields, then rewrites the draft version from them
func (s *postService) UpdatePost(ctx context.Context, id uint64, in *PostInput, actor domain.Actor) (*domain.Post, *domain.ContentVersion, error) {
	post, err := s.posts.FindByID(id)
	if err != nil {
		return nil, nil, err
	}
	if err := s.apply(post, in); err != nil {
		return nil, nil, err
	}
	if err := s.posts.UpdateFields(post); err != nil {
		return nil, nil, err
	}

	version, err := s.versions.UpdateDraftVersion(ctx, post.VersionableRef(), nil, actor.ID)
	if err != nil {
		return nil, nil, err
	}

	post, err = s.posts.FindByID(id)
	if err != nil {
		return nil, nil, err
	}
	return post, version, nil
}

// DeletePost soft-deletes a post; its versions are kept
func (s *postService) DeletePost(_ context.Context, id uint64) error {
	if _, err := s.posts.FindByID(id); err != nil {
		return err
	}
	return s.posts.Delete(id)
}

func (s *postService) apply(post *domain.Post, in *PostInput) error {
	if in == nil {
		return fmt.Errorf("%w: empty post", common.ErrInvalidInput)
	}
	if err := postValidator.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}

	categories, err := s.posts.FindCategories(in.CategoryIDs)
	if err != nil {
		return err
	}
	tags, err := s.posts.FindTags(in.TagIDs)
	if err != nil {
		return err
	}

	post.PostType = in.PostType
	if post.PostType == "" {
		post.PostType = domain.PostTypeArticle
	}
	post.Title = strings.TrimSpace(in.Title)
	post.Slug = in.Slug
	if post.Slug == "" {
		post.Slug = slugify(post.Title)
	}
	post.Excerpt = in.Excerpt
	post.Body = in.Body
	post.Meta = in.Meta
	post.PublishAt = in.PublishAt
	post.Categories = categories
	post.Tags = tags
	return nil
}

func slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
