package domain

import (
	"sort"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Post types
const (
	PostTypeArticle = "article"
	PostTypeRecipe  = "recipe"
	PostTypeReview  = "review"
)

// Post is an editorial article or recipe; the live fields are the working copy,
// versions hold the history.
type Post struct {
	ID              uint64            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	PostType        string            `gorm:"column:post_type;type:varchar(50);not null;default:'article';index" json:"post_type"`
	AuthorID        *uint64           `gorm:"column:author_id;index" json:"author_id,omitempty"`
	Title           string            `gorm:"column:title;type:varchar(255)" json:"title"`
	Slug            string            `gorm:"column:slug;type:varchar(255);index" json:"slug"`
	Excerpt         *string           `gorm:"column:excerpt;type:text" json:"excerpt,omitempty"`
	Body            string            `gorm:"column:body;type:mediumtext" json:"body"`
	Meta            datatypes.JSONMap `gorm:"column:meta" json:"meta,omitempty"`
	Categories      []Category        `gorm:"many2many:post_categories;" json:"categories,omitempty"`
	Tags            []Tag             `gorm:"many2many:post_tags;" json:"tags,omitempty"`
	DraftVersionID  *uint64           `gorm:"column:draft_version_id" json:"draft_version_id"`
	ActiveVersionID *uint64           `gorm:"column:active_version_id" json:"active_version_id"`
	WorkflowStatus  string            `gorm:"column:workflow_status;type:varchar(30);not null;default:'draft';index" json:"workflow_status"`
	PublishAt       *time.Time        `gorm:"column:publish_at;index" json:"publish_at,omitempty"` // 예약 발행 시각
	PublishedAt     *time.Time        `gorm:"column:published_at" json:"published_at,omitempty"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt    `gorm:"column:deleted_at;index" json:"-"`
}

func (Post) TableName() string { return "posts" }

// Category groups posts (cuisine, course, ...)
type Category struct {
	ID   uint64 `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"column:name;type:varchar(100)" json:"name"`
	Slug string `gorm:"column:slug;type:varchar(100);uniqueIndex" json:"slug"`
}

func (Category) TableName() string { return "categories" }

// Tag is a free-form post label
type Tag struct {
	ID   uint64 `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"column:name;type:varchar(100)" json:"name"`
	Slug string `gorm:"column:slug;type:varchar(100);uniqueIndex" json:"slug"`
}

func (Tag) TableName() string { return "tags" }

func (p *Post) VersionableRef() OwnerRef {
	return OwnerRef{Type: OwnerTypePost, ID: p.ID}
}

func (p *Post) WorkflowKey() string {
	if p.PostType == "" {
		return PostTypeArticle
	}
	return p.PostType
}

// BuildContentSnapshot captures every versionable field of the post
func (p *Post) BuildContentSnapshot() map[string]interface{} {
	categoryIDs := make([]uint64, 0, len(p.Categories))
	for _, c := range p.Categories {
		categoryIDs = append(categoryIDs, c.ID)
	}
	tagIDs := make([]uint64, 0, len(p.Tags))
	for _, t := range p.Tags {
		tagIDs = append(tagIDs, t.ID)
	}
	sort.Slice(categoryIDs, func(i, j int) bool { return categoryIDs[i] < categoryIDs[j] })
	sort.Slice(tagIDs, func(i, j int) bool { return tagIDs[i] < tagIDs[j] })

	snapshot := map[string]interface{}{
		"post_type":    p.WorkflowKey(),
		"title":        p.Title,
		"slug":         p.Slug,
		"body":         p.Body,
		"category_ids": categoryIDs,
		"tag_ids":      tagIDs,
	}
	if p.Excerpt != nil {
		snapshot["excerpt"] = *p.Excerpt
	}
	if len(p.Meta) > 0 {
		snapshot["meta"] = map[string]interface{}(p.Meta)
	}
	return snapshot
}

func (p *Post) RequiredPublishFields() []string {
	return DefaultPublishFields
}

func (p *Post) Pointers() Pointers {
	return Pointers{
		DraftVersionID:  p.DraftVersionID,
		ActiveVersionID: p.ActiveVersionID,
		WorkflowStatus:  p.WorkflowStatus,
		PublishedAt:     p.PublishedAt,
	}
}

// Setting is a key/value row; workflow overrides live under workflow.post_type.<type>
type Setting struct {
	Key       string    `gorm:"column:setting_key;type:varchar(191);primaryKey" json:"key"`
	Value     string    `gorm:"column:setting_value;type:text" json:"value"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Setting) TableName() string { return "settings" }
