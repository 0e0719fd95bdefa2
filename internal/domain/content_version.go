package domain

import (
	"encoding/json"
	"reflect"
	"time"

	"gorm.io/datatypes"
)

// DefaultPublishFields snapshot keys required before a version may be published
var DefaultPublishFields = []string{"category_ids", "tag_ids"}

// ContentVersion is a snapshot of an owner's versionable fields with a mutable workflow status
type ContentVersion struct {
	ID              uint64            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	VersionableType OwnerType         `gorm:"column:versionable_type;type:varchar(50);not null;uniqueIndex:idx_content_versions_owner_number,priority:1" json:"versionable_type"`
	VersionableID   uint64            `gorm:"column:versionable_id;not null;uniqueIndex:idx_content_versions_owner_number,priority:2" json:"versionable_id"`
	VersionNumber   uint              `gorm:"column:version_number;not null;uniqueIndex:idx_content_versions_owner_number,priority:3" json:"version_number"`
	ContentSnapshot datatypes.JSONMap `gorm:"column:content_snapshot" json:"content_snapshot"`
	WorkflowStatus  string            `gorm:"column:workflow_status;type:varchar(30);not null;default:'draft';index" json:"workflow_status"`
	IsActive        bool              `gorm:"column:is_active;not null;default:false" json:"is_active"`
	CreatedBy       *uint64           `gorm:"column:created_by" json:"created_by,omitempty"`
	VersionNote     *string           `gorm:"column:version_note;type:varchar(500)" json:"version_note,omitempty"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (ContentVersion) TableName() string { return "content_versions" }

// Owner returns the polymorphic owner reference
func (v *ContentVersion) Owner() OwnerRef {
	return OwnerRef{Type: v.VersionableType, ID: v.VersionableID}
}

// BelongsTo reports whether the version is owned by ref (type and id)
func (v *ContentVersion) BelongsTo(ref OwnerRef) bool {
	return v.Owner().Equal(ref)
}

// IsDraft reports whether the version is still being edited
func (v *ContentVersion) IsDraft() bool {
	return v.WorkflowStatus == StatusDraft
}

// IsPublished reports whether the version reached the published state
func (v *ContentVersion) IsPublished() bool {
	return v.WorkflowStatus == StatusPublished
}

// CanBePublished reports whether the version is approved and its snapshot carries
// every required field. DefaultPublishFields apply when none are given.
func (v *ContentVersion) CanBePublished(requiredFields ...string) bool {
	if v.WorkflowStatus != StatusApproved {
		return false
	}
	return len(v.MissingFields(requiredFields...)) == 0
}

// MissingFields returns the required snapshot keys that are absent or empty
func (v *ContentVersion) MissingFields(requiredFields ...string) []string {
	if len(requiredFields) == 0 {
		requiredFields = DefaultPublishFields
	}
	var missing []string
	for _, key := range requiredFields {
		if !hasValue(v.ContentSnapshot[key]) {
			missing = append(missing, key)
		}
	}
	return missing
}

// hasValue treats nil, empty strings and empty collections as missing
func hasValue(value interface{}) bool {
	if value == nil {
		return false
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return rv.Len() > 0
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// CloneSnapshot deep-copies a snapshot through JSON so later mutation of the
// source never leaks into a stored version.
func CloneSnapshot(src map[string]interface{}) (datatypes.JSONMap, error) {
	if src == nil {
		return datatypes.JSONMap{}, nil
	}
	raw, err := json.Marshal(src)
	if err != nil {
		return nil, err
	}
	out := datatypes.JSONMap{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TransitionRecord is an append-only audit entry for a version status change
type TransitionRecord struct {
	ID               uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ContentVersionID uint64    `gorm:"column:content_version_id;not null;index" json:"content_version_id"`
	FromStatus       *string   `gorm:"column:from_status;type:varchar(30)" json:"from_status"`
	ToStatus         string    `gorm:"column:to_status;type:varchar(30);not null" json:"to_status"`
	PerformedBy      *uint64   `gorm:"column:performed_by" json:"performed_by,omitempty"`
	Comment          *string   `gorm:"column:comment;type:text" json:"comment,omitempty"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (TransitionRecord) TableName() string { return "content_version_transitions" }
