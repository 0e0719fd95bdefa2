package domain

import (
	"fmt"
	"strings"
	"time"
)

// OwnerType is the versionable_type discriminator of a versioned content item
type OwnerType string

// Known owner types
const (
	OwnerTypePost OwnerType = "post"
)

// OwnerRef identifies the owner of a version (versionable_type + versionable_id).
// Both parts must match for a version to belong to an owner.
type OwnerRef struct {
	Type OwnerType `json:"type"`
	ID   uint64    `json:"id"`
}

// Equal reports whether both type and id match
func (r OwnerRef) Equal(other OwnerRef) bool {
	return r.Type == other.Type && r.ID == other.ID
}

// IsZero reports whether the reference is unset
func (r OwnerRef) IsZero() bool {
	return r.Type == "" && r.ID == 0
}

func (r OwnerRef) String() string {
	return fmt.Sprintf("%s#%d", r.Type, r.ID)
}

// Pointers is the versioning state cached on an owner row
type Pointers struct {
	DraftVersionID  *uint64    `json:"draft_version_id"`
	ActiveVersionID *uint64    `json:"active_version_id"`
	WorkflowStatus  string     `json:"workflow_status"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
}

// Versionable is implemented by every content type that accumulates versions
type Versionable interface {
	VersionableRef() OwnerRef
	// WorkflowKey selects the workflow config (e.g. the post type)
	WorkflowKey() string
	// BuildContentSnapshot captures the live versionable fields
	BuildContentSnapshot() map[string]interface{}
	// RequiredPublishFields lists snapshot keys that must be non-empty before publishing
	RequiredPublishFields() []string
	Pointers() Pointers
}

// Editorial roles
const (
	RoleWriter = "Writer"
	RoleEditor = "Editor"
	RoleAdmin  = "Admin"
)

// Actor is the user (or system process) performing a versioning operation.
// Roles are supplied by the identity layer.
type Actor struct {
	ID    *uint64  `json:"id,omitempty"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

// SystemActor is used by scheduled jobs
func SystemActor() Actor {
	return Actor{Name: "system", Roles: []string{RoleAdmin}}
}

// HasAnyRole reports whether the actor holds at least one of roles (case-insensitive)
func (a Actor) HasAnyRole(roles []string) bool {
	for _, want := range roles {
		for _, have := range a.Roles {
			if strings.EqualFold(strings.TrimSpace(have), strings.TrimSpace(want)) {
				return true
			}
		}
	}
	return false
}
