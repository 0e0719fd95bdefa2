package domain

// Workflow status keys used by the default config. Custom configs may add more.
const (
	StatusDraft     = "draft"
	StatusReview    = "review"
	StatusCopydesk  = "copydesk"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusPublished = "published"
)

// StateDef is a display-oriented workflow state
type StateDef struct {
	Key   string `yaml:"key" json:"key" validate:"required"`
	Label string `yaml:"label" json:"label"`
	Color string `yaml:"color" json:"color,omitempty"`
}

// TransitionDef is a directed edge between two states. An empty Roles list
// places no role restriction on the edge itself.
type TransitionDef struct {
	From  string   `yaml:"from" json:"from" validate:"required"`
	To    string   `yaml:"to" json:"to" validate:"required,nefield=From"`
	Roles []string `yaml:"roles" json:"roles"`
	Label string   `yaml:"label" json:"label"`
}

// WorkflowConfig is the graph governing transitions for a content type.
// "published" is implicit: it does not have to appear in States.
type WorkflowConfig struct {
	Name         string          `yaml:"name" json:"name"`
	States       []StateDef      `yaml:"states" json:"states" validate:"required,min=1,dive"`
	Transitions  []TransitionDef `yaml:"transitions" json:"transitions" validate:"required,min=1,dive"`
	PublishRoles []string        `yaml:"publish_roles" json:"publish_roles"`
}

// FindTransition returns the edge from -> to, if declared
func (c *WorkflowConfig) FindTransition(from, to string) (TransitionDef, bool) {
	for _, t := range c.Transitions {
		if t.From == from && t.To == to {
			return t, true
		}
	}
	return TransitionDef{}, false
}

// TransitionsFrom lists edges leaving a state
func (c *WorkflowConfig) TransitionsFrom(from string) []TransitionDef {
	var out []TransitionDef
	for _, t := range c.Transitions {
		if t.From == from {
			out = append(out, t)
		}
	}
	return out
}

// HasState reports whether key is a declared state or the implicit published state
func (c *WorkflowConfig) HasState(key string) bool {
	if key == StatusPublished {
		return true
	}
	for _, s := range c.States {
		if s.Key == key {
			return true
		}
	}
	return false
}

// CanPerform reports whether actor may take edge t
func (c *WorkflowConfig) CanPerform(t TransitionDef, actor Actor) bool {
	if len(t.Roles) > 0 && !actor.HasAnyRole(t.Roles) {
		return false
	}
	if t.To == StatusPublished && len(c.PublishRoles) > 0 && !actor.HasAnyRole(c.PublishRoles) {
		return false
	}
	return true
}

// DefaultWorkflowConfig returns the built-in editorial workflow
func DefaultWorkflowConfig() *WorkflowConfig {
	writers := []string{RoleWriter, RoleEditor, RoleAdmin}
	editors := []string{RoleEditor, RoleAdmin}

	return &WorkflowConfig{
		Name: "default",
		States: []StateDef{
			{Key: StatusDraft, Label: "Draft", Color: "gray"},
			{Key: StatusReview, Label: "In Review", Color: "blue"},
			{Key: StatusCopydesk, Label: "Copydesk", Color: "purple"},
			{Key: StatusApproved, Label: "Approved", Color: "green"},
			{Key: StatusRejected, Label: "Rejected", Color: "red"},
		},
		Transitions: []TransitionDef{
			{From: StatusDraft, To: StatusReview, Roles: writers, Label: "Submit for review"},
			{From: StatusReview, To: StatusCopydesk, Roles: editors, Label: "Send to copydesk"},
			{From: StatusReview, To: StatusRejected, Roles: editors, Label: "Reject"},
			{From: StatusCopydesk, To: StatusApproved, Roles: editors, Label: "Approve"},
			{From: StatusCopydesk, To: StatusRejected, Roles: editors, Label: "Reject"},
			{From: StatusRejected, To: StatusReview, Roles: writers, Label: "Resubmit"},
			{From: StatusApproved, To: StatusPublished, Roles: editors, Label: "Publish"},
			{From: StatusPublished, To: StatusDraft, Roles: editors, Label: "Unpublish"},
		},
		PublishRoles: editors,
	}
}
