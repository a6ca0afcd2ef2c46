package model

import "time"

// WorkflowTemplate is a reusable, ordered definition of approval steps for
// one or more content types. Templates are immutable once referenced by an
// active workflow; edits create a new template version.
type WorkflowTemplate struct {
	ID          string `yaml:"id"          json:"id"`
	TenantID    string `yaml:"-"           json:"tenant_id"`
	Name        string `yaml:"name"        json:"name"`
	Description string `yaml:"description" json:"description,omitempty"`

	// ApplicableContentTypes is the set of content-type tags this template
	// may be used for. A workflow creation request whose content type is not
	// in this set fails with TEMPLATE_MISMATCH.
	ApplicableContentTypes []string `yaml:"content_types" json:"applicable_content_types"`

	// Steps is ordered; order is significant and fixed at creation.
	Steps []StepDefinition `yaml:"steps" json:"steps"`

	// IsDefault marks the template to use when a caller does not name one.
	// At most one template may be default per content type; the template
	// store enforces this.
	IsDefault bool `yaml:"is_default" json:"is_default"`

	Version   int       `yaml:"-" json:"version"`
	CreatedBy string    `yaml:"-" json:"created_by,omitempty"`
	CreatedAt time.Time `yaml:"-" json:"created_at"`
	UpdatedAt time.Time `yaml:"-" json:"updated_at"`
}

// StepDefinition describes one gate inside a template.
type StepDefinition struct {
	ID          string `yaml:"id"          json:"id"`
	Name        string `yaml:"name"        json:"name"`
	Description string `yaml:"description" json:"description,omitempty"`

	// RequiredApprovals is the count of distinct "approved" actions needed
	// to close the step. Must be >= 1.
	RequiredApprovals int `yaml:"required_approvals" json:"required_approvals"`

	// AssignedUserIDs is the non-empty set of actors eligible to act.
	AssignedUserIDs []string `yaml:"assigned_user_ids" json:"assigned_user_ids"`

	// Order is the zero-based position; orders must form a contiguous
	// 0..N-1 permutation within the template.
	Order int `yaml:"order" json:"order"`

	// IsParallel is surfaced to the UI as a hint; approval counting is
	// identical in both modes.
	IsParallel bool `yaml:"is_parallel" json:"is_parallel"`
}

// AppliesTo reports whether the template may be used for the given content
// type.
func (t *WorkflowTemplate) AppliesTo(contentType string) bool {
	for _, ct := range t.ApplicableContentTypes {
		if ct == contentType {
			return true
		}
	}
	return false
}

// Materialize builds the workflow step instances for a new workflow from the
// template's definitions, ordered by Order. All steps start pending; the
// engine promotes step 0 to in_progress at creation.
func (t *WorkflowTemplate) Materialize() []Step {
	steps := make([]Step, len(t.Steps))
	for _, def := range t.Steps {
		steps[def.Order] = Step{
			ID:                def.ID,
			Name:              def.Name,
			Description:       def.Description,
			RequiredApprovals: def.RequiredApprovals,
			AssignedUserIDs:   append([]string(nil), def.AssignedUserIDs...),
			Order:             def.Order,
			IsParallel:        def.IsParallel,
			Approvals:         []Approval{},
			Status:            StepStatusPending,
		}
	}
	return steps
}
