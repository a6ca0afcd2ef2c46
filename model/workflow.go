package model

import "time"

// Workflow status constants.
const (
	WorkflowStatusPending    = "pending"
	WorkflowStatusInProgress = "in_progress"
	WorkflowStatusApproved   = "approved"
	WorkflowStatusRejected   = "rejected"
)

// Step status constants.
const (
	StepStatusPending    = "pending"
	StepStatusInProgress = "in_progress"
	StepStatusCompleted  = "completed"
	StepStatusSkipped    = "skipped"
)

// ApprovalAction is the closed set of decisions an actor can record on a
// step. The engine's transition function switches exhaustively over these
// values and rejects anything else.
type ApprovalAction string

// Approval action constants.
const (
	ActionApproved         ApprovalAction = "approved"
	ActionRejected         ApprovalAction = "rejected"
	ActionRequestedChanges ApprovalAction = "requested_changes"
)

// Valid reports whether a is one of the three recognised actions.
func (a ApprovalAction) Valid() bool {
	switch a {
	case ActionApproved, ActionRejected, ActionRequestedChanges:
		return true
	}
	return false
}

// RequiresComment reports whether a comment is mandatory for this action.
// Rejections and change requests must explain themselves.
func (a ApprovalAction) RequiresComment() bool {
	return a == ActionRejected || a == ActionRequestedChanges
}

// Workflow is one content item's full approval journey, materialized from a
// WorkflowTemplate at creation time. Steps are deep copies of the template's
// step definitions, so later template edits never affect in-flight reviews.
type Workflow struct {
	ID           string `json:"id"`
	TenantID     string `json:"tenant_id"`
	ContentID    string `json:"content_id"`
	ContentTitle string `json:"content_title"`
	ContentType  string `json:"content_type"`
	TemplateID   string `json:"template_id"`

	Steps []Step `json:"steps"`

	// CurrentStepIndex is in [0, len(Steps)]. It equals len(Steps) only
	// once every step has completed and the workflow is approved.
	CurrentStepIndex int    `json:"current_step_index"`
	Status           string `json:"status"`

	SubmittedBy string     `json:"submitted_by"`
	SubmittedAt time.Time  `json:"submitted_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`

	// Version supports optimistic locking in the workflow store.
	Version int `json:"version"`
}

// Step is one gate within a Workflow. It carries the definition fields it
// was materialized from plus the approvals recorded so far.
type Step struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Description       string   `json:"description,omitempty"`
	RequiredApprovals int      `json:"required_approvals"`
	AssignedUserIDs   []string `json:"assigned_user_ids"`
	Order             int      `json:"order"`
	IsParallel        bool     `json:"is_parallel"`

	Approvals []Approval `json:"approvals"`
	Status    string     `json:"status"`
}

// Approval is a single actor's recorded decision on a step.
type Approval struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	UserName  string         `json:"user_name"`
	Action    ApprovalAction `json:"action"`
	Comment   string         `json:"comment,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Terminal reports whether the workflow has reached a final state. Terminal
// workflows accept no further mutation.
func (w *Workflow) Terminal() bool {
	return w.Status == WorkflowStatusApproved || w.Status == WorkflowStatusRejected
}

// CurrentStep returns a pointer to the step at CurrentStepIndex, or nil when
// the index is past the last step (fully approved workflow).
func (w *Workflow) CurrentStep() *Step {
	if w.CurrentStepIndex < 0 || w.CurrentStepIndex >= len(w.Steps) {
		return nil
	}
	return &w.Steps[w.CurrentStepIndex]
}

// Clone returns a deep copy of the workflow. Stores hand out clones so that
// callers can never mutate persisted state in place.
func (w Workflow) Clone() Workflow {
	out := w
	out.Steps = make([]Step, len(w.Steps))
	for i, s := range w.Steps {
		out.Steps[i] = s.Clone()
	}
	if w.CompletedAt != nil {
		t := *w.CompletedAt
		out.CompletedAt = &t
	}
	if w.DueDate != nil {
		t := *w.DueDate
		out.DueDate = &t
	}
	return out
}

// Clone returns a deep copy of the step.
func (s Step) Clone() Step {
	out := s
	out.AssignedUserIDs = append([]string(nil), s.AssignedUserIDs...)
	out.Approvals = append([]Approval(nil), s.Approvals...)
	return out
}

// Assigned reports whether userID is eligible to act on this step.
func (s *Step) Assigned(userID string) bool {
	for _, id := range s.AssignedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// HasActed reports whether userID already has an approval record on this
// step. A given user may act at most once per step.
func (s *Step) HasActed(userID string) bool {
	for _, a := range s.Approvals {
		if a.UserID == userID {
			return true
		}
	}
	return false
}

// ApprovedCount returns the number of "approved" actions recorded on the
// step. The step completes once this reaches RequiredApprovals.
func (s *Step) ApprovedCount() int {
	n := 0
	for _, a := range s.Approvals {
		if a.Action == ActionApproved {
			n++
		}
	}
	return n
}

// WorkflowSummary is a lightweight representation of a workflow used in list
// views, annotated with per-viewer projection flags.
type WorkflowSummary struct {
	ID               string     `json:"id"`
	ContentID        string     `json:"content_id"`
	ContentTitle     string     `json:"content_title"`
	ContentType      string     `json:"content_type"`
	TemplateID       string     `json:"template_id"`
	Status           string     `json:"status"`
	CurrentStepIndex int        `json:"current_step_index"`
	CurrentStepName  string     `json:"current_step_name,omitempty"`
	Progress         float64    `json:"progress"`
	RequiresAction   bool       `json:"requires_action"`
	Urgent           bool       `json:"urgent"`
	SubmittedBy      string     `json:"submitted_by"`
	SubmittedAt      time.Time  `json:"submitted_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	DueDate          *time.Time `json:"due_date,omitempty"`
}

// WorkflowFilters are optional filters for listing workflows.
type WorkflowFilters struct {
	Status      string
	ContentType string
	Page        int
	PageSize    int
}
