package model

import "time"

// Audit event type constants, one per accepted mutation outcome.
const (
	EventWorkflowCreated   = "workflow_created"
	EventApprovalRecorded  = "approval_recorded"
	EventChangesRequested  = "changes_requested"
	EventStepAdvanced      = "workflow_step_advanced"
	EventWorkflowCompleted = "workflow_completed"
	EventWorkflowRejected  = "workflow_rejected"
)

// AuditEvent records a single accepted state transition. One is appended to
// the workflow's durable history and delivered to the notification sink for
// every CreateWorkflow and every accepted RecordAction.
type AuditEvent struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenant_id"`
	WorkflowID string `json:"workflow_id"`
	StepID     string `json:"step_id,omitempty"`
	ActorID    string `json:"actor_id"`
	ActorName  string `json:"actor_name,omitempty"`

	// Event is one of the Event* constants.
	Event string `json:"event"`

	// Action is the approval action that triggered the transition, empty
	// for workflow_created.
	Action  ApprovalAction `json:"action,omitempty"`
	Comment string         `json:"comment,omitempty"`

	BeforeStatus string `json:"before_status"`
	AfterStatus  string `json:"after_status"`

	// StepBefore and StepAfter snapshot the acted-on step around the
	// transition, for audit display and replay.
	StepBefore *Step `json:"step_before,omitempty"`
	StepAfter  *Step `json:"step_after,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}
