// Package engine implements the content approval state machine: workflow
// creation from templates, approval action processing, and the durable audit
// trail behind it.
package engine

import (
	"context"

	"github.com/pitabwire/greenlight/model"
)

// WorkflowStore persists workflows and their audit events.
type WorkflowStore interface {
	// Create persists a new workflow.
	Create(ctx context.Context, w model.Workflow) error

	// Get retrieves a workflow by ID, scoped to a tenant. Returns NOT_FOUND
	// if the workflow doesn't exist or belongs to a different tenant.
	Get(ctx context.Context, tenantID, workflowID string) (model.Workflow, error)

	// Update persists an updated workflow with optimistic locking. The
	// version must match the current stored version. Returns CONFLICT if the
	// version has changed.
	Update(ctx context.Context, w model.Workflow) error

	// AppendEvent adds an event to the workflow's audit trail.
	AppendEvent(ctx context.Context, event model.AuditEvent) error

	// GetEvents retrieves all events for a workflow ordered by timestamp,
	// scoped to a tenant.
	GetEvents(ctx context.Context, tenantID, workflowID string) ([]model.AuditEvent, error)

	// FindForUser returns workflows visible to a user: those they submitted
	// plus those whose current step lists them as an assignee. Results are
	// ordered by submission time, newest first.
	FindForUser(ctx context.Context, tenantID, userID string, filters ListFilters) ([]model.Workflow, int, error)

	// Delete removes a workflow and its events.
	Delete(ctx context.Context, tenantID, workflowID string) error
}

// ListFilters are optional filters for FindForUser. Limit and Offset of zero
// mean no pagination.
type ListFilters struct {
	Status      string
	ContentType string
	Limit       int
	Offset      int
}
