package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pitabwire/greenlight/internal/audit"
	"github.com/pitabwire/greenlight/internal/query"
	"github.com/pitabwire/greenlight/internal/template"
	"github.com/pitabwire/greenlight/model"
)

const defaultUrgencyWindow = 48 * time.Hour

// Engine manages the lifecycle of approval workflows. All mutations of a
// given workflow serialize on a per-workflow lock, with the store's
// optimistic version check as a second line of defence.
type Engine struct {
	templates     template.Store
	store         WorkflowStore
	sink          audit.Sink
	logger        *zap.Logger
	locks         *lockTable
	urgencyWindow time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithUrgencyWindow overrides how close a due date must be for a workflow to
// be flagged urgent in listings.
func WithUrgencyWindow(window time.Duration) Option {
	return func(e *Engine) {
		if window > 0 {
			e.urgencyWindow = window
		}
	}
}

// NewEngine creates a new approval engine.
func NewEngine(templates template.Store, store WorkflowStore, sink audit.Sink, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		templates:     templates,
		store:         store,
		sink:          sink,
		logger:        logger,
		locks:         newLockTable(),
		urgencyWindow: defaultUrgencyWindow,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateWorkflowParams describe a new approval workflow.
type CreateWorkflowParams struct {
	ContentID    string
	ContentTitle string
	ContentType  string

	// TemplateID selects the template; empty means the default template for
	// ContentType.
	TemplateID string

	DueDate *time.Time
}

// CreateWorkflow materializes a workflow from a template. The new workflow
// starts pending with step 0 in progress.
func (e *Engine) CreateWorkflow(ctx context.Context, rctx *model.RequestContext, params CreateWorkflowParams) (model.Workflow, error) {
	if params.ContentID == "" {
		return model.Workflow{}, model.NewBadRequestError("content_id is required")
	}
	if params.ContentType == "" {
		return model.Workflow{}, model.NewBadRequestError("content_type is required")
	}

	var tpl model.WorkflowTemplate
	var err error
	if params.TemplateID != "" {
		tpl, err = e.templates.Get(ctx, rctx.TenantID, params.TemplateID)
	} else {
		tpl, err = e.templates.Default(ctx, rctx.TenantID, params.ContentType)
	}
	if err != nil {
		return model.Workflow{}, err
	}

	if !tpl.AppliesTo(params.ContentType) {
		return model.Workflow{}, model.NewTemplateMismatchError(params.ContentType, tpl.ID)
	}

	// Stored templates were validated on the way in; re-check anyway so a
	// corrupt row can never materialize an unfinishable workflow.
	if err := template.Validate(tpl); err != nil {
		return model.Workflow{}, err
	}

	now := time.Now().UTC()
	w := model.Workflow{
		ID:               uuid.NewString(),
		TenantID:         rctx.TenantID,
		ContentID:        params.ContentID,
		ContentTitle:     params.ContentTitle,
		ContentType:      params.ContentType,
		TemplateID:       tpl.ID,
		Steps:            tpl.Materialize(),
		CurrentStepIndex: 0,
		Status:           model.WorkflowStatusPending,
		SubmittedBy:      rctx.SubjectID,
		SubmittedAt:      now,
		UpdatedAt:        now,
		DueDate:          params.DueDate,
		Version:          1,
	}
	w.Steps[0].Status = model.StepStatusInProgress

	if err := e.store.Create(ctx, w); err != nil {
		return model.Workflow{}, err
	}

	event := model.AuditEvent{
		ID:          uuid.NewString(),
		TenantID:    w.TenantID,
		WorkflowID:  w.ID,
		StepID:      w.Steps[0].ID,
		ActorID:     rctx.SubjectID,
		ActorName:   rctx.DisplayName,
		Event:       model.EventWorkflowCreated,
		AfterStatus: w.Status,
		Timestamp:   now,
	}
	if err := e.store.AppendEvent(ctx, event); err != nil {
		return model.Workflow{}, err
	}
	e.notify(event)

	e.logger.Info("workflow created",
		zap.String("workflow_id", w.ID),
		zap.String("template_id", tpl.ID),
		zap.String("content_type", w.ContentType),
		zap.String("tenant_id", w.TenantID),
		zap.Int("steps", len(w.Steps)),
	)
	return w, nil
}

// RecordAction applies one actor's decision to a workflow step. Calls against
// the same workflow serialize; each precondition failure maps to a distinct
// error code so the caller can surface a specific message.
func (e *Engine) RecordAction(
	ctx context.Context,
	rctx *model.RequestContext,
	workflowID, stepID string,
	action model.ApprovalAction,
	comment string,
) (model.Workflow, error) {
	if !action.Valid() {
		return model.Workflow{}, model.NewBadRequestError(
			fmt.Sprintf("unknown action %q", action),
		)
	}

	release := e.locks.acquire(workflowID)
	defer release()

	w, err := e.store.Get(ctx, rctx.TenantID, workflowID)
	if err != nil {
		return model.Workflow{}, err
	}

	// Precondition checks, in order of specificity.
	if w.Terminal() {
		return model.Workflow{}, model.NewWorkflowTerminalError(w.Status)
	}
	step := w.CurrentStep()
	if step == nil || step.ID != stepID {
		return model.Workflow{}, model.NewStepNotCurrentError(stepID)
	}
	if !step.Assigned(rctx.SubjectID) {
		return model.Workflow{}, model.NewNotAssignedError()
	}
	if step.HasActed(rctx.SubjectID) {
		return model.Workflow{}, model.NewAlreadyActedError()
	}
	if action.RequiresComment() && comment == "" {
		return model.Workflow{}, model.NewCommentRequiredError(action)
	}

	now := time.Now().UTC()
	beforeStatus := w.Status
	stepBefore := step.Clone()

	step.Approvals = append(step.Approvals, model.Approval{
		ID:        uuid.NewString(),
		UserID:    rctx.SubjectID,
		UserName:  rctx.DisplayName,
		Action:    action,
		Comment:   comment,
		Timestamp: now,
	})

	eventType := model.EventApprovalRecorded
	switch action {
	case model.ActionRejected:
		// A single rejection ends the review. The step is closed even though
		// its threshold was not met, and the index freezes where it is.
		step.Status = model.StepStatusCompleted
		w.Status = model.WorkflowStatusRejected
		w.CompletedAt = &now
		eventType = model.EventWorkflowRejected

	case model.ActionRequestedChanges:
		// Advisory feedback: the step stays open and no state advances.
		w.Status = model.WorkflowStatusInProgress
		eventType = model.EventChangesRequested

	case model.ActionApproved:
		w.Status = model.WorkflowStatusInProgress
		if step.ApprovedCount() >= step.RequiredApprovals {
			step.Status = model.StepStatusCompleted
			if w.CurrentStepIndex == len(w.Steps)-1 {
				w.CurrentStepIndex++
				w.Status = model.WorkflowStatusApproved
				w.CompletedAt = &now
				eventType = model.EventWorkflowCompleted
			} else {
				w.CurrentStepIndex++
				w.Steps[w.CurrentStepIndex].Status = model.StepStatusInProgress
				eventType = model.EventStepAdvanced
			}
		}
	}
	w.UpdatedAt = now

	if err := e.store.Update(ctx, w); err != nil {
		return model.Workflow{}, err
	}
	w.Version++

	stepAfter := w.Steps[stepBefore.Order].Clone()
	event := model.AuditEvent{
		ID:           uuid.NewString(),
		TenantID:     w.TenantID,
		WorkflowID:   w.ID,
		StepID:       stepID,
		ActorID:      rctx.SubjectID,
		ActorName:    rctx.DisplayName,
		Event:        eventType,
		Action:       action,
		Comment:      comment,
		BeforeStatus: beforeStatus,
		AfterStatus:  w.Status,
		StepBefore:   &stepBefore,
		StepAfter:    &stepAfter,
		Timestamp:    now,
	}
	if err := e.store.AppendEvent(ctx, event); err != nil {
		return model.Workflow{}, err
	}
	e.notify(event)

	e.logger.Info("approval action recorded",
		zap.String("workflow_id", w.ID),
		zap.String("step_id", stepID),
		zap.String("actor_id", rctx.SubjectID),
		zap.String("action", string(action)),
		zap.String("status", w.Status),
		zap.Int("current_step_index", w.CurrentStepIndex),
	)
	return w, nil
}

// GetWorkflow retrieves one workflow.
func (e *Engine) GetWorkflow(ctx context.Context, rctx *model.RequestContext, workflowID string) (model.Workflow, error) {
	return e.store.Get(ctx, rctx.TenantID, workflowID)
}

// GetHistory returns the workflow's audit trail, oldest first.
func (e *Engine) GetHistory(ctx context.Context, rctx *model.RequestContext, workflowID string) ([]model.AuditEvent, error) {
	return e.store.GetEvents(ctx, rctx.TenantID, workflowID)
}

// ListWorkflows returns summaries of the workflows visible to a user, newest
// first, along with the total match count before pagination.
func (e *Engine) ListWorkflows(ctx context.Context, rctx *model.RequestContext, userID string, filters model.WorkflowFilters) ([]model.WorkflowSummary, int, error) {
	if userID == "" {
		userID = rctx.SubjectID
	}

	storeFilters := ListFilters{
		Status:      filters.Status,
		ContentType: filters.ContentType,
		Limit:       filters.PageSize,
		Offset:      (filters.Page - 1) * filters.PageSize,
	}
	if storeFilters.Limit <= 0 {
		storeFilters.Limit = 20
	}
	if storeFilters.Offset < 0 {
		storeFilters.Offset = 0
	}

	workflows, total, err := e.store.FindForUser(ctx, rctx.TenantID, userID, storeFilters)
	if err != nil {
		return nil, 0, err
	}

	now := time.Now().UTC()
	summaries := make([]model.WorkflowSummary, 0, len(workflows))
	for _, w := range workflows {
		summaries = append(summaries, query.Summarize(w, userID, now, e.urgencyWindow))
	}
	return summaries, total, nil
}

// DeleteWorkflow removes a workflow and its history.
func (e *Engine) DeleteWorkflow(ctx context.Context, rctx *model.RequestContext, workflowID string) error {
	release := e.locks.acquire(workflowID)
	defer release()

	return e.store.Delete(ctx, rctx.TenantID, workflowID)
}

// notify hands the event to the sink without blocking the caller. Sink
// failures are logged and otherwise ignored; the durable trail already holds
// the event.
func (e *Engine) notify(event model.AuditEvent) {
	if e.sink == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.sink.Record(ctx, event); err != nil {
			e.logger.Warn("audit sink delivery failed",
				zap.String("workflow_id", event.WorkflowID),
				zap.String("event", event.Event),
				zap.Error(err),
			)
		}
	}()
}
