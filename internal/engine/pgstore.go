package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pitabwire/greenlight/model"
)

// PgWorkflowStore is a PostgreSQL-backed WorkflowStore using pgx/v5. Steps
// are stored as a jsonb document alongside the indexed scalar columns.
type PgWorkflowStore struct {
	pool *pgxpool.Pool
}

// NewPgWorkflowStore creates a new PostgreSQL workflow store.
func NewPgWorkflowStore(pool *pgxpool.Pool) *PgWorkflowStore {
	return &PgWorkflowStore{pool: pool}
}

const workflowColumns = `id, tenant_id, content_id, content_title, content_type, template_id,
       steps, current_step_index, status, submitted_by,
       submitted_at, updated_at, completed_at, due_date, version`

// Create inserts a new workflow.
func (s *PgWorkflowStore) Create(ctx context.Context, w model.Workflow) error {
	stepsJSON, err := json.Marshal(w.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO workflows (`+workflowColumns+`)
		VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, $14, $15
		)`,
		w.ID, w.TenantID, w.ContentID, w.ContentTitle, w.ContentType, w.TemplateID,
		stepsJSON, w.CurrentStepIndex, w.Status, w.SubmittedBy,
		w.SubmittedAt, w.UpdatedAt, w.CompletedAt, w.DueDate, w.Version,
	)
	if err != nil {
		return fmt.Errorf("insert workflow: %w", err)
	}
	return nil
}

// Get retrieves a workflow by ID, scoped to tenant.
func (s *PgWorkflowStore) Get(ctx context.Context, tenantID, workflowID string) (model.Workflow, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+workflowColumns+`
		FROM workflows
		WHERE id = $1 AND tenant_id = $2`,
		workflowID, tenantID,
	)

	w, err := scanWorkflow(row)
	if err == pgx.ErrNoRows {
		return model.Workflow{}, model.NewNotFoundError(
			fmt.Sprintf("workflow %q not found", workflowID),
		)
	}
	if err != nil {
		return model.Workflow{}, fmt.Errorf("query workflow: %w", err)
	}
	return w, nil
}

// Update persists an updated workflow with optimistic locking.
func (s *PgWorkflowStore) Update(ctx context.Context, w model.Workflow) error {
	stepsJSON, err := json.Marshal(w.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE workflows SET
			steps = $1,
			current_step_index = $2,
			status = $3,
			completed_at = $4,
			version = $5,
			updated_at = $6
		WHERE id = $7 AND version = $8`,
		stepsJSON, w.CurrentStepIndex, w.Status, w.CompletedAt, w.Version+1,
		time.Now().UTC(),
		w.ID, w.Version,
	)
	if err != nil {
		return fmt.Errorf("update workflow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewConflictError(
			fmt.Sprintf("workflow %q version conflict (expected %d)", w.ID, w.Version),
		)
	}
	return nil
}

// AppendEvent adds an event to the workflow audit trail.
func (s *PgWorkflowStore) AppendEvent(ctx context.Context, event model.AuditEvent) error {
	stepBefore, err := marshalStep(event.StepBefore)
	if err != nil {
		return fmt.Errorf("marshal step before: %w", err)
	}
	stepAfter, err := marshalStep(event.StepAfter)
	if err != nil {
		return fmt.Errorf("marshal step after: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO workflow_events (
			id, tenant_id, workflow_id, step_id, actor_id, actor_name,
			event, action, comment, before_status, after_status,
			step_before, step_after, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		event.ID, event.TenantID, event.WorkflowID, event.StepID, event.ActorID, event.ActorName,
		event.Event, event.Action, event.Comment, event.BeforeStatus, event.AfterStatus,
		stepBefore, stepAfter, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert workflow event: %w", err)
	}
	return nil
}

// GetEvents retrieves all events for a workflow, oldest first.
func (s *PgWorkflowStore) GetEvents(ctx context.Context, tenantID, workflowID string) ([]model.AuditEvent, error) {
	// Verify tenant access.
	if _, err := s.Get(ctx, tenantID, workflowID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, workflow_id, step_id, actor_id, actor_name,
		       event, action, comment, before_status, after_status,
		       step_before, step_after, created_at
		FROM workflow_events
		WHERE workflow_id = $1
		ORDER BY created_at ASC`,
		workflowID,
	)
	if err != nil {
		return nil, fmt.Errorf("query workflow events: %w", err)
	}
	defer rows.Close()

	var events []model.AuditEvent
	for rows.Next() {
		var evt model.AuditEvent
		var stepBefore, stepAfter []byte
		if err := rows.Scan(
			&evt.ID, &evt.TenantID, &evt.WorkflowID, &evt.StepID, &evt.ActorID, &evt.ActorName,
			&evt.Event, &evt.Action, &evt.Comment, &evt.BeforeStatus, &evt.AfterStatus,
			&stepBefore, &stepAfter, &evt.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan workflow event: %w", err)
		}
		if stepBefore != nil {
			_ = json.Unmarshal(stepBefore, &evt.StepBefore)
		}
		if stepAfter != nil {
			_ = json.Unmarshal(stepAfter, &evt.StepAfter)
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

// FindForUser returns workflows the user submitted or is assigned to act on.
func (s *PgWorkflowStore) FindForUser(ctx context.Context, tenantID, userID string, filters ListFilters) ([]model.Workflow, int, error) {
	where := `tenant_id = $1
	          AND (submitted_by = $2
	               OR (current_step_index < jsonb_array_length(steps)
	                   AND steps -> current_step_index -> 'assigned_user_ids' ? $2))`
	args := []any{tenantID, userID}
	argIdx := 3

	if filters.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filters.Status)
		argIdx++
	}
	if filters.ContentType != "" {
		where += fmt.Sprintf(" AND content_type = $%d", argIdx)
		args = append(args, filters.ContentType)
		argIdx++
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM workflows WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count workflows: %w", err)
	}

	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE ` + where +
		" ORDER BY submitted_at DESC"
	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filters.Limit)
		argIdx++
	}
	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, filters.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query workflows: %w", err)
	}
	defer rows.Close()

	var workflows []model.Workflow
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan workflow: %w", err)
		}
		workflows = append(workflows, w)
	}
	return workflows, total, rows.Err()
}

// Delete removes a workflow and its events.
func (s *PgWorkflowStore) Delete(ctx context.Context, tenantID, workflowID string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM workflow_events
		WHERE workflow_id = $1 AND tenant_id = $2`,
		workflowID, tenantID,
	)
	if err != nil {
		return fmt.Errorf("delete workflow events: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		DELETE FROM workflows
		WHERE id = $1 AND tenant_id = $2`,
		workflowID, tenantID,
	)
	if err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(
			fmt.Sprintf("workflow %q not found", workflowID),
		)
	}
	return nil
}

// HealthCheck verifies database connectivity.
func (s *PgWorkflowStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanWorkflow(row pgx.Row) (model.Workflow, error) {
	var w model.Workflow
	var stepsJSON []byte

	err := row.Scan(
		&w.ID, &w.TenantID, &w.ContentID, &w.ContentTitle, &w.ContentType, &w.TemplateID,
		&stepsJSON, &w.CurrentStepIndex, &w.Status, &w.SubmittedBy,
		&w.SubmittedAt, &w.UpdatedAt, &w.CompletedAt, &w.DueDate, &w.Version,
	)
	if err != nil {
		return model.Workflow{}, err
	}
	if stepsJSON != nil {
		if err := json.Unmarshal(stepsJSON, &w.Steps); err != nil {
			return model.Workflow{}, fmt.Errorf("unmarshal steps: %w", err)
		}
	}
	return w, nil
}

func marshalStep(step *model.Step) ([]byte, error) {
	if step == nil {
		return nil, nil
	}
	return json.Marshal(step)
}
