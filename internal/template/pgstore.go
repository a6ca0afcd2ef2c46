package template

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pitabwire/greenlight/model"
)

// PgStore is a PostgreSQL-backed template Store using pgx/v5.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a new PostgreSQL template store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const templateColumns = `id, tenant_id, name, description, content_types, steps,
       is_default, version, created_by, created_at, updated_at`

// Create inserts a new template. A partial unique index on
// (tenant_id, content_type) WHERE is_default enforces the single-default
// rule; the check here exists to surface a readable CONFLICT before the
// constraint fires.
func (s *PgStore) Create(ctx context.Context, tpl model.WorkflowTemplate) error {
	if err := s.checkDefaultClash(ctx, tpl); err != nil {
		return err
	}

	stepsJSON, err := json.Marshal(tpl.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO workflow_templates (`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`,
		tpl.ID, tpl.TenantID, tpl.Name, tpl.Description, tpl.ApplicableContentTypes,
		stepsJSON, tpl.IsDefault, tpl.Version, tpl.CreatedBy, tpl.CreatedAt, tpl.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewConflictError(
			fmt.Sprintf("template %q already exists", tpl.ID),
		)
	}
	return nil
}

// Upsert creates or replaces a template.
func (s *PgStore) Upsert(ctx context.Context, tpl model.WorkflowTemplate) error {
	if err := s.checkDefaultClash(ctx, tpl); err != nil {
		return err
	}

	stepsJSON, err := json.Marshal(tpl.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO workflow_templates (`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			content_types = EXCLUDED.content_types,
			steps = EXCLUDED.steps,
			is_default = EXCLUDED.is_default,
			version = workflow_templates.version + 1,
			updated_at = EXCLUDED.updated_at`,
		tpl.ID, tpl.TenantID, tpl.Name, tpl.Description, tpl.ApplicableContentTypes,
		stepsJSON, tpl.IsDefault, tpl.Version, tpl.CreatedBy, tpl.CreatedAt, tpl.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert template: %w", err)
	}
	return nil
}

func (s *PgStore) checkDefaultClash(ctx context.Context, tpl model.WorkflowTemplate) error {
	if !tpl.IsDefault {
		return nil
	}

	var clashID, clashType string
	err := s.pool.QueryRow(ctx, `
		SELECT id, ct
		FROM workflow_templates, unnest(content_types) AS ct
		WHERE tenant_id = $1 AND is_default AND id <> $2 AND ct = ANY($3)
		LIMIT 1`,
		tpl.TenantID, tpl.ID, tpl.ApplicableContentTypes,
	).Scan(&clashID, &clashType)
	if err == pgx.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check default template: %w", err)
	}
	return model.NewConflictError(
		fmt.Sprintf("template %q is already the default for content type %q", clashID, clashType),
	)
}

// Get retrieves a template by ID, scoped to tenant.
func (s *PgStore) Get(ctx context.Context, tenantID, templateID string) (model.WorkflowTemplate, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+templateColumns+`
		FROM workflow_templates
		WHERE id = $1 AND tenant_id = $2`,
		templateID, tenantID,
	)

	tpl, err := scanTemplate(row)
	if err == pgx.ErrNoRows {
		return model.WorkflowTemplate{}, model.NewNotFoundError(
			fmt.Sprintf("template %q not found", templateID),
		)
	}
	if err != nil {
		return model.WorkflowTemplate{}, fmt.Errorf("query template: %w", err)
	}
	return tpl, nil
}

// List returns templates for a tenant, ordered by name.
func (s *PgStore) List(ctx context.Context, tenantID, contentType string) ([]model.WorkflowTemplate, error) {
	query := `SELECT ` + templateColumns + `
	          FROM workflow_templates
	          WHERE tenant_id = $1`
	args := []any{tenantID}

	if contentType != "" {
		query += " AND $2 = ANY(content_types)"
		args = append(args, contentType)
	}
	query += " ORDER BY name ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	templates := []model.WorkflowTemplate{}
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}

// Default returns the default template for a content type.
func (s *PgStore) Default(ctx context.Context, tenantID, contentType string) (model.WorkflowTemplate, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+templateColumns+`
		FROM workflow_templates
		WHERE tenant_id = $1 AND is_default AND $2 = ANY(content_types)`,
		tenantID, contentType,
	)

	tpl, err := scanTemplate(row)
	if err == pgx.ErrNoRows {
		return model.WorkflowTemplate{}, model.NewNotFoundError(
			fmt.Sprintf("no default template for content type %q", contentType),
		)
	}
	if err != nil {
		return model.WorkflowTemplate{}, fmt.Errorf("query default template: %w", err)
	}
	return tpl, nil
}

// HealthCheck verifies database connectivity.
func (s *PgStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanTemplate(row pgx.Row) (model.WorkflowTemplate, error) {
	var tpl model.WorkflowTemplate
	var stepsJSON []byte

	err := row.Scan(
		&tpl.ID, &tpl.TenantID, &tpl.Name, &tpl.Description, &tpl.ApplicableContentTypes,
		&stepsJSON, &tpl.IsDefault, &tpl.Version, &tpl.CreatedBy, &tpl.CreatedAt, &tpl.UpdatedAt,
	)
	if err != nil {
		return model.WorkflowTemplate{}, err
	}
	if stepsJSON != nil {
		if err := json.Unmarshal(stepsJSON, &tpl.Steps); err != nil {
			return model.WorkflowTemplate{}, fmt.Errorf("unmarshal steps: %w", err)
		}
	}
	return tpl, nil
}
