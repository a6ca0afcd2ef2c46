// Package template manages workflow templates: structural validation, storage,
// and seeding from YAML files.
package template

import (
	"context"

	"github.com/pitabwire/greenlight/model"
)

// Store persists workflow templates.
type Store interface {
	// Create persists a new template. Returns CONFLICT if a template with
	// the same ID already exists, or if the template is marked default and
	// another default already covers one of its content types.
	Create(ctx context.Context, tpl model.WorkflowTemplate) error

	// Get retrieves a template by ID, scoped to a tenant. Returns NOT_FOUND
	// if the template doesn't exist or belongs to a different tenant.
	Get(ctx context.Context, tenantID, templateID string) (model.WorkflowTemplate, error)

	// List returns all templates for a tenant, optionally filtered to those
	// applicable to a content type, ordered by name.
	List(ctx context.Context, tenantID, contentType string) ([]model.WorkflowTemplate, error)

	// Default returns the default template for a content type. Returns
	// NOT_FOUND if no default is registered for it.
	Default(ctx context.Context, tenantID, contentType string) (model.WorkflowTemplate, error)

	// Upsert creates the template or replaces an existing one with the same
	// ID. Used by the seed loader; the default-per-content-type rule still
	// applies.
	Upsert(ctx context.Context, tpl model.WorkflowTemplate) error
}
