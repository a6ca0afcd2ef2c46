package template

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pitabwire/greenlight/model"
)

// MemoryStore is an in-memory template Store for testing and single-node
// deployments.
type MemoryStore struct {
	mu        sync.RWMutex
	templates map[string]model.WorkflowTemplate // key: template ID
}

// NewMemoryStore creates a new in-memory template store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		templates: make(map[string]model.WorkflowTemplate),
	}
}

// Create persists a new template.
func (s *MemoryStore) Create(_ context.Context, tpl model.WorkflowTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.templates[tpl.ID]; exists {
		return model.NewConflictError(
			fmt.Sprintf("template %q already exists", tpl.ID),
		)
	}
	if err := s.checkDefaultClash(tpl); err != nil {
		return err
	}

	s.templates[tpl.ID] = tpl
	return nil
}

// Upsert creates or replaces a template.
func (s *MemoryStore) Upsert(_ context.Context, tpl model.WorkflowTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkDefaultClash(tpl); err != nil {
		return err
	}
	s.templates[tpl.ID] = tpl
	return nil
}

// checkDefaultClash enforces at most one default template per content type.
// Callers must hold the lock.
func (s *MemoryStore) checkDefaultClash(tpl model.WorkflowTemplate) error {
	if !tpl.IsDefault {
		return nil
	}
	for _, existing := range s.templates {
		if existing.ID == tpl.ID || existing.TenantID != tpl.TenantID || !existing.IsDefault {
			continue
		}
		for _, ct := range tpl.ApplicableContentTypes {
			if existing.AppliesTo(ct) {
				return model.NewConflictError(
					fmt.Sprintf("template %q is already the default for content type %q", existing.ID, ct),
				)
			}
		}
	}
	return nil
}

// Get retrieves a template by ID, scoped to tenant.
func (s *MemoryStore) Get(_ context.Context, tenantID, templateID string) (model.WorkflowTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tpl, exists := s.templates[templateID]
	if !exists || tpl.TenantID != tenantID {
		return model.WorkflowTemplate{}, model.NewNotFoundError(
			fmt.Sprintf("template %q not found", templateID),
		)
	}
	return tpl, nil
}

// List returns templates for a tenant, ordered by name.
func (s *MemoryStore) List(_ context.Context, tenantID, contentType string) ([]model.WorkflowTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []model.WorkflowTemplate{}
	for _, tpl := range s.templates {
		if tpl.TenantID != tenantID {
			continue
		}
		if contentType != "" && !tpl.AppliesTo(contentType) {
			continue
		}
		result = append(result, tpl)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// Default returns the default template for a content type.
func (s *MemoryStore) Default(_ context.Context, tenantID, contentType string) (model.WorkflowTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tpl := range s.templates {
		if tpl.TenantID == tenantID && tpl.IsDefault && tpl.AppliesTo(contentType) {
			return tpl, nil
		}
	}
	return model.WorkflowTemplate{}, model.NewNotFoundError(
		fmt.Sprintf("no default template for content type %q", contentType),
	)
}

// Len returns the total number of templates. For testing.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.templates)
}
