package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pitabwire/greenlight/model"
)

// MemoryWorkflowStore is an in-memory WorkflowStore for testing and
// single-node deployments. All reads hand out deep copies.
type MemoryWorkflowStore struct {
	mu        sync.RWMutex
	workflows map[string]model.Workflow    // key: workflow ID
	events    map[string][]model.AuditEvent // key: workflow ID
}

// NewMemoryWorkflowStore creates a new in-memory workflow store.
func NewMemoryWorkflowStore() *MemoryWorkflowStore {
	return &MemoryWorkflowStore{
		workflows: make(map[string]model.Workflow),
		events:    make(map[string][]model.AuditEvent),
	}
}

// Create persists a new workflow.
func (s *MemoryWorkflowStore) Create(_ context.Context, w model.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workflows[w.ID]; exists {
		return model.NewConflictError(
			fmt.Sprintf("workflow %q already exists", w.ID),
		)
	}

	s.workflows[w.ID] = w.Clone()
	return nil
}

// Get retrieves a workflow by ID, scoped to tenant.
func (s *MemoryWorkflowStore) Get(_ context.Context, tenantID, workflowID string) (model.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, exists := s.workflows[workflowID]
	if !exists || w.TenantID != tenantID {
		return model.Workflow{}, model.NewNotFoundError(
			fmt.Sprintf("workflow %q not found", workflowID),
		)
	}
	return w.Clone(), nil
}

// Update persists an updated workflow with optimistic locking.
func (s *MemoryWorkflowStore) Update(_ context.Context, w model.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.workflows[w.ID]
	if !exists {
		return model.NewNotFoundError(
			fmt.Sprintf("workflow %q not found", w.ID),
		)
	}

	// Optimistic lock check.
	if existing.Version != w.Version {
		return model.NewConflictError(
			fmt.Sprintf("workflow %q version conflict (expected %d, got %d)", w.ID, w.Version, existing.Version),
		)
	}

	updated := w.Clone()
	updated.Version++
	updated.UpdatedAt = time.Now().UTC()
	s.workflows[w.ID] = updated
	return nil
}

// AppendEvent adds an event to the workflow's audit trail.
func (s *MemoryWorkflowStore) AppendEvent(_ context.Context, event model.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[event.WorkflowID] = append(s.events[event.WorkflowID], event)
	return nil
}

// GetEvents retrieves all events for a workflow, ordered by timestamp.
func (s *MemoryWorkflowStore) GetEvents(_ context.Context, tenantID, workflowID string) ([]model.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Verify tenant access.
	w, exists := s.workflows[workflowID]
	if !exists || w.TenantID != tenantID {
		return nil, model.NewNotFoundError(
			fmt.Sprintf("workflow %q not found", workflowID),
		)
	}

	events := s.events[workflowID]
	result := make([]model.AuditEvent, len(events))
	copy(result, events)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

// FindForUser returns workflows the user submitted or is assigned to act on.
func (s *MemoryWorkflowStore) FindForUser(_ context.Context, tenantID, userID string, filters ListFilters) ([]model.Workflow, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []model.Workflow
	for _, w := range s.workflows {
		if w.TenantID != tenantID {
			continue
		}
		if !visibleTo(w, userID) {
			continue
		}
		if filters.Status != "" && w.Status != filters.Status {
			continue
		}
		if filters.ContentType != "" && w.ContentType != filters.ContentType {
			continue
		}
		matched = append(matched, w.Clone())
	}

	// Newest submissions first.
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].SubmittedAt.After(matched[j].SubmittedAt)
	})

	total := len(matched)
	if filters.Offset > 0 {
		if filters.Offset >= len(matched) {
			return []model.Workflow{}, total, nil
		}
		matched = matched[filters.Offset:]
	}
	if filters.Limit > 0 && filters.Limit < len(matched) {
		matched = matched[:filters.Limit]
	}

	return matched, total, nil
}

// visibleTo reports whether the workflow appears in userID's list: they
// submitted it, or the current step names them as an assignee.
func visibleTo(w model.Workflow, userID string) bool {
	if w.SubmittedBy == userID {
		return true
	}
	step := w.CurrentStep()
	return step != nil && step.Assigned(userID)
}

// Delete removes a workflow and its events.
func (s *MemoryWorkflowStore) Delete(_ context.Context, tenantID, workflowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, exists := s.workflows[workflowID]
	if !exists || w.TenantID != tenantID {
		return model.NewNotFoundError(
			fmt.Sprintf("workflow %q not found", workflowID),
		)
	}

	delete(s.workflows, workflowID)
	delete(s.events, workflowID)
	return nil
}

// Len returns the total number of workflows. For testing.
func (s *MemoryWorkflowStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.workflows)
}
