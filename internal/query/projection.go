// Package query provides pure read-side projections over workflow snapshots.
// Every function is side-effect free and safe to call concurrently.
package query

import (
	"time"

	"github.com/pitabwire/greenlight/model"
)

// Progress returns the percentage of steps that are completed or skipped.
func Progress(w model.Workflow) float64 {
	if len(w.Steps) == 0 {
		return 0
	}
	done := 0
	for _, s := range w.Steps {
		if s.Status == model.StepStatusCompleted || s.Status == model.StepStatusSkipped {
			done++
		}
	}
	return float64(done) / float64(len(w.Steps)) * 100
}

// StepProgress returns the percentage of required approvals a step has
// collected, capped at 100.
func StepProgress(s model.Step) float64 {
	if s.RequiredApprovals <= 0 {
		return 100
	}
	pct := float64(s.ApprovedCount()) / float64(s.RequiredApprovals) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// RequiresAction reports whether userID still owes a decision on the
// workflow's current step.
func RequiresAction(w model.Workflow, userID string) bool {
	step := w.CurrentStep()
	if step == nil || step.Status == model.StepStatusCompleted {
		return false
	}
	return step.Assigned(userID) && !step.HasActed(userID)
}

// IsUrgent reports whether the workflow's due date falls within the urgency
// window (overdue included) while at least one assigned actor still owes a
// decision.
func IsUrgent(w model.Workflow, now time.Time, window time.Duration) bool {
	if w.DueDate == nil || w.Terminal() {
		return false
	}
	if w.DueDate.Sub(now) > window {
		return false
	}
	step := w.CurrentStep()
	if step == nil {
		return false
	}
	for _, userID := range step.AssignedUserIDs {
		if RequiresAction(w, userID) {
			return true
		}
	}
	return false
}

// PendingActors returns the assigned users on the current step who have not
// yet acted, in assignment order.
func PendingActors(w model.Workflow) []string {
	step := w.CurrentStep()
	if step == nil || step.Status == model.StepStatusCompleted {
		return nil
	}
	var pending []string
	for _, userID := range step.AssignedUserIDs {
		if !step.HasActed(userID) {
			pending = append(pending, userID)
		}
	}
	return pending
}

// Summarize projects a workflow into its list representation for userID.
func Summarize(w model.Workflow, userID string, now time.Time, window time.Duration) model.WorkflowSummary {
	summary := model.WorkflowSummary{
		ID:               w.ID,
		ContentID:        w.ContentID,
		ContentTitle:     w.ContentTitle,
		ContentType:      w.ContentType,
		TemplateID:       w.TemplateID,
		Status:           w.Status,
		CurrentStepIndex: w.CurrentStepIndex,
		SubmittedBy:      w.SubmittedBy,
		SubmittedAt:      w.SubmittedAt,
		UpdatedAt:        w.UpdatedAt,
		DueDate:          w.DueDate,
		Progress:         Progress(w),
		RequiresAction:   RequiresAction(w, userID),
		Urgent:           IsUrgent(w, now, window),
	}
	if step := w.CurrentStep(); step != nil {
		summary.CurrentStepName = step.Name
	}
	return summary
}
