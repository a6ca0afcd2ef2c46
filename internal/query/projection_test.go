package query

import (
	"testing"
	"time"

	"github.com/pitabwire/greenlight/model"
)

func twoStepWorkflow() model.Workflow {
	return model.Workflow{
		ID:     "wf-1",
		Status: model.WorkflowStatusInProgress,
		Steps: []model.Step{
			{
				ID:                "step-0",
				RequiredApprovals: 1,
				AssignedUserIDs:   []string{"user-a"},
				Status:            model.StepStatusCompleted,
				Approvals: []model.Approval{
					{UserID: "user-a", Action: model.ActionApproved},
				},
			},
			{
				ID:                "step-1",
				RequiredApprovals: 2,
				AssignedUserIDs:   []string{"user-b", "user-c"},
				Status:            model.StepStatusInProgress,
				Approvals: []model.Approval{
					{UserID: "user-b", Action: model.ActionApproved},
				},
			},
		},
		CurrentStepIndex: 1,
	}
}

func TestProgress(t *testing.T) {
	w := twoStepWorkflow()
	if got := Progress(w); got != 50 {
		t.Errorf("Progress() = %v, want 50", got)
	}

	w.Steps[1].Status = model.StepStatusSkipped
	if got := Progress(w); got != 100 {
		t.Errorf("Progress() with skipped step = %v, want 100", got)
	}

	if got := Progress(model.Workflow{}); got != 0 {
		t.Errorf("Progress() with no steps = %v, want 0", got)
	}
}

func TestStepProgress(t *testing.T) {
	s := twoStepWorkflow().Steps[1]
	if got := StepProgress(s); got != 50 {
		t.Errorf("StepProgress() = %v, want 50", got)
	}

	// Zero threshold never occurs for validated templates; clamp anyway.
	if got := StepProgress(model.Step{RequiredApprovals: 0}); got != 100 {
		t.Errorf("StepProgress() with zero threshold = %v, want 100", got)
	}

	// More approvals than required is capped.
	s.RequiredApprovals = 1
	s.Approvals = append(s.Approvals, model.Approval{UserID: "user-c", Action: model.ActionApproved})
	if got := StepProgress(s); got != 100 {
		t.Errorf("StepProgress() over threshold = %v, want 100", got)
	}
}

func TestRequiresAction(t *testing.T) {
	w := twoStepWorkflow()

	if RequiresAction(w, "user-b") {
		t.Error("user-b already acted, RequiresAction should be false")
	}
	if !RequiresAction(w, "user-c") {
		t.Error("user-c owes a decision, RequiresAction should be true")
	}
	if RequiresAction(w, "user-a") {
		t.Error("user-a is not assigned to the current step")
	}

	// Index past the last step: nothing to act on.
	w.CurrentStepIndex = 2
	if RequiresAction(w, "user-c") {
		t.Error("RequiresAction past the last step should be false")
	}
}

func TestIsUrgent(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	window := 48 * time.Hour

	w := twoStepWorkflow()
	due := now.Add(24 * time.Hour)
	w.DueDate = &due

	if !IsUrgent(w, now, window) {
		t.Error("due within the window with a pending actor should be urgent")
	}

	// Far-off due date.
	far := now.Add(30 * 24 * time.Hour)
	w.DueDate = &far
	if IsUrgent(w, now, window) {
		t.Error("far-off due date should not be urgent")
	}

	// Overdue still counts.
	past := now.Add(-24 * time.Hour)
	w.DueDate = &past
	if !IsUrgent(w, now, window) {
		t.Error("overdue workflow with a pending actor should be urgent")
	}

	// No due date.
	w.DueDate = nil
	if IsUrgent(w, now, window) {
		t.Error("workflow without a due date should not be urgent")
	}

	// Terminal workflows never surface as urgent.
	w.DueDate = &due
	w.Status = model.WorkflowStatusRejected
	if IsUrgent(w, now, window) {
		t.Error("terminal workflow should not be urgent")
	}

	// Everyone already acted on the current step.
	w = twoStepWorkflow()
	w.DueDate = &due
	w.Steps[1].Approvals = append(w.Steps[1].Approvals, model.Approval{UserID: "user-c", Action: model.ActionRequestedChanges})
	if IsUrgent(w, now, window) {
		t.Error("no pending actor means not urgent")
	}
}

func TestPendingActors(t *testing.T) {
	w := twoStepWorkflow()
	got := PendingActors(w)
	if len(got) != 1 || got[0] != "user-c" {
		t.Errorf("PendingActors() = %v, want [user-c]", got)
	}

	w.CurrentStepIndex = 2
	if got := PendingActors(w); got != nil {
		t.Errorf("PendingActors() past the last step = %v, want nil", got)
	}
}

func TestSummarize(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	w := twoStepWorkflow()
	w.Steps[1].Name = "Legal Review"
	due := now.Add(12 * time.Hour)
	w.DueDate = &due

	s := Summarize(w, "user-c", now, 48*time.Hour)
	if s.ID != "wf-1" {
		t.Errorf("ID = %q", s.ID)
	}
	if s.CurrentStepName != "Legal Review" {
		t.Errorf("CurrentStepName = %q", s.CurrentStepName)
	}
	if s.Progress != 50 {
		t.Errorf("Progress = %v, want 50", s.Progress)
	}
	if !s.RequiresAction {
		t.Error("RequiresAction = false, want true for user-c")
	}
	if !s.Urgent {
		t.Error("Urgent = false, want true")
	}

	// Projections are viewer-relative: queries on the same snapshot are
	// stable and differ only by viewer.
	again := Summarize(w, "user-c", now, 48*time.Hour)
	if again != s {
		t.Error("Summarize is not deterministic for the same inputs")
	}
	other := Summarize(w, "user-b", now, 48*time.Hour)
	if other.RequiresAction {
		t.Error("RequiresAction = true for user-b, who already acted")
	}
}
