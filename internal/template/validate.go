package template

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pitabwire/greenlight/model"
)

// Validate checks a template's step definitions. It returns an
// INVALID_TEMPLATE error carrying one FieldError per violated rule, or nil
// when the template is well formed.
func Validate(tpl model.WorkflowTemplate) error {
	var details []model.FieldError

	if len(tpl.Steps) == 0 {
		details = append(details, model.FieldError{
			Field:   "steps",
			Code:    model.ErrDetailEmptySteps,
			Message: "a template must define at least one step",
		})
		return model.NewInvalidTemplateError(details)
	}

	// Orders must be a contiguous 0..N-1 permutation.
	seen := make(map[int]bool, len(tpl.Steps))
	for i, def := range tpl.Steps {
		if def.Order < 0 || def.Order >= len(tpl.Steps) || seen[def.Order] {
			details = append(details, model.FieldError{
				Field:   fmt.Sprintf("steps[%d].order", i),
				Code:    model.ErrDetailInvalidStepOrder,
				Message: fmt.Sprintf("step orders must be unique and contiguous from 0 to %d", len(tpl.Steps)-1),
			})
		}
		seen[def.Order] = true

		if len(def.AssignedUserIDs) == 0 {
			details = append(details, model.FieldError{
				Field:   fmt.Sprintf("steps[%d].assigned_user_ids", i),
				Code:    model.ErrDetailEmptyAssignment,
				Message: "every step needs at least one assigned user",
			})
		}
		if def.RequiredApprovals < 1 {
			details = append(details, model.FieldError{
				Field:   fmt.Sprintf("steps[%d].required_approvals", i),
				Code:    model.ErrDetailNonPositiveApprovals,
				Message: "required_approvals must be at least 1",
			})
		}
	}

	if len(details) > 0 {
		return model.NewInvalidTemplateError(details)
	}
	return nil
}

// New validates and assembles a template ready for persistence. Blank step
// IDs are filled with generated UUIDs; a blank template ID gets one too.
func New(tpl model.WorkflowTemplate, tenantID, createdBy string) (model.WorkflowTemplate, error) {
	if tpl.Name == "" {
		return model.WorkflowTemplate{}, model.NewBadRequestError("template name is required")
	}
	if len(tpl.ApplicableContentTypes) == 0 {
		return model.WorkflowTemplate{}, model.NewBadRequestError("at least one applicable content type is required")
	}
	if err := Validate(tpl); err != nil {
		return model.WorkflowTemplate{}, err
	}

	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	for i := range tpl.Steps {
		if tpl.Steps[i].ID == "" {
			tpl.Steps[i].ID = uuid.NewString()
		}
	}

	now := time.Now().UTC()
	tpl.TenantID = tenantID
	tpl.CreatedBy = createdBy
	tpl.Version = 1
	tpl.CreatedAt = now
	tpl.UpdatedAt = now
	return tpl, nil
}
