package template

import (
	"testing"

	"github.com/pitabwire/greenlight/model"
)

func validTemplate() model.WorkflowTemplate {
	return model.WorkflowTemplate{
		ID:                     "tpl-editorial",
		Name:                   "Editorial Review",
		ApplicableContentTypes: []string{"article"},
		Steps: []model.StepDefinition{
			{ID: "review", Name: "Review", Order: 0, RequiredApprovals: 1, AssignedUserIDs: []string{"user-a"}},
			{ID: "signoff", Name: "Sign-off", Order: 1, RequiredApprovals: 2, AssignedUserIDs: []string{"user-b", "user-c"}},
		},
	}
}

func detailCodes(t *testing.T, err error) []string {
	t.Helper()
	ee, ok := err.(*model.ErrorEnvelope)
	if !ok {
		t.Fatalf("error is %T, want *model.ErrorEnvelope", err)
	}
	if ee.Code != model.ErrInvalidTemplate {
		t.Fatalf("Code = %q, want INVALID_TEMPLATE", ee.Code)
	}
	codes := make([]string, len(ee.Details))
	for i, d := range ee.Details {
		codes[i] = d.Code
	}
	return codes
}

func TestValidate_ok(t *testing.T) {
	if err := Validate(validTemplate()); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidate_empty_steps(t *testing.T) {
	tpl := validTemplate()
	tpl.Steps = nil

	codes := detailCodes(t, Validate(tpl))
	if len(codes) != 1 || codes[0] != model.ErrDetailEmptySteps {
		t.Errorf("detail codes = %v, want [EMPTY_STEPS]", codes)
	}
}

func TestValidate_step_order(t *testing.T) {
	cases := []struct {
		name   string
		orders []int
	}{
		{"duplicate", []int{0, 0}},
		{"gap", []int{0, 2}},
		{"negative", []int{-1, 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tpl := validTemplate()
			for i := range tpl.Steps {
				tpl.Steps[i].Order = tc.orders[i]
			}
			codes := detailCodes(t, Validate(tpl))
			found := false
			for _, c := range codes {
				if c == model.ErrDetailInvalidStepOrder {
					found = true
				}
			}
			if !found {
				t.Errorf("detail codes = %v, want INVALID_STEP_ORDER", codes)
			}
		})
	}
}

func TestValidate_empty_assignment(t *testing.T) {
	tpl := validTemplate()
	tpl.Steps[1].AssignedUserIDs = nil

	codes := detailCodes(t, Validate(tpl))
	if len(codes) != 1 || codes[0] != model.ErrDetailEmptyAssignment {
		t.Errorf("detail codes = %v, want [EMPTY_ASSIGNMENT]", codes)
	}
}

func TestValidate_non_positive_approvals(t *testing.T) {
	tpl := validTemplate()
	tpl.Steps[0].RequiredApprovals = 0

	codes := detailCodes(t, Validate(tpl))
	if len(codes) != 1 || codes[0] != model.ErrDetailNonPositiveApprovals {
		t.Errorf("detail codes = %v, want [NON_POSITIVE_APPROVALS]", codes)
	}
}

func TestValidate_collects_all_violations(t *testing.T) {
	tpl := validTemplate()
	tpl.Steps[0].RequiredApprovals = -1
	tpl.Steps[1].AssignedUserIDs = nil
	tpl.Steps[1].Order = 0

	codes := detailCodes(t, Validate(tpl))
	if len(codes) != 3 {
		t.Errorf("detail codes = %v, want 3 entries", codes)
	}
}

func TestNew_fills_ids_and_metadata(t *testing.T) {
	tpl := validTemplate()
	tpl.ID = ""
	tpl.Steps[0].ID = ""

	created, err := New(tpl, "tenant-1", "user-admin")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if created.ID == "" {
		t.Error("ID should be generated")
	}
	if created.Steps[0].ID == "" {
		t.Error("step ID should be generated")
	}
	if created.TenantID != "tenant-1" || created.CreatedBy != "user-admin" {
		t.Errorf("metadata = %q/%q", created.TenantID, created.CreatedBy)
	}
	if created.Version != 1 {
		t.Errorf("Version = %d, want 1", created.Version)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("timestamps should be set")
	}
}

func TestNew_requires_name_and_content_types(t *testing.T) {
	tpl := validTemplate()
	tpl.Name = ""
	if _, err := New(tpl, "tenant-1", "user-admin"); !model.IsCode(err, model.ErrBadRequest) {
		t.Errorf("New() without name = %v, want BAD_REQUEST", err)
	}

	tpl = validTemplate()
	tpl.ApplicableContentTypes = nil
	if _, err := New(tpl, "tenant-1", "user-admin"); !model.IsCode(err, model.ErrBadRequest) {
		t.Errorf("New() without content types = %v, want BAD_REQUEST", err)
	}
}
