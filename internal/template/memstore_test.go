package template

import (
	"context"
	"testing"

	"github.com/pitabwire/greenlight/model"
)

func seedTemplate(id, tenantID string, isDefault bool, contentTypes ...string) model.WorkflowTemplate {
	return model.WorkflowTemplate{
		ID:                     id,
		TenantID:               tenantID,
		Name:                   "Template " + id,
		ApplicableContentTypes: contentTypes,
		IsDefault:              isDefault,
		Steps: []model.StepDefinition{
			{ID: id + "-step", Name: "Review", Order: 0, RequiredApprovals: 1, AssignedUserIDs: []string{"user-a"}},
		},
	}
}

func TestMemoryStore_Create_and_Get(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	tpl := seedTemplate("tpl-1", "tenant-1", false, "article")
	if err := store.Create(ctx, tpl); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := store.Get(ctx, "tenant-1", "tpl-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != tpl.Name {
		t.Errorf("Name = %q, want %q", got.Name, tpl.Name)
	}

	if err := store.Create(ctx, tpl); !model.IsCode(err, model.ErrConflict) {
		t.Errorf("duplicate Create() = %v, want CONFLICT", err)
	}
}

func TestMemoryStore_Get_tenant_scoped(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Create(ctx, seedTemplate("tpl-1", "tenant-1", false, "article")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := store.Get(ctx, "tenant-2", "tpl-1"); !model.IsCode(err, model.ErrNotFound) {
		t.Errorf("cross-tenant Get() = %v, want NOT_FOUND", err)
	}
}

func TestMemoryStore_List_filters_by_content_type(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for _, tpl := range []model.WorkflowTemplate{
		seedTemplate("tpl-b", "tenant-1", false, "article", "blog"),
		seedTemplate("tpl-a", "tenant-1", false, "video"),
		seedTemplate("tpl-c", "tenant-2", false, "article"),
	} {
		if err := store.Create(ctx, tpl); err != nil {
			t.Fatalf("Create(%s) error = %v", tpl.ID, err)
		}
	}

	all, err := store.List(ctx, "tenant-1", "")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("List() returned %d templates, want 2", len(all))
	}
	// Ordered by name.
	if all[0].ID != "tpl-a" || all[1].ID != "tpl-b" {
		t.Errorf("List() order = %q, %q", all[0].ID, all[1].ID)
	}

	articles, err := store.List(ctx, "tenant-1", "article")
	if err != nil {
		t.Fatalf("List(article) error = %v", err)
	}
	if len(articles) != 1 || articles[0].ID != "tpl-b" {
		t.Errorf("List(article) = %v, want [tpl-b]", articles)
	}
}

func TestMemoryStore_Default(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Create(ctx, seedTemplate("tpl-default", "tenant-1", true, "article")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.Create(ctx, seedTemplate("tpl-other", "tenant-1", false, "article")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := store.Default(ctx, "tenant-1", "article")
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if got.ID != "tpl-default" {
		t.Errorf("Default() = %q, want tpl-default", got.ID)
	}

	if _, err := store.Default(ctx, "tenant-1", "video"); !model.IsCode(err, model.ErrNotFound) {
		t.Errorf("Default(video) = %v, want NOT_FOUND", err)
	}
}

func TestMemoryStore_single_default_per_content_type(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Create(ctx, seedTemplate("tpl-1", "tenant-1", true, "article")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err := store.Create(ctx, seedTemplate("tpl-2", "tenant-1", true, "article", "video"))
	if !model.IsCode(err, model.ErrConflict) {
		t.Errorf("second default Create() = %v, want CONFLICT", err)
	}

	// A default for a disjoint content type is fine, as is a second default
	// for the same type in a different tenant.
	if err := store.Create(ctx, seedTemplate("tpl-3", "tenant-1", true, "video")); err != nil {
		t.Errorf("disjoint default Create() = %v", err)
	}
	if err := store.Create(ctx, seedTemplate("tpl-4", "tenant-2", true, "article")); err != nil {
		t.Errorf("cross-tenant default Create() = %v", err)
	}
}

func TestMemoryStore_Upsert_replaces(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	tpl := seedTemplate("tpl-1", "tenant-1", false, "article")
	if err := store.Upsert(ctx, tpl); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	tpl.Name = "Renamed"
	if err := store.Upsert(ctx, tpl); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	got, err := store.Get(ctx, "tenant-1", "tpl-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Renamed" {
		t.Errorf("Name = %q, want Renamed", got.Name)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}

	// Upserting the same template as default repeatedly must not clash with
	// itself.
	tpl.IsDefault = true
	if err := store.Upsert(ctx, tpl); err != nil {
		t.Fatalf("default Upsert() error = %v", err)
	}
	if err := store.Upsert(ctx, tpl); err != nil {
		t.Errorf("repeat default Upsert() error = %v", err)
	}
}
