package model

import (
	"context"
	"strings"
	"testing"
)

func TestRequestContext_Validate(t *testing.T) {
	rc := &RequestContext{SubjectID: "user-1", TenantID: "tenant-1"}
	if err := rc.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	rc = &RequestContext{}
	err := rc.Validate()
	if err == nil {
		t.Fatal("Validate() on empty context should fail")
	}
	if !strings.Contains(err.Error(), "SubjectID") || !strings.Contains(err.Error(), "TenantID") {
		t.Errorf("error should name both missing fields, got %v", err)
	}
}

func TestRequestContext_HasRole(t *testing.T) {
	rc := &RequestContext{Roles: []string{"reviewer", "editor"}}
	if !rc.HasRole("editor") {
		t.Error("HasRole(editor) = false, want true")
	}
	if rc.HasRole("admin") {
		t.Error("HasRole(admin) = true, want false")
	}
}

func TestRequestContext_roundTrip(t *testing.T) {
	rc := &RequestContext{SubjectID: "user-1", TenantID: "tenant-1"}
	ctx := WithRequestContext(context.Background(), rc)
	if got := RequestContextFrom(ctx); got != rc {
		t.Errorf("RequestContextFrom = %+v, want original", got)
	}
	if got := RequestContextFrom(context.Background()); got != nil {
		t.Errorf("RequestContextFrom on bare context = %+v, want nil", got)
	}
}
