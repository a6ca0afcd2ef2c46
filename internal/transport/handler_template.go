package transport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pitabwire/greenlight/internal/observability"
	"github.com/pitabwire/greenlight/internal/template"
	"github.com/pitabwire/greenlight/model"
)

func handleTemplateCreate(store template.Store, metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}

		var body model.WorkflowTemplate
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		tpl, err := template.New(body, rctx.TenantID, rctx.SubjectID)
		if err != nil {
			recordValidationFailures(metrics, err)
			WriteError(w, err)
			return
		}

		if err := store.Create(r.Context(), tpl); err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, tpl)
	}
}

func handleTemplateList(store template.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}

		contentType := r.URL.Query().Get("content_type")
		templates, err := store.List(r.Context(), rctx.TenantID, contentType)
		if err != nil {
			WriteError(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, map[string]any{
			"data":        templates,
			"total_count": len(templates),
		})
	}
}

func handleTemplateGet(store template.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}
		templateID := chi.URLParam(r, "templateId")

		tpl, err := store.Get(r.Context(), rctx.TenantID, templateID)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, tpl)
	}
}

// recordValidationFailures counts each violated template rule.
func recordValidationFailures(metrics *observability.Metrics, err error) {
	if metrics == nil {
		return
	}
	ee, ok := err.(*model.ErrorEnvelope)
	if !ok || ee.Code != model.ErrInvalidTemplate {
		return
	}
	for _, detail := range ee.Details {
		metrics.RecordTemplateValidationFailure(detail.Code)
	}
}
