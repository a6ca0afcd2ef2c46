package transport

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pitabwire/greenlight/internal/engine"
	"github.com/pitabwire/greenlight/internal/observability"
	"github.com/pitabwire/greenlight/model"
)

const maxBodySize = 1 << 20

func handleWorkflowCreate(eng *engine.Engine, metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}

		var body struct {
			ContentID    string     `json:"content_id"`
			ContentTitle string     `json:"content_title"`
			ContentType  string     `json:"content_type"`
			TemplateID   string     `json:"template_id"`
			DueDate      *time.Time `json:"due_date"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		wf, err := eng.CreateWorkflow(r.Context(), rctx, engine.CreateWorkflowParams{
			ContentID:    body.ContentID,
			ContentTitle: body.ContentTitle,
			ContentType:  body.ContentType,
			TemplateID:   body.TemplateID,
			DueDate:      body.DueDate,
		})
		if err != nil {
			WriteError(w, err)
			return
		}

		if metrics != nil {
			metrics.RecordWorkflowCreate(wf.TemplateID, wf.ContentType)
		}
		WriteJSON(w, http.StatusCreated, wf)
	}
}

func handleWorkflowAction(eng *engine.Engine, idem engine.IdempotencyStore, ttl time.Duration, metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}
		workflowID := chi.URLParam(r, "workflowId")

		raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			WriteError(w, model.NewBadRequestError("failed to read request body"))
			return
		}

		var body struct {
			StepID  string `json:"step_id"`
			Action  string `json:"action"`
			Comment string `json:"comment"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		// A client retrying with the same key and payload gets the original
		// response back; the same key with a different payload is a conflict.
		clientKey := r.Header.Get("X-Idempotency-Key")
		var idemKey, inputHash string
		if clientKey != "" && idem != nil {
			idemKey = engine.FormatIdempotencyKey("action:"+workflowID+":"+rctx.SubjectID, clientKey)
			inputHash = engine.HashInput(raw)

			cached, found, err := idem.Check(r.Context(), idemKey, inputHash)
			if err != nil {
				WriteError(w, err)
				return
			}
			if found {
				if metrics != nil {
					metrics.RecordIdempotencyHit()
				}
				WriteJSON(w, cached.StatusCode, json.RawMessage(cached.Body))
				return
			}
		}

		action := model.ApprovalAction(body.Action)
		wf, err := eng.RecordAction(r.Context(), rctx, workflowID, body.StepID, action, body.Comment)
		if err != nil {
			if metrics != nil {
				metrics.RecordWorkflowAction(body.Action, errorCode(err))
			}
			WriteError(w, err)
			return
		}

		if metrics != nil {
			metrics.RecordWorkflowAction(body.Action, "accepted")
			if wf.Terminal() {
				metrics.RecordWorkflowCompletion(wf.ContentType, wf.Status)
			}
		}

		if idemKey != "" {
			var buf bytes.Buffer
			if encodeErr := json.NewEncoder(&buf).Encode(wf); encodeErr == nil {
				_ = idem.Store(r.Context(), idemKey, inputHash, engine.CachedResponse{
					StatusCode: http.StatusOK,
					Body:       json.RawMessage(buf.Bytes()),
				}, ttl)
			}
		}

		WriteJSON(w, http.StatusOK, wf)
	}
}

func handleWorkflowGet(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}
		workflowID := chi.URLParam(r, "workflowId")

		wf, err := eng.GetWorkflow(r.Context(), rctx, workflowID)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, wf)
	}
}

func handleWorkflowHistory(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}
		workflowID := chi.URLParam(r, "workflowId")

		events, err := eng.GetHistory(r.Context(), rctx, workflowID)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"data":        events,
			"total_count": len(events),
		})
	}
}

func handleWorkflowList(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}

		userID := r.URL.Query().Get("user_id")
		filters := model.WorkflowFilters{
			Status:      r.URL.Query().Get("status"),
			ContentType: r.URL.Query().Get("content_type"),
			Page:        queryInt(r, "page", 1),
			PageSize:    queryInt(r, "page_size", 20),
		}

		summaries, totalCount, err := eng.ListWorkflows(r.Context(), rctx, userID, filters)
		if err != nil {
			WriteError(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, map[string]any{
			"data":        summaries,
			"total_count": totalCount,
			"page":        filters.Page,
			"page_size":   filters.PageSize,
		})
	}
}

func handleWorkflowDelete(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}
		workflowID := chi.URLParam(r, "workflowId")

		if err := eng.DeleteWorkflow(r.Context(), rctx, workflowID); err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// --- helpers ---

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func errorCode(err error) string {
	if ee, ok := err.(*model.ErrorEnvelope); ok {
		return ee.Code
	}
	return model.ErrInternalError
}
