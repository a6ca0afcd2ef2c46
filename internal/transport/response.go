// Package transport contains the HTTP router, middleware chain, and all
// request handlers for the approval API.
package transport

import (
	"encoding/json"
	"net/http"

	"github.com/pitabwire/greenlight/model"
)

// statusForCode maps ErrorEnvelope codes to HTTP status codes.
var statusForCode = map[string]int{
	model.ErrBadRequest:       http.StatusBadRequest,
	model.ErrUnauthorized:     http.StatusUnauthorized,
	model.ErrForbidden:        http.StatusForbidden,
	model.ErrNotFound:         http.StatusNotFound,
	model.ErrConflict:         http.StatusConflict,
	model.ErrInternalError:    http.StatusInternalServerError,
	model.ErrTemplateMismatch: http.StatusUnprocessableEntity,
	model.ErrInvalidTemplate:  http.StatusUnprocessableEntity,
	model.ErrWorkflowTerminal: http.StatusConflict,
	model.ErrStepNotCurrent:   http.StatusConflict,
	model.ErrNotAssigned:      http.StatusForbidden,
	model.ErrAlreadyActed:     http.StatusConflict,
	model.ErrCommentRequired:  http.StatusUnprocessableEntity,
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// WriteError writes an ErrorEnvelope as a JSON response with the correct
// HTTP status code. If err is not an *ErrorEnvelope, a generic 500 is returned.
func WriteError(w http.ResponseWriter, err error) {
	ee, ok := err.(*model.ErrorEnvelope)
	if !ok {
		ee = model.NewInternalError()
	}

	status := statusForCode[ee.Code]
	if status == 0 {
		status = http.StatusInternalServerError
	}

	type errorResponse struct {
		Error *model.ErrorEnvelope `json:"error"`
	}
	WriteJSON(w, status, errorResponse{Error: ee})
}

// StatusForError returns the HTTP status code that WriteError would use for
// the given error. Handlers use it to cache idempotent responses.
func StatusForError(err error) int {
	if ee, ok := err.(*model.ErrorEnvelope); ok {
		if status := statusForCode[ee.Code]; status != 0 {
			return status
		}
	}
	return http.StatusInternalServerError
}

// WriteNotFound writes a 404 error response.
func WriteNotFound(w http.ResponseWriter, msg string) {
	WriteError(w, model.NewNotFoundError(msg))
}

// WriteBadRequest writes a 400 error response.
func WriteBadRequest(w http.ResponseWriter, msg string) {
	WriteError(w, model.NewBadRequestError(msg))
}
