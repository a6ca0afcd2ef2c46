package model

import "fmt"

// Standard error codes.
const (
	ErrBadRequest    = "BAD_REQUEST"
	ErrUnauthorized  = "UNAUTHORIZED"
	ErrForbidden     = "FORBIDDEN"
	ErrNotFound      = "NOT_FOUND"
	ErrConflict      = "CONFLICT"
	ErrInternalError = "INTERNAL_ERROR"
)

// Approval-engine error codes. Every precondition violation in the state
// machine maps to exactly one of these, so callers can re-prompt the actor
// with a specific, actionable message.
const (
	ErrTemplateMismatch = "TEMPLATE_MISMATCH"
	ErrInvalidTemplate  = "INVALID_TEMPLATE"
	ErrWorkflowTerminal = "WORKFLOW_TERMINAL"
	ErrStepNotCurrent   = "STEP_NOT_CURRENT"
	ErrNotAssigned      = "NOT_ASSIGNED"
	ErrAlreadyActed     = "ALREADY_ACTED"
	ErrCommentRequired  = "COMMENT_REQUIRED"
)

// Template validation detail codes, carried as FieldError codes inside an
// INVALID_TEMPLATE envelope.
const (
	ErrDetailEmptySteps           = "EMPTY_STEPS"
	ErrDetailInvalidStepOrder     = "INVALID_STEP_ORDER"
	ErrDetailEmptyAssignment      = "EMPTY_ASSIGNMENT"
	ErrDetailNonPositiveApprovals = "NON_POSITIVE_APPROVALS"
)

// ErrorEnvelope is the standard error response envelope. It implements the
// error interface.
type ErrorEnvelope struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a field-level validation error.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// IsCode reports whether err is an *ErrorEnvelope with the given code.
func IsCode(err error, code string) bool {
	ee, ok := err.(*ErrorEnvelope)
	return ok && ee.Code == code
}

// NewBadRequestError returns a BAD_REQUEST error.
func NewBadRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBadRequest, Message: msg}
}

// NewUnauthorizedError returns an UNAUTHORIZED error.
func NewUnauthorizedError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrUnauthorized, Message: msg}
}

// NewForbiddenError returns a FORBIDDEN error.
func NewForbiddenError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrForbidden, Message: msg}
}

// NewNotFoundError returns a NOT_FOUND error.
func NewNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrNotFound, Message: msg}
}

// NewConflictError returns a CONFLICT error.
func NewConflictError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrConflict, Message: msg}
}

// NewInternalError returns an INTERNAL_ERROR.
func NewInternalError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInternalError,
		Message: "An unexpected error occurred",
	}
}

// NewTemplateMismatchError returns a TEMPLATE_MISMATCH error.
func NewTemplateMismatchError(contentType, templateID string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code: ErrTemplateMismatch,
		Message: fmt.Sprintf("Template %q does not apply to content type %q",
			templateID, contentType),
	}
}

// NewInvalidTemplateError returns an INVALID_TEMPLATE error with field-level
// details describing each violated rule.
func NewInvalidTemplateError(details []FieldError) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInvalidTemplate,
		Message: "The workflow template definition is invalid",
		Details: details,
	}
}

// NewWorkflowTerminalError returns a WORKFLOW_TERMINAL error.
func NewWorkflowTerminalError(status string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrWorkflowTerminal,
		Message: fmt.Sprintf("This workflow is already %s and accepts no further actions", status),
	}
}

// NewStepNotCurrentError returns a STEP_NOT_CURRENT error.
func NewStepNotCurrentError(stepID string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrStepNotCurrent,
		Message: fmt.Sprintf("Step %q is not the current step; only the current step accepts actions", stepID),
	}
}

// NewNotAssignedError returns a NOT_ASSIGNED error.
func NewNotAssignedError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrNotAssigned,
		Message: "You are not assigned to this step",
	}
}

// NewAlreadyActedError returns an ALREADY_ACTED error.
func NewAlreadyActedError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrAlreadyActed,
		Message: "You have already recorded a decision on this step",
	}
}

// NewCommentRequiredError returns a COMMENT_REQUIRED error.
func NewCommentRequiredError(action ApprovalAction) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrCommentRequired,
		Message: fmt.Sprintf("A comment is required to %s content", commentVerb(action)),
	}
}

func commentVerb(action ApprovalAction) string {
	if action == ActionRequestedChanges {
		return "request changes to"
	}
	return "reject"
}
