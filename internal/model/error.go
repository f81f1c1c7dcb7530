package model

import "errors"

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string            `json:"error"`
	Message       string            `json:"message"`
	Fields        map[string]string `json:"fields,omitempty"`
	Location      string            `json:"location,omitempty"`
	CorrelationID string            `json:"correlationId,omitempty"`
}

// Standard error codes
const (
	ErrCodeInvalidJSON          = "INVALID_JSON"
	ErrCodeValidation           = "VALIDATION_FAILED"
	ErrCodeInvalidQuantity      = "INVALID_QUANTITY"
	ErrCodeEmptyCart            = "EMPTY_CART"
	ErrCodeSubmissionInProgress = "SUBMISSION_IN_PROGRESS"
	ErrCodeInvalidTransition    = "INVALID_TRANSITION"
	ErrCodeUnauthorised         = "UNAUTHORIZED"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeNetwork              = "NETWORK_ERROR"
	ErrCodeServer               = "SERVER_ERROR"
	ErrCodeInternalError        = "INTERNAL_ERROR"
)

// DomainError is the single error type that crosses from the core into view state.
type DomainError struct {
	Code    string
	Message string
	// Status is the remote HTTP status, zero when the request never got an answer.
	Status int
	Fields map[string]string
	Err    error
}

func (e *DomainError) Error() string {
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError carries per-field messages.
func NewValidationError(fields map[string]string) *DomainError {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: "Please correct the highlighted fields",
		Fields:  fields,
	}
}

// Common domain errors
var (
	ErrInvalidQuantity      = NewDomainError(ErrCodeInvalidQuantity, "Quantity must be greater than zero")
	ErrEmptyCart            = NewDomainError(ErrCodeEmptyCart, "Your cart is empty")
	ErrSubmissionInProgress = NewDomainError(ErrCodeSubmissionInProgress, "Your order is already being placed")
	ErrInvalidTransition    = NewDomainError(ErrCodeInvalidTransition, "That step is not available right now")
	ErrNotAuthenticated     = NewDomainError(ErrCodeUnauthorised, "Authentication required. Please log in again.")
)

// CodeOf returns the domain code of err, or ErrCodeInternalError.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeInternalError
}

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool {
	return CodeOf(err) == ErrCodeUnauthorised
}

// IsNetwork reports whether err means the request never produced a usable answer.
func IsNetwork(err error) bool {
	return CodeOf(err) == ErrCodeNetwork
}
