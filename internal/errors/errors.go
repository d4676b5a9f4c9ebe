package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource conflict")
	ErrBadRequest     = errors.New("bad request")
	ErrForbidden      = errors.New("forbidden")
	ErrInternalServer = errors.New("internal server error")

	// Business errors
	ErrRequestAlreadyAssigned = errors.New("request already assigned")
	ErrOfferExpired           = errors.New("offer expired")
	ErrDuplicateOffer         = errors.New("offer already exists for this request and driver")
	ErrInvalidTransition      = errors.New("invalid state transition")
	ErrNoDriversFound         = errors.New("no eligible drivers found")
)

// APIError represents a structured API error
type APIError struct {
	Code       string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates a new API error
func NewAPIError(code, message string, statusCode int) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Common API errors
func NotFound(resource string) *APIError {
	return NewAPIError("not_found", fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func BadRequest(message string) *APIError {
	return NewAPIError("bad_request", message, http.StatusBadRequest)
}

func Validation(message string) *APIError {
	return NewAPIError("validation_failed", message, http.StatusBadRequest)
}

func Conflict(message string) *APIError {
	return NewAPIError("conflict", message, http.StatusConflict)
}

func Forbidden(message string) *APIError {
	return NewAPIError("forbidden", message, http.StatusForbidden)
}

func InternalError(message string) *APIError {
	return NewAPIError("internal_error", message, http.StatusInternalServerError)
}

// OfferNoLongerAvailable is the business outcome of losing an accept race.
// The caller should refresh the inbox, not resubmit.
func OfferNoLongerAvailable() *APIError {
	return NewAPIError("offer_no_longer_available", "this offer is no longer available", http.StatusConflict)
}

func OfferExpired() *APIError {
	return NewAPIError("offer_expired", "this offer has expired", http.StatusGone)
}

func InvalidTransition(from, to string) *APIError {
	return NewAPIError("invalid_transition", fmt.Sprintf("cannot transition from %s to %s", from, to), http.StatusBadRequest)
}
