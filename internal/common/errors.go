package common

import (
	"errors"
	"net/http"
)

// Business logic errors
var (
	// General errors
	ErrNotFound  = errors.New("resource not found")
	ErrForbidden = errors.New("forbidden")

	// Auth errors
	ErrUnauthorized = errors.New("unauthorized")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")

	// Versioning errors
	ErrOwnerNotFound          = errors.New("content owner not found")
	ErrVersionNotFound        = errors.New("content version not found")
	ErrConcurrentModification = errors.New("content version was modified concurrently")
	ErrIntegrityViolation     = errors.New("version integrity violation")

	// Workflow errors
	ErrInvalidTransition   = errors.New("invalid workflow transition")
	ErrForbiddenTransition = errors.New("transition not allowed for user roles")
	ErrIncompleteContent   = errors.New("content is incomplete for publishing")
	ErrWorkflowConfig      = errors.New("workflow configuration error")
)

// StatusForError maps a service error to the HTTP status the API renders
func StatusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrForbiddenTransition), errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrOwnerNotFound), errors.Is(err, ErrVersionNotFound), errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConcurrentModification):
		return http.StatusConflict
	default:
		// ErrWorkflowConfig, ErrIntegrityViolation, persistence failures
		return http.StatusInternalServerError
	}
}
