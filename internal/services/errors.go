// Package services defines the business logic for lecture discussions.
// This file centralizes the service-level error taxonomy so that handlers
// can translate failures into HTTP results in one place.
//
//   - *ValidationError     -> 400, wraps ErrValidation
//   - ErrDiscussionNotFound / ErrReplyNotFound -> 404, wrap ErrNotFound
//   - *AuthorizationError  -> 403, wraps policy.ErrForbidden
//   - *PersistenceError    -> 500, opaque to clients, cause kept for logs
package services

import (
	"errors"
	"fmt"

	"github.com/tbourn/lecture-discussions/internal/policy"
)

var (
	// ErrValidation is the parent of every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is the parent of the resource-specific not-found errors.
	ErrNotFound = errors.New("not found")

	// ErrDiscussionNotFound indicates that the discussion does not exist
	// (never created, or already deleted).
	ErrDiscussionNotFound = fmt.Errorf("discussion %w", ErrNotFound)

	// ErrReplyNotFound indicates that the reply does not exist under the
	// given discussion.
	ErrReplyNotFound = fmt.Errorf("reply %w", ErrNotFound)
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func required(field string) error {
	return &ValidationError{Field: field, Reason: "is required"}
}

// AuthorizationError reports that the actor lacks the role or ownership the
// action requires. Its message is always "Forbidden".
type AuthorizationError struct {
	Action policy.Action
}

func (e *AuthorizationError) Error() string { return "Forbidden" }

func (e *AuthorizationError) Unwrap() error { return policy.ErrForbidden }

// PersistenceError wraps an unexpected store failure. Only Op reaches
// clients indirectly (as a generic 500); Err is for server-side logs.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: persistence failure: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// isTyped reports whether err already belongs to the taxonomy.
func isTyped(err error) bool {
	var (
		ve *ValidationError
		ae *AuthorizationError
		pe *PersistenceError
	)
	return errors.As(err, &ve) || errors.As(err, &ae) || errors.As(err, &pe) || errors.Is(err, ErrNotFound)
}

// classify leaves taxonomy errors untouched and wraps everything else in a
// PersistenceError.
func classify(op string, err error) error {
	if err == nil || isTyped(err) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// outcome maps an error to the metric label used by discussion_actions_total.
func outcome(err error) string {
	var (
		ve *ValidationError
		ae *AuthorizationError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &ve):
		return "invalid"
	case errors.As(err, &ae):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
