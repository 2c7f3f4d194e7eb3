package workflow

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/taalam/backend/internal/models"
)

// FieldError names the offending field and why it failed.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError reports structural failures in the input. No state is
// mutated when one is returned; the caller fixes the input and retries.
type ValidationError struct {
	Violations []FieldError `json:"violations"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// add appends a violation and returns the error for chaining.
func (e *ValidationError) add(field, reason string) *ValidationError {
	e.Violations = append(e.Violations, FieldError{Field: field, Reason: reason})
	return e
}

func (e *ValidationError) empty() bool { return len(e.Violations) == 0 }

// invalid builds a single-violation ValidationError.
func invalid(field, reason string) *ValidationError {
	return &ValidationError{Violations: []FieldError{{Field: field, Reason: reason}}}
}

// AuthorizationError means the actor's role does not own the attempted
// transition. Never downgraded to a no-op.
type AuthorizationError struct {
	Role     models.Role
	Required models.Role
	Action   string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("role %q cannot perform %s (requires %q)", e.Role, e.Action, e.Required)
}

// StateConflictError means the question changed between read and write.
// The caller should re-read and re-evaluate; it is never retried blindly.
type StateConflictError struct {
	QuestionID uuid.UUID
	Version    int64
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("question %s was modified concurrently (version %d is stale)", e.QuestionID, e.Version)
}

// NotFoundError means an entity ID did not resolve.
type NotFoundError struct {
	Kind string
	ID   uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}
