package engine

import (
	"fmt"
	"strings"
)

// ValidationError reports bad caller input. Fields maps field name to the
// reason it was rejected.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for k, v := range e.Fields {
		parts = append(parts, k+": "+v)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func validationErr(field, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

// InvalidTransitionError reports an operation applied to an entity whose
// current status does not permit it.
type InvalidTransitionError struct {
	Entity  string
	ID      string
	Current string
	Op      string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s %s: cannot %s while %s", e.Entity, e.ID, e.Op, e.Current)
}

// AuthorizationError reports an actor acting outside their authority.
type AuthorizationError struct {
	ActorID string
	Reason  string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("actor %s not authorized: %s", e.ActorID, e.Reason)
}
