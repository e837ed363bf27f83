package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies workflow failures for caller handling.
type ErrorKind string

// Workflow error kinds.
const (
	// KindPermissionDenied: the actor lacks the privilege required for the
	// transition.
	KindPermissionDenied ErrorKind = "permission_denied"
	// KindInvalidState: the transition is not legal from the entity's
	// current state (disposing twice, clearing before issuance).
	KindInvalidState ErrorKind = "invalid_state"
	// KindValidation: required input is missing or empty (reason, signature,
	// changed-field set).
	KindValidation ErrorKind = "validation_error"
	// KindConflictingIdentity: a serial-number collision with another device.
	KindConflictingIdentity ErrorKind = "conflicting_identity"
	// KindConflictingState: a second active agreement would be created.
	KindConflictingState ErrorKind = "conflicting_state"
)

// Error is a classified workflow error. Every state-mutating operation fails
// atomically: when an Error is returned, no entity was modified.
type Error struct {
	Kind    ErrorKind
	Entity  EntityType
	ID      string
	Message string
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s: %s %s: %s", e.Kind, e.Entity, e.ID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Errorf builds a classified error with a formatted message.
func Errorf(kind ErrorKind, entity EntityType, id, format string, args ...any) *Error {
	return &Error{Kind: kind, Entity: entity, ID: id, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the ErrorKind from err, or "" when err is not a classified
// workflow error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is a classified workflow error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// ErrNotFound is returned when an entity lookup inside a transaction fails.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}
