package veto

import (
	"fmt"
	"strings"
)

// ValidationError reports malformed or out-of-range input. Always
// caller-fixable.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an absent referenced entity.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// InvalidStateError reports a state-gate violation: the operation is not
// allowed while the session is in its current status.
type InvalidStateError struct {
	Operation     string
	CurrentStatus Status
	Allowed       []Status
}

func (e *InvalidStateError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = string(s)
	}
	return fmt.Sprintf("%s not allowed in status %s (allowed: %s)",
		e.Operation, e.CurrentStatus, strings.Join(allowed, ", "))
}

// CapacityError reports that all player slots are taken.
type CapacityError struct {
	Limit int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("session already has %d players", e.Limit)
}

// DuplicateError reports a value that must be unique but already exists.
type DuplicateError struct {
	Field string
	Value string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Field, e.Value)
}

// CollisionError reports a generated-token collision that persisted after
// the internal retry. Astronomically rare.
type CollisionError struct {
	Field string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("could not generate a unique %s", e.Field)
}
