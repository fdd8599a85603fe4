package domain

import (
	"errors"
	"fmt"
)

// ErrorKind tags a domain failure. Kinds are themselves errors so callers can
// match them with errors.Is(err, domain.ErrCatBusy).
type ErrorKind string

func (k ErrorKind) Error() string { return string(k) }

// Failure taxonomy returned by the cat registry and mission engine.
const (
	ErrNotFound                      ErrorKind = "not_found"
	ErrValidationFailed              ErrorKind = "validation_failed"
	ErrTargetCountInvalid            ErrorKind = "target_count_invalid"
	ErrCatBusy                       ErrorKind = "cat_busy"
	ErrCatNotFound                   ErrorKind = "cat_not_found"
	ErrMissionAlreadyAssigned        ErrorKind = "mission_already_assigned"
	ErrNotesLockedOnCompletedTarget  ErrorKind = "notes_locked_on_completed_target"
	ErrNotesLockedOnCompletedMission ErrorKind = "notes_locked_on_completed_mission"
	ErrCatAssigned                   ErrorKind = "cat_assigned"
	ErrBreedInvalid                  ErrorKind = "breed_invalid"
	ErrLookupUnavailable             ErrorKind = "lookup_unavailable"
)

// Error is a tagged domain failure.
type Error struct {
	Kind    ErrorKind
	Entity  EntityType
	ID      string
	Message string
	// Err is an optional underlying cause (for example a catalog transport error).
	Err error
}

// NewError builds a tagged failure with a formatted message.
func NewError(kind ErrorKind, entity EntityType, id string, format string, args ...any) *Error {
	return &Error{Kind: kind, Entity: entity, ID: id, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing record of the given entity type.
func NotFound(entity EntityType, id string) *Error {
	return NewError(ErrNotFound, entity, id, "%s %s not found", entity, id)
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.ID != "" {
		return fmt.Sprintf("%s: %s %s", e.Kind, e.Entity, e.ID)
	}
	return string(e.Kind)
}

// Unwrap exposes the kind and the underlying cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Is lets a missing cat also match the generic not-found kind.
func (e *Error) Is(target error) bool {
	return e.Kind == ErrCatNotFound && target == ErrNotFound
}

// KindOf extracts the tag carried by err. Untagged errors yield "".
func KindOf(err error) ErrorKind {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Kind
	}
	var kind ErrorKind
	if errors.As(err, &kind) {
		return kind
	}
	return ""
}
