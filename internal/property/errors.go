package property

import (
	"errors"
	"fmt"

	"github.com/mx-space/forms/internal/schema"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrSlugConflict  = errors.New("element_id already in use")
	ErrPersistence   = errors.New("persistence failure")
	ErrUnknownColumn = errors.New("unknown column")
)

// SlugConflictError names the sibling kind that already owns a slug.
type SlugConflictError struct {
	Kind schema.Kind
	Slug string
}

func (e *SlugConflictError) Error() string {
	return fmt.Sprintf("element_id %q is already used by another %s in this form", e.Slug, e.Kind)
}

func (e *SlugConflictError) Unwrap() error { return ErrSlugConflict }

// PersistenceError wraps a failed store call. The entity passed to Commit keeps
// the attempted edits so the caller can show them again.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// UserMessage returns a single sentence suitable for inline display in the
// editor. Store errors are reduced to a generic reason.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var conflict *SlugConflictError
	switch {
	case errors.As(err, &conflict):
		return conflict.Error()
	case errors.Is(err, schema.ErrUnknownType):
		return "This item type is not supported by the editor."
	case errors.Is(err, ErrNotFound):
		return "The item no longer exists."
	case errors.Is(err, ErrUnknownColumn):
		return "The editor sent a property this item cannot store."
	case errors.Is(err, ErrPersistence):
		return "Your changes could not be saved. Please try again."
	}
	return "Something went wrong while saving your changes."
}
