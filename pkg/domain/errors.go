package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports a document that fails its kind schema. Field names
// the offending property; Constraint names the violated schema rule.
type ValidationError struct {
	Kind       Kind
	Field      string
	Constraint string
	Message    string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s document invalid: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s document invalid: field %q violates %s: %s", e.Kind, e.Field, e.Constraint, e.Message)
}

// DuplicateNameError reports a creation attempt that collides with a live
// document's unique name.
type DuplicateNameError struct {
	Kind Kind
	Name string
}

func (e DuplicateNameError) Error() string {
	return fmt.Sprintf("%s named %q already exists", e.Kind, e.Name)
}

// ImmutableFieldError reports an update touching a field that is fixed at
// creation.
type ImmutableFieldError struct {
	Kind  Kind
	Field string
}

func (e ImmutableFieldError) Error() string {
	return fmt.Sprintf("field %q of %s documents is immutable", e.Field, e.Kind)
}

// NotFoundError reports a reference to an id with no live document.
type NotFoundError struct {
	Kind Kind
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// RevisionNotFoundError reports a revert target absent from a document's
// history.
type RevisionNotFoundError struct {
	ID       string
	Revision int
}

func (e RevisionNotFoundError) Error() string {
	return fmt.Sprintf("revision %d of document %s not found", e.Revision, e.ID)
}

// ConflictError reports a concurrent-update race detected by the revision
// store's (id, revision) uniqueness check. It is the only error kind a caller
// is expected to retry, by re-reading and resubmitting the update.
type ConflictError struct {
	ID       string
	Revision int
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("concurrent update of document %s detected at revision %d", e.ID, e.Revision)
}

// StorageError wraps a failure of the underlying store. Fatal to the in-flight
// operation; not retried by the core.
type StorageError struct {
	Op  string
	Err error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e StorageError) Unwrap() error { return e.Err }

// IsConflict reports whether err contains a ConflictError.
func IsConflict(err error) bool {
	var conflict ConflictError
	return errors.As(err, &conflict)
}

// IsNotFound reports whether err contains a NotFoundError.
func IsNotFound(err error) bool {
	var notFound NotFoundError
	return errors.As(err, &notFound)
}
