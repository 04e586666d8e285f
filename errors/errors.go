// Package errors implements the closed persistence-error taxonomy
// described in spec.md §7. Every failure the core raises across its
// public surface presents as exactly one *PersistenceError with one of
// the Kind values below; nothing backend-native ever escapes an adapter.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the closed set of persistence failure categories.
type Kind string

const (
	KindEntityNotFound  Kind = "EntityNotFound"
	KindDuplicateEntity Kind = "DuplicateEntity"
	KindQueryError      Kind = "QueryError"
	KindTransactionError Kind = "TransactionError"
	KindConcurrencyError Kind = "ConcurrencyError" // reserved; not currently raised
	KindStorageLimitError Kind = "StorageLimitError"
	KindPersistenceError Kind = "PersistenceError" // generic catch-all
)

// PersistenceError is the single error type every repository, adapter and
// coordinator method in this module returns. It always carries the entity
// type name, the field/identifier implicated where relevant, and wraps the
// backend-native cause (via github.com/pkg/errors so a stack trace is
// captured at the point of construction).
type PersistenceError struct {
	Kind       Kind
	EntityType string
	Field      string
	RolledBack bool
	cause      error
}

func (e *PersistenceError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s[%s]: %v", e.Kind, e.EntityType, e.Field, e.cause)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.EntityType, e.cause)
}

func (e *PersistenceError) Unwrap() error { return e.cause }

// StackTrace exposes the pkg/errors stack captured when the cause (or the
// error itself, if no cause was given) was created.
func (e *PersistenceError) StackTrace() errors.StackTrace {
	type tracer interface{ StackTrace() errors.StackTrace }
	if t, ok := e.cause.(tracer); ok {
		return t.StackTrace()
	}
	return nil
}

func newErr(kind Kind, entityType, field string, cause error) *PersistenceError {
	if cause == nil {
		cause = errors.New(string(kind))
	} else if _, ok := cause.(stackTracer); !ok {
		cause = errors.WithStack(cause)
	}
	return &PersistenceError{Kind: kind, EntityType: entityType, Field: field, cause: cause}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// NotFound builds an EntityNotFound error. field is typically "id" or "uuid".
func NotFound(entityType, field, value string) *PersistenceError {
	return newErr(KindEntityNotFound, entityType, field, fmt.Errorf("%s=%q not found", field, value))
}

// Duplicate builds a DuplicateEntity error for a violated unique constraint.
func Duplicate(entityType, field string, cause error) *PersistenceError {
	return newErr(KindDuplicateEntity, entityType, field, cause)
}

// Query builds a QueryError for a malformed query or unexpected result shape.
func Query(entityType string, cause error) *PersistenceError {
	return newErr(KindQueryError, entityType, "", cause)
}

// Transaction builds a TransactionError; RolledBack is always true since the
// coordinator only raises this after undoing every *InTx operation.
func Transaction(entityType string, cause error) *PersistenceError {
	e := newErr(KindTransactionError, entityType, "", cause)
	e.RolledBack = true
	return e
}

// StorageLimit builds a StorageLimitError for an out-of-space/quota backend.
func StorageLimit(entityType string, cause error) *PersistenceError {
	return newErr(KindStorageLimitError, entityType, "", cause)
}

// Wrap builds the generic PersistenceError catch-all, preserving cause and
// stack trace.
func Wrap(entityType string, cause error) *PersistenceError {
	return newErr(KindPersistenceError, entityType, "", cause)
}

// Is reports whether err is a *PersistenceError of the given kind.
func Is(err error, kind Kind) bool {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}
