// Package runtime provides the store connection, dialects, transaction
// scoping and the error taxonomy shared by the data-access packages.
package runtime

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidModel is returned when an invalid model is provided.
	ErrInvalidModel = errors.New("invalid model")

	// ErrNoPrimaryKey is returned when a table has no primary key.
	ErrNoPrimaryKey = errors.New("no primary key defined")

	// ErrTransactionClosed is returned when operating on a closed transaction.
	ErrTransactionClosed = errors.New("transaction already closed")

	// ErrMalformedQueryDescriptor is returned for descriptors that do not fit
	// the entity schema: unknown attributes, wrong operand counts, bad paging.
	ErrMalformedQueryDescriptor = errors.New("malformed query descriptor")

	// ErrUnsupportedPredicateShape is returned for predicates that compare a
	// relationship attribute by value instead of by id or nested attribute.
	ErrUnsupportedPredicateShape = errors.New("unsupported predicate shape")

	// ErrDanglingReference is returned when a foreign key is set but the
	// referenced row does not exist.
	ErrDanglingReference = errors.New("dangling reference")

	// ErrRelationshipCardinalityViolation is returned when a one-to-one
	// reverse lookup finds more than one owner.
	ErrRelationshipCardinalityViolation = errors.New("relationship cardinality violation")
)

// DescriptorError describes a query descriptor rejected for an entity.
// Err is ErrMalformedQueryDescriptor or ErrUnsupportedPredicateShape.
type DescriptorError struct {
	Entity string
	Path   string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *DescriptorError) Error() string {
	msg := e.Err.Error()
	if e.Entity != "" {
		msg += " on " + e.Entity
	}
	if e.Path != "" {
		msg += fmt.Sprintf(" at %q", e.Path)
	}
	return msg + ": " + e.Reason
}

// Unwrap returns the underlying error.
func (e *DescriptorError) Unwrap() error {
	return e.Err
}

// Malformed builds a DescriptorError wrapping ErrMalformedQueryDescriptor.
func Malformed(entity, path, format string, args ...any) *DescriptorError {
	return &DescriptorError{Entity: entity, Path: path, Reason: fmt.Sprintf(format, args...), Err: ErrMalformedQueryDescriptor}
}

// Unsupported builds a DescriptorError wrapping ErrUnsupportedPredicateShape.
func Unsupported(entity, path, format string, args ...any) *DescriptorError {
	return &DescriptorError{Entity: entity, Path: path, Reason: fmt.Sprintf(format, args...), Err: ErrUnsupportedPredicateShape}
}

// ReferenceError reports a relationship whose stored state violates its
// declaration. Err is ErrDanglingReference or ErrRelationshipCardinalityViolation.
type ReferenceError struct {
	Entity       string
	ID           any
	Relationship string
	Target       string
	Key          any
	Matches      int
	Err          error
}

// Error implements the error interface.
func (e *ReferenceError) Error() string {
	if errors.Is(e.Err, ErrRelationshipCardinalityViolation) {
		return fmt.Sprintf("%v: %s(id=%v).%s matched %d %s rows",
			e.Err, e.Entity, e.ID, e.Relationship, e.Matches, e.Target)
	}
	return fmt.Sprintf("%v: %s(id=%v).%s references missing %s(id=%v)",
		e.Err, e.Entity, e.ID, e.Relationship, e.Target, e.Key)
}

// Unwrap returns the underlying error.
func (e *ReferenceError) Unwrap() error {
	return e.Err
}

// ValidationError represents a validation error.
type ValidationError struct {
	Entity  string
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s.%s: %s", e.Entity, e.Field, e.Message)
}

// QueryError represents a query execution error.
type QueryError struct {
	Query string
	Args  []any
	Err   error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return fmt.Sprintf("query error: %v\nQuery: %s", e.Err, e.Query)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}
