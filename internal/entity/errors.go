package entity

import "fmt"

// ValidationError is returned by Build when a required field is unset or an
// invariant of the graph is violated. The build that produced it must not
// be used.
type ValidationError struct {
	// Entity is the path of the offending builder, e.g. "ensemble.reals[2].stages[0]".
	Entity string
	// Field names the field or invariant that failed.
	Field string
	// Reason is a short human readable explanation.
	Reason string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s %s", e.Entity, e.Field, e.Reason)
}

// ImmutableEntityError records an attempt to call a setter on a builder
// after it was built. It is a programming error.
type ImmutableEntityError struct {
	Entity string
	Field  string
}

// Error implements the error interface for ImmutableEntityError.
func (e *ImmutableEntityError) Error() string {
	return fmt.Sprintf("cannot set %s: %s is immutable once built", e.Field, e.Entity)
}

func required(entity, field string) *ValidationError {
	return &ValidationError{Entity: entity, Field: field, Reason: "is required"}
}
