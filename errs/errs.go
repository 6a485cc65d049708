// Package errs defines the error taxonomy shared by every arbor package.
//
// Errors are values, not bespoke types per package: every failure mode in
// the core is one of the Kinds below, carrying the structured context a
// caller needs to identify the failed operation without leaking
// implementation-level identifiers (§7 of the specification).
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an Error the way internal/errors.ErrorType classified
// the teacher's SentraError, but named for this core's failure modes.
type Kind string

const (
	// StorageErr covers opening an absent file, an absent name within an
	// existing file, or any underlying storage I/O failure.
	StorageErr Kind = "StorageError"
	// NotFound is a StorageErr specialization for a missing name or file.
	NotFound Kind = "NotFound"
	// IndexOutOfBounds is raised by any operation receiving a logical
	// position outside the valid range for the selection it addresses.
	IndexOutOfBounds Kind = "IndexOutOfBounds"
	// ExecutionErr covers refresh on an in-memory Arbor, invariant
	// violations during optimization, and internal executor mismatches.
	ExecutionErr Kind = "ExecutionError"
	// CardinalityErr is raised by collect_tree() when the result is not
	// exactly one tree.
	CardinalityErr Kind = "CardinalityError"
	// SchemaErr covers a predicate or expression referencing a field
	// absent from the inferred schema.
	SchemaErr Kind = "SchemaError"
	// TypeMismatchErr covers a predicate or expression whose operand type
	// is incompatible with the field's inferred type.
	TypeMismatchErr Kind = "TypeMismatchError"
	// ParseErr covers malformed JSON/JSONL encountered at ingestion time.
	ParseErr Kind = "ParseError"
)

// Error is the single error type produced by every arbor package. It is
// deliberately flat: callers switch on Kind, not on Go type, the same way
// the teacher's SentraError carried one Type field rather than a type
// hierarchy.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "Arbor.Head", "storage.Open"
	Message string

	// Context fields, populated as applicable to Kind. Zero value means
	// "not applicable" for that field.
	Index int
	Count int
	Field string
	Name  string

	cause error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Message)
	switch e.Kind {
	case IndexOutOfBounds:
		msg += fmt.Sprintf(" (index=%d count=%d)", e.Index, e.Count)
	case SchemaErr, TypeMismatchErr:
		if e.Field != "" {
			msg += fmt.Sprintf(" (field=%q)", e.Field)
		}
	case NotFound, StorageErr:
		if e.Name != "" {
			msg += fmt.Sprintf(" (name=%q)", e.Name)
		}
	}
	return msg
}

// Unwrap exposes the wrapped cause, if any, so errors.Is/errors.As from
// either the standard library or github.com/pkg/errors keep working.
func (e *Error) Unwrap() error { return e.cause }

// WithCause attaches an underlying cause, preserving its stack via
// github.com/pkg/errors the way internal/errors.SentraError.WithStack
// attached a call stack to a bare message.
func (e *Error) WithCause(cause error) *Error {
	e.cause = errors.WithStack(cause)
	return e
}

// New builds a bare Error of the given Kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap attaches Kind/Op/Message context to an existing error, preserving
// it as the cause.
func Wrap(cause error, kind Kind, op, message string) *Error {
	return New(kind, op, message).WithCause(cause)
}

// OutOfBounds builds the canonical IndexOutOfBounds error for a logical
// position outside [0, count) (or [0, count] for insert-like operations,
// which pass count+1 explicitly).
func OutOfBounds(op string, index, count int) *Error {
	return &Error{
		Kind:    IndexOutOfBounds,
		Op:      op,
		Message: "logical position out of bounds",
		Index:   index,
		Count:   count,
	}
}

// NotFoundName builds the canonical NotFound error for a missing name.
func NotFoundName(op, name string) *Error {
	return &Error{Kind: NotFound, Op: op, Message: "name not found", Name: name}
}

// Is reports whether err (or any error it wraps) is an *Error of kind k.
// It mirrors errors.Is's contract without requiring callers to construct
// a sentinel value for every Kind.
func Is(err error, k Kind) bool {
	for err != nil {
		if ae, ok := err.(*Error); ok && ae.Kind == k {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
