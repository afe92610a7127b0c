// Package apperr defines the error kinds a question-answering turn can fail with.
// Callers branch on the kind; the message stays human-readable and never names the
// backend that produced it.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// KindValidation marks a query rejected by the safety gate. It never reaches a connection.
	KindValidation Kind = "validation"
	// KindGeneration marks a text-generation failure, timeout or unusable output.
	KindGeneration Kind = "generation"
	// KindConnection marks a backend that could not be opened or reached.
	KindConnection Kind = "connection"
	// KindExecution marks a driver-reported failure on an otherwise safe query.
	KindExecution Kind = "execution"
	// KindPersistence marks a query log read or write failure.
	KindPersistence Kind = "persistence"
)

// Error wraps an underlying error with a kind and a human-friendly message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error             { return &Error{Kind: kind, Message: msg} }
func Wrap(kind Kind, msg string, err error) *Error { return &Error{Kind: kind, Message: msg, Err: err} }

// KindOf reports the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
