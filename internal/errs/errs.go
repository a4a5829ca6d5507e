// Package errs holds the error kinds shared by every stage of the publish workflow.
//
// Kinds are sentinel values matched with errors.Is. A StageError wraps a kind together with the
// stage that failed and the row or image identifier it was working on.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation    = errors.New("validation")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrDecode        = errors.New("decode")
	ErrSizeLimit     = errors.New("size limit")
	ErrAlreadyExists = errors.New("already exists")
	ErrStoreWrite    = errors.New("store write")
	ErrPartialUpload = errors.New("partial upload")
)

// Ordered by precedence: a partial upload wraps already-exists and store-write failures.
var kinds = []error{
	ErrValidation,
	ErrUnauthorized,
	ErrPartialUpload,
	ErrSizeLimit,
	ErrDecode,
	ErrAlreadyExists,
	ErrStoreWrite,
}

// KindOf returns the highest-precedence kind err matches, or nil.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Validation builds a validation error with a formatted message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// StageError reports which stage failed and on which row or identifier.
type StageError struct {
	Stage string
	Ref   string
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	var b strings.Builder
	b.WriteString(e.Stage)
	b.WriteString(" failed")
	if e.Ref != "" {
		b.WriteString(" (")
		b.WriteString(e.Ref)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *StageError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Stage wraps err as a StageError. The kind is taken from err when it already carries one,
// otherwise fallback is used.
func Stage(stage, ref string, fallback, err error) *StageError {
	kind := KindOf(err)
	if kind == nil {
		kind = fallback
	}
	return &StageError{Stage: stage, Ref: ref, Kind: kind, Err: err}
}

// Refs collects the refs of every StageError inside err, including joined errors.
func Refs(err error) []string {
	var out []string
	var walk func(error)
	walk = func(e error) {
		switch v := e.(type) {
		case nil:
		case *StageError:
			if v.Ref != "" {
				out = append(out, v.Ref)
			}
			walk(v.Err)
		case interface{ Unwrap() []error }:
			for _, inner := range v.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(v.Unwrap())
		}
	}
	walk(err)
	return out
}
