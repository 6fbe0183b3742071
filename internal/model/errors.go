package model

import (
	"errors"

	"github.com/rotisserie/eris"
)

var (
	// ErrNotFound reports a missing document or collection.
	ErrNotFound = errors.New("not found")
	// ErrValidation reports a malformed identifier or request, raised before I/O.
	ErrValidation = errors.New("validation failed")
)

// CollaboratorError wraps a crawl, extraction or AI failure for one document.
// It is counted and logged, never escalated.
type CollaboratorError struct {
	Collaborator string
	Slug         string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return e.Collaborator + " failed for " + e.Slug + ": " + e.Err.Error()
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// NewCollaboratorError wraps err for the named collaborator and document.
func NewCollaboratorError(collaborator, slug string, err error) error {
	if err == nil {
		return nil
	}
	return &CollaboratorError{Collaborator: collaborator, Slug: slug, Err: err}
}

// FatalError aborts an entire run.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return "fatal: " + e.Op + ": " + e.Err.Error()
}

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err as a run-aborting failure of op.
func Fatal(op string, err error) error {
	return &FatalError{Op: op, Err: err}
}

// IsFatal reports whether err aborts a run.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// NotFoundf returns an ErrNotFound-wrapping error with context.
func NotFoundf(format string, args ...any) error {
	return eris.Wrapf(ErrNotFound, format, args...)
}

// Invalidf returns an ErrValidation-wrapping error with context.
func Invalidf(format string, args ...any) error {
	return eris.Wrapf(ErrValidation, format, args...)
}
