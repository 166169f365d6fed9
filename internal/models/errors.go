package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches any *NotFoundError via errors.Is.
	ErrNotFound = errors.New("not found")
	// ErrOutOfRange matches any *OutOfRangeError via errors.Is.
	ErrOutOfRange = errors.New("row out of range")
	// ErrLoad matches any *LoadError via errors.Is.
	ErrLoad = errors.New("artifact load failed")
	// ErrInvalidRequest is wrapped by request validation failures.
	ErrInvalidRequest = errors.New("invalid request")
)

// NotFoundError is returned when no catalog item has the requested title.
type NotFoundError struct {
	Title string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("title not found: %q", e.Title)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// OutOfRangeError is returned for a row outside [0, Size).
type OutOfRangeError struct {
	Row  int
	Size int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("row %d out of range [0, %d)", e.Row, e.Size)
}

func (e *OutOfRangeError) Is(target error) bool { return target == ErrOutOfRange }

// LoadError is returned when the catalog/matrix artifact is missing, malformed
// or has mismatched dimensions.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("load artifact: %v", e.Err)
	}
	return fmt.Sprintf("load artifact %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Is(target error) bool { return target == ErrLoad }

// NewLoadError wraps err as a *LoadError for source. A nil err yields nil.
func NewLoadError(source string, err error) error {
	if err == nil {
		return nil
	}
	var le *LoadError
	if errors.As(err, &le) {
		return err
	}
	return &LoadError{Source: source, Err: err}
}
