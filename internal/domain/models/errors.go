package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDivisionByZero is returned when the submitted weights sum to zero and AFS is undefined.
	ErrDivisionByZero = errors.New("total quantity is zero, AFS is undefined")

	// ErrNotFound is returned when a report does not exist.
	ErrNotFound = errors.New("report not found")

	// ErrRenderingUnavailable is returned when a document cannot be produced even though the
	// report data is valid.
	ErrRenderingUnavailable = errors.New("rendering unavailable")
)

// FieldError points at a single invalid input field, e.g. "sieves[1].weight".
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every problem found in a submission.
type ValidationError struct {
	Fields []FieldError
}

// Add records a problem for the given field.
func (e *ValidationError) Add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// OrNil returns e when at least one problem was recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Has reports whether the given field has a recorded problem.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
