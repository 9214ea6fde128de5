package comment

import (
	"errors"
	"fmt"
)

// ErrMalformedRecord matches every *MalformedRecordError.
var ErrMalformedRecord = errors.New("malformed comment record")

var (
	errMissing      = errors.New("missing or empty")
	errNotObject    = errors.New("record is not a JSON object")
	errTrailingData = errors.New("unexpected data after the record")
)

// MalformedRecordError describes a record that could not be decoded or
// lacks a required field. Path and Line are filled in by loaders.
type MalformedRecordError struct {
	Path  string
	Line  int
	ID    string
	Field string
	Err   error
}

func (e *MalformedRecordError) Error() string {
	msg := "malformed comment record"
	if e.Path != "" {
		msg += fmt.Sprintf(" at %s:%d", e.Path, e.Line)
	} else if e.Line > 0 {
		msg += fmt.Sprintf(" at line %d", e.Line)
	}
	if e.ID != "" {
		msg += fmt.Sprintf(" (id %s)", e.ID)
	}
	if e.Field != "" {
		msg += ": field " + e.Field
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}
