package parser

import (
	"errors"
	"fmt"
)

// Kind names a class of row-level parse failure.
type Kind string

const (
	MalformedCurrency Kind = "malformed_currency"
	MalformedDuration Kind = "malformed_duration"
	MalformedDate     Kind = "malformed_date"
	MalformedNumber   Kind = "malformed_number"
)

var (
	errNoDigits    = errors.New("no digit sequence")
	errNotFinite   = errors.New("value is not finite")
	errNegative    = errors.New("value is negative")
	errEmptyNumber = errors.New("value is empty")
)

// FieldError reports a single field that could not be parsed.
type FieldError struct {
	Kind  Kind
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: field %s value %q", e.Kind, e.Field, e.Value)
	}
	return fmt.Sprintf("%s: field %s value %q: %v", e.Kind, e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind carried by err, or "" when err is not a FieldError.
func KindOf(err error) Kind {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

func fieldErr(kind Kind, field, value string, err error) error {
	return &FieldError{Kind: kind, Field: field, Value: value, Err: err}
}
