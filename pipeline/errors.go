package pipeline

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/aluiziolira/campaign-insights/loader"
	"github.com/aluiziolira/campaign-insights/parser"
	"github.com/aluiziolira/campaign-insights/source"
)

// ErrWriterClosed is returned when a snapshot writer is used after Close.
var ErrWriterClosed = errors.New("pipeline: writer closed")

// RowError ties a field parse failure to its CSV line.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// RowErrors is returned when row errors are collected instead of failing on
// the first one. Total counts every failing row even when Errors was capped.
type RowErrors struct {
	Errors []*RowError
	Total  int
}

func (e *RowErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no row errors"
	}
	if e.Total == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d malformed rows, first: %v", e.Total, e.Errors[0])
}

// Unwrap exposes every collected row error to errors.Is and errors.As.
func (e *RowErrors) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, rowErr := range e.Errors {
		errs[i] = rowErr
	}
	return errs
}

// WriteError wraps a failure to produce an output file.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// ErrorType returns a short stable label for err, used in logs and metrics.
func ErrorType(err error) string {
	if err == nil {
		return "none"
	}
	var missing *loader.MissingColumnError
	if errors.As(err, &missing) {
		return "missing_column"
	}
	if kind := parser.KindOf(err); kind != "" {
		return string(kind)
	}

	var openErr *source.OpenError
	var readErr *loader.ReadError
	var writeErr *WriteError
	var pathErr *fs.PathError
	switch {
	case errors.As(err, &openErr),
		errors.As(err, &readErr),
		errors.As(err, &writeErr),
		errors.As(err, &pathErr),
		errors.Is(err, loader.ErrEmptyInput):
		return "io"
	}
	return "other"
}
