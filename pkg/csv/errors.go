package csv

import (
	"errors"
	"fmt"
)

// ParseError represents a data error with position information.
// It provides detailed context about where the error occurred in the CSV data.
type ParseError struct {
	// StartLine is the line where the row started (1-indexed).
	StartLine int
	// Line is the line where the error occurred (1-indexed).
	Line int
	// Column is the field where the error occurred (1-indexed).
	Column int
	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message with position information.
func (e *ParseError) Error() string {
	if e.StartLine == e.Line {
		return fmt.Sprintf("parse error on line %d, column %d: %v", e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("parse error on line %d (started line %d), column %d: %v",
		e.Line, e.StartLine, e.Column, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// UsageError reports an operation that was called in a state that does not
// allow it. Retrying the same call will fail the same way.
type UsageError struct {
	// Op is the operation that was misused, such as "ReadHeader".
	Op string
	// Err is the underlying error.
	Err error
}

func (e *UsageError) Error() string {
	return "csv: " + e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *UsageError) Unwrap() error {
	return e.Err
}

// Data errors
var (
	// ErrFieldCount indicates a record has the wrong number of fields.
	ErrFieldCount = errors.New("wrong number of fields")

	// ErrRecordTooLarge indicates a record does not fit the read buffer.
	ErrRecordTooLarge = errors.New("record exceeds buffer size")

	// ErrQuoteRequired indicates a field needs quoting while quoting is disabled.
	ErrQuoteRequired = errors.New("field requires quoting but quoting is disabled")

	// ErrNoData indicates that no row was available.
	ErrNoData = errors.New("no data")

	// ErrUnterminatedQuote indicates the input ended inside a quoted field.
	ErrUnterminatedQuote = errors.New("unterminated quoted field")

	// ErrEmptyRow indicates a nil or zero-field row was written.
	ErrEmptyRow = errors.New("row has no fields")

	// ErrUnknownObjectType indicates an object row names an unregistered type.
	ErrUnknownObjectType = errors.New("unknown object type")

	// ErrValidation indicates a mapping validator rejected a value.
	ErrValidation = errors.New("validation failed")
)

// Usage errors
var (
	// ErrHeaderAlreadySet indicates the reader already knows its header.
	ErrHeaderAlreadySet = errors.New("header already set")

	// ErrHeaderAlreadyWritten indicates the writer already wrote its header.
	ErrHeaderAlreadyWritten = errors.New("header already written")

	// ErrNoHeader indicates an operation needs a header and none is configured.
	ErrNoHeader = errors.New("no header")

	// ErrClosed indicates the reader or writer was closed or cancelled.
	ErrClosed = errors.New("session closed")

	// ErrNotSeekable indicates the source cannot be rewound.
	ErrNotSeekable = errors.New("source is not seekable")

	// ErrNoColumns indicates the column names are not known.
	ErrNoColumns = errors.New("column names unknown")

	// ErrInvalidIndex indicates a row or column index is out of range.
	ErrInvalidIndex = errors.New("index out of range")
)

var dataErrors = []error{
	ErrFieldCount,
	ErrRecordTooLarge,
	ErrQuoteRequired,
	ErrNoData,
	ErrUnterminatedQuote,
	ErrEmptyRow,
	ErrUnknownObjectType,
	ErrValidation,
}

// IsDataError reports whether err was caused by the content of the data
// rather than by how the API was called or by I/O.
func IsDataError(err error) bool {
	if err == nil || IsUsageError(err) {
		return false
	}
	var pe *ParseError
	var fe *FieldError
	if errors.As(err, &pe) || errors.As(err, &fe) {
		return true
	}
	for _, target := range dataErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsUsageError reports whether err was caused by calling an operation in a
// state that does not allow it.
func IsUsageError(err error) bool {
	var ue *UsageError
	return errors.As(err, &ue)
}

func usage(op string, err error) error {
	return &UsageError{Op: op, Err: err}
}

// errorKind names the class of err for metrics.
func errorKind(err error) string {
	switch {
	case IsUsageError(err):
		return "usage"
	case IsDataError(err):
		return "data"
	default:
		return "io"
	}
}
