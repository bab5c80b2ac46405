// Package errors provides the coded error taxonomy of the ingestion pipeline.
// File-level failures are returned as *StandardError; field-level problems
// never become errors (see package diag).
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode identifies a class of ingestion failure.
type ErrorCode string

const (
	ErrCodeUnsupportedFormat  ErrorCode = "UNSUPPORTED_FORMAT"
	ErrCodeParseFailed        ErrorCode = "PARSE_FAILED"
	ErrCodeStructureDetection ErrorCode = "STRUCTURE_DETECTION_FAILED"
	ErrCodeStorage            ErrorCode = "STORAGE_FAILED"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeInvalidConfig      ErrorCode = "INVALID_CONFIG"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// Sentinels for errors.Is. Matching is by code only.
var (
	ErrUnsupportedFormat  = &StandardError{Code: ErrCodeUnsupportedFormat}
	ErrParseFailed        = &StandardError{Code: ErrCodeParseFailed}
	ErrStructureDetection = &StandardError{Code: ErrCodeStructureDetection}
	ErrStorage            = &StandardError{Code: ErrCodeStorage}
	ErrNotFound           = &StandardError{Code: ErrCodeNotFound}
)

// StandardError is a structured ingestion error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

// Unwrap exposes the underlying library error, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches any *StandardError carrying the same code.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewUnsupportedFormatError rejects a file extension that no parser handles.
func NewUnsupportedFormatError(extension string, supported []string) *StandardError {
	return &StandardError{
		Code:    ErrCodeUnsupportedFormat,
		Message: fmt.Sprintf("Unsupported file format: %s", extension),
		Details: fmt.Sprintf("Please upload one of: %s", strings.Join(supported, ", ")),
		Metadata: map[string]interface{}{
			"extension": extension,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewParseFailedError wraps a CSV/XLSX/XLS library error. The parser's own
// message is kept verbatim in Details.
func NewParseFailedError(format string, err error) *StandardError {
	return &StandardError{
		Code:    ErrCodeParseFailed,
		Message: fmt.Sprintf("failed to parse %s file", format),
		Details: err.Error(),
		Metadata: map[string]interface{}{
			"format": format,
		},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewStructureDetectionError is raised when neither vocabulary matches.
func NewStructureDetectionError(headers []string) *StandardError {
	return &StandardError{
		Code:    ErrCodeStructureDetection,
		Message: "Could not determine data structure. Please check the file format.",
		Details: fmt.Sprintf("headers: [%s]", strings.Join(headers, ", ")),
		Metadata: map[string]interface{}{
			"headers": headers,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewStorageError reports a repository or cache failure. These are retryable
// from the caller's point of view.
func NewStorageError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorage,
		Message:   fmt.Sprintf("storage operation %s failed", op),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewNotFoundError reports a missing stored result.
func NewNotFoundError(kind, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", kind),
		Details:   fmt.Sprintf("id: %s", id),
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidConfigError reports a configuration value that failed validation.
func NewInvalidConfigError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidConfig,
		Message:   "invalid configuration",
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// CodeOf extracts the code of the first *StandardError in err's chain.
// Errors outside the taxonomy report ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var se *StandardError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// As is a convenience around the standard library's errors.As.
func As(err error) (*StandardError, bool) {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}
