// Package errors provides structured error handling for the pairing pipeline
// and the adapters that surface its failures to end users.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents an error code
type ErrorCode string

const (
	// Client errors (4xx)
	CodeInputError             ErrorCode = "INPUT_ERROR"
	CodeTooManyRequests        ErrorCode = "TOO_MANY_REQUESTS"
	CodeEmptyExtraction        ErrorCode = "EMPTY_EXTRACTION"
	CodeUnsupportedContentType ErrorCode = "UNSUPPORTED_CONTENT_TYPE"
	CodeOutputTruncated        ErrorCode = "OUTPUT_TRUNCATED"
	CodeNotRecognized          ErrorCode = "NOT_RECOGNIZED"

	// Upstream errors (5xx)
	CodeFetchFailed          ErrorCode = "FETCH_FAILED"
	CodeNoJSONFound          ErrorCode = "NO_JSON_FOUND"
	CodeExternalServiceError ErrorCode = "EXTERNAL_SERVICE_ERROR"
	CodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// excerptLimit bounds the raw model output echoed back for diagnosis.
const excerptLimit = 300

// AppError represents an application error with structured information
type AppError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// StatusCode returns the appropriate HTTP status code
func (e *AppError) StatusCode() int {
	switch e.Code {
	case CodeInputError:
		return http.StatusBadRequest
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeEmptyExtraction, CodeUnsupportedContentType, CodeOutputTruncated, CodeNotRecognized:
		return http.StatusUnprocessableEntity
	case CodeFetchFailed, CodeNoJSONFound, CodeExternalServiceError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WithMetadata adds metadata to the error
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithCause adds a cause error
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message, details string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Details:    details,
		StackTrace: getStackTrace(),
	}
}

// NewInputError reports a request rejected before any network call.
func NewInputError(details string) *AppError {
	return NewAppError(CodeInputError, "Invalid input", details)
}

// NewFetchFailedError reports an unreachable source or a non-2xx response.
// A zero status means the request never produced a response.
func NewFetchFailedError(url string, status int, cause error) *AppError {
	details := fmt.Sprintf("status %d", status)
	if status == 0 {
		details = "no response"
	}
	return NewAppError(CodeFetchFailed, "Could not fetch the source page", details).
		WithMetadata("url", url).
		WithMetadata("status", status).
		WithCause(cause)
}

// NewEmptyExtractionError reports a fetched page with no usable text.
func NewEmptyExtractionError(url string) *AppError {
	return NewAppError(
		CodeEmptyExtraction,
		"Could not extract content from that page. Try a different URL.",
		"",
	).WithMetadata("url", url)
}

// NewUnsupportedContentTypeError reports a resource that is not HTML, an image or a PDF.
func NewUnsupportedContentTypeError(url, contentType string) *AppError {
	return NewAppError(
		CodeUnsupportedContentType,
		"Unsupported content type",
		fmt.Sprintf("%q is not HTML, an image or a PDF", contentType),
	).WithMetadata("url", url).WithMetadata("content_type", contentType)
}

// NewOutputTruncatedError reports a completion cut off by the output budget.
// The message tells the user what to change for the given task.
func NewOutputTruncatedError(task string) *AppError {
	message := "Response was too long. Please try a simpler input."
	switch task {
	case "menu":
		message = "Maximum dish limit reached. The menu has too many dishes, try splitting it into smaller sections."
	case "recipe":
		message = "Recipe response was too long. Please try a simpler recipe URL."
	}
	return NewAppError(CodeOutputTruncated, message, "").WithMetadata("task", task)
}

// NewNoJSONFoundError carries the head of the raw model output so users can
// see what was returned instead.
func NewNoJSONFoundError(raw string) *AppError {
	excerpt := Excerpt(raw, excerptLimit)
	return NewAppError(
		CodeNoJSONFound,
		"Could not parse the wine pairing response",
		fmt.Sprintf("model said: %q", excerpt),
	).WithMetadata("excerpt", excerpt)
}

// NewNotRecognizedError reports a source the model did not identify as the expected content.
func NewNotRecognizedError(task string) *AppError {
	message := "That source doesn't appear to contain a menu. Please try a different URL."
	if task == "recipe" {
		message = "That URL doesn't appear to contain a recipe. Please try a direct link to a recipe page."
	}
	return NewAppError(CodeNotRecognized, message, "").WithMetadata("task", task)
}

// NewInternalError creates an internal server error
func NewInternalError(message string) *AppError {
	if message == "" {
		message = "An unexpected error occurred"
	}
	return NewAppError(CodeInternal, message, "")
}

// NewExternalServiceError creates an external service error
func NewExternalServiceError(service string, cause error) *AppError {
	return NewAppError(
		CodeExternalServiceError,
		"External service error",
		fmt.Sprintf("Failed to communicate with %s", service),
	).WithCause(cause)
}

// Utility functions

// Wrap wraps an error as an internal error if it's not already an AppError
func Wrap(err error, message string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	return NewInternalError(message).WithCause(err)
}

// Is checks if an error is of a specific error code
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// AsAppError returns the AppError in err's chain, if any.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// Excerpt returns at most n runes of s.
func Excerpt(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// getStackTrace captures the current stack trace
func getStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var builder strings.Builder
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "pkg/errors") {
			builder.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}

	return builder.String()
}

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Value   interface{} `json:"value"`
	Tag     string      `json:"tag"`
	Message string      `json:"message"`
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}

	if len(v) == 1 {
		return v[0].Message
	}

	var messages []string
	for _, err := range v {
		messages = append(messages, err.Message)
	}

	return strings.Join(messages, "; ")
}

// NewValidationErrors creates an input error from field validation failures
func NewValidationErrors(errors []ValidationError) *AppError {
	validationErrs := ValidationErrors(errors)

	return NewInputError(validationErrs.Error()).
		WithMetadata("validation_errors", validationErrs)
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error ErrorDetails `json:"error"`
}

// ErrorDetails represents the error details in API responses
type ErrorDetails struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// ToErrorResponse converts an AppError to an API error response
func ToErrorResponse(err *AppError, requestID string) ErrorResponse {
	return ErrorResponse{
		Error: ErrorDetails{
			Code:      err.Code,
			Message:   err.Message,
			Details:   err.Details,
			Metadata:  err.Metadata,
			RequestID: requestID,
			Timestamp: fmt.Sprintf("%d", time.Now().Unix()),
		},
	}
}
