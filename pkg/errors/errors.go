// Package errors provides structured error types for stackbuild backends.
//
// Every failure a backend reports to its frontend carries a machine-readable
// [Code] plus structured [Detail] (offending field, platform selector, glob
// pattern, exit code) so the frontend can render its own diagnostic without
// parsing text.
//
// # Error Codes
//
// The codes mirror the failure classes of a build request:
//   - CONFIG_ERROR: forbidden overrides, conflicting overrides, bad merges,
//     unreadable manifests and invalid request fields
//   - VARIANT_RESOLUTION_ERROR: no compiler mapping for a language/platform
//   - GLOB_ERROR: invalid glob syntax or an unreadable matched file
//   - PROTOCOL_ERROR: malformed request, wrong session state, bad version
//   - METADATA_ERROR: the adapter could not extract package metadata
//   - BUILD_ERROR: an external tool exited non-zero
//   - CANCELLED: the request was cancelled while a tool was running
//   - INTERNAL_ERROR: a failure of the backend itself
//
// # Usage
//
//	err := errors.New(errors.ErrCodeConfig, "field cannot have a target override").
//	    WithField("debug-dir").WithSelector("linux-64")
//	if errors.Is(err, errors.ErrCodeConfig) {
//	    // Handle configuration error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeGlob, origErr, "reading %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for the failure classes of a backend session.
const (
	ErrCodeConfig            Code = "CONFIG_ERROR"
	ErrCodeVariantResolution Code = "VARIANT_RESOLUTION_ERROR"
	ErrCodeGlob              Code = "GLOB_ERROR"
	ErrCodeProtocol          Code = "PROTOCOL_ERROR"
	ErrCodeMetadata          Code = "METADATA_ERROR"
	ErrCodeBuild             Code = "BUILD_ERROR"
	ErrCodeCancelled         Code = "CANCELLED"
	ErrCodeInternal          Code = "INTERNAL_ERROR"
)

// Codes lists every code a backend puts on the wire.
var Codes = []Code{
	ErrCodeConfig,
	ErrCodeVariantResolution,
	ErrCodeGlob,
	ErrCodeProtocol,
	ErrCodeMetadata,
	ErrCodeBuild,
	ErrCodeCancelled,
	ErrCodeInternal,
}

// Detail carries the structured context of an error. Only the fields that
// apply to a given failure are set.
type Detail struct {
	Field    string `json:"field,omitempty" cbor:"field,omitempty"`
	Selector string `json:"selector,omitempty" cbor:"selector,omitempty"`
	Pattern  string `json:"pattern,omitempty" cbor:"pattern,omitempty"`
	Path     string `json:"path,omitempty" cbor:"path,omitempty"`
	Language string `json:"language,omitempty" cbor:"language,omitempty"`
	Platform string `json:"platform,omitempty" cbor:"platform,omitempty"`
	ExitCode *int   `json:"exit_code,omitempty" cbor:"exit_code,omitempty"`
	Output   string `json:"output,omitempty" cbor:"output,omitempty"`
}

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
	Detail  Detail // Structured context (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// WithField records the configuration field the error refers to.
func (e *Error) WithField(field string) *Error {
	e.Detail.Field = field
	return e
}

// WithSelector records the target selector the error refers to.
func (e *Error) WithSelector(selector string) *Error {
	e.Detail.Selector = selector
	return e
}

// WithPattern records the glob pattern the error refers to.
func (e *Error) WithPattern(pattern string) *Error {
	e.Detail.Pattern = pattern
	return e
}

// WithPath records the file path the error refers to.
func (e *Error) WithPath(path string) *Error {
	e.Detail.Path = path
	return e
}

// WithVariant records the language and platform of a failed variant lookup.
func (e *Error) WithVariant(language, platform string) *Error {
	e.Detail.Language = language
	e.Detail.Platform = platform
	return e
}

// WithExit records the exit code and captured output of an external process.
func (e *Error) WithExit(code int, output string) *Error {
	e.Detail.ExitCode = &code
	e.Detail.Output = output
	return e
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// GetDetail extracts the structured detail from an error, if available.
func GetDetail(err error) Detail {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return Detail{}
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// FullMessage returns the message of err including its cause, without the
// code prefix.
func FullMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return e.Message + ": " + e.Cause.Error()
		}
		return e.Message
	}
	return err.Error()
}

// TerminatesSession reports whether err ends the protocol session rather than
// only the current request. Only protocol errors do.
func TerminatesSession(err error) bool {
	return Is(err, ErrCodeProtocol)
}
