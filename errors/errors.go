// Package errors defines the typed failure taxonomy shared by the detection
// pipeline. Every terminal failure carries a machine-readable Code so the
// transport layer can distinguish input-caused from system-caused errors
// without parsing message strings.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code identifies a failure class
type Code string

const (
	// CodeUnsupportedFormat - audio bytes could not be decoded
	CodeUnsupportedFormat Code = "UNSUPPORTED_FORMAT"

	// CodeAudioTooShort - waveform below the minimum duration after trimming
	CodeAudioTooShort Code = "AUDIO_TOO_SHORT"

	// CodeAudioTooLong - clip exceeds the processing cap
	CodeAudioTooLong Code = "AUDIO_TOO_LONG"

	// CodeFeatureDegenerate - extraction produced non-finite values
	CodeFeatureDegenerate Code = "FEATURE_DEGENERATE"

	// CodeModelUnavailable - no trained classifier artifact is loaded
	CodeModelUnavailable Code = "MODEL_UNAVAILABLE"

	// CodeModelContractMismatch - artifact's feature ordering/version
	// disagrees with the running extractor
	CodeModelContractMismatch Code = "MODEL_CONTRACT_MISMATCH"

	// CodeInternal - unexpected system-side failure
	CodeInternal Code = "INTERNAL"
)

// Error is a failure tagged with its taxonomy code
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	cause   error
}

// New creates an error with the given code and message
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an error with a formatted message
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error with the given code, message and cause
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// CodeOf returns the taxonomy code of err, or CodeInternal for untagged errors
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// IsClientInput reports whether the code describes a failure caused by the
// caller's input rather than by the serving system
func IsClientInput(code Code) bool {
	switch code {
	case CodeUnsupportedFormat, CodeAudioTooShort, CodeAudioTooLong, CodeFeatureDegenerate:
		return true
	default:
		return false
	}
}
