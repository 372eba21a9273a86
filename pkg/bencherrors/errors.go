// Package bencherrors provides structured error handling for chunkbench with
// rich context, stack traces, and error categorization. Every failure raised
// by a round trip carries an ErrorType so the batch runner can decide whether
// it aborts the run or only skips the offending file.
//
// # Overview
//
// The bencherrors package extends Go's standard error handling with:
//   - Error categorization through ErrorType
//   - Structured context with key-value details
//   - Automatic stack trace capture
//   - Error wrapping with cause preservation
//   - Batch policy predicates (IsFatal, IsRetryable)
//
// # Basic Usage
//
//	// Create a new error
//	err := bencherrors.New(bencherrors.ErrorTypeAppend, "chunk index out of sequence")
//
//	// Add context
//	err = err.WithDetail("expected", 3).
//	         WithDetail("got", 5)
//
//	// Wrap existing errors
//	if _, err := f.Read(buf); err != nil {
//	    return bencherrors.Wrap(err, bencherrors.ErrorTypeFileLoad, "read failed").
//	        WithDetail("file", path)
//	}
//
// # Error Types
//
// Setup and ledger errors abort the whole batch. Every other type is local to
// one file's round trip: the runner logs it and moves on. Nothing is retried,
// because the round trip itself is what is under test.
//
// # Thread Safety
//
// Error instances are not thread-safe for modification. Create new
// instances or use WithDetail before sharing across goroutines.
package bencherrors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error, used by the batch runner to
// apply its partial-failure policy and by logs and metrics as a label.
type ErrorType string

const (
	// ErrorTypeInternal represents internal invariant violations
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeSetup represents batch setup errors (arguments, input directory)
	ErrorTypeSetup ErrorType = "setup"
	// ErrorTypeLedger represents errors creating or writing the stats ledger
	ErrorTypeLedger ErrorType = "ledger"
	// ErrorTypeConfig represents invalid compression or tuning parameters
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeFileLoad represents open/read/allocation failures for one input
	ErrorTypeFileLoad ErrorType = "file_load"
	// ErrorTypeAppend represents a backend/container desynchronization on append
	ErrorTypeAppend ErrorType = "append"
	// ErrorTypeSizeMismatch represents a decompressed chunk of unexpected length
	ErrorTypeSizeMismatch ErrorType = "size_mismatch"
	// ErrorTypeIntegrity represents a byte mismatch between source and regenerated data
	ErrorTypeIntegrity ErrorType = "integrity"
	// ErrorTypeInvalidState represents an operation issued in the wrong session state
	ErrorTypeInvalidState ErrorType = "invalid_state"
	// ErrorTypeCodec represents a failure inside a compression codec
	ErrorTypeCodec ErrorType = "codec"
)

// Error represents a structured error with context, providing rich debugging
// information and enabling the runner's partial-failure policy.
//
// Fields:
//   - Type: Categorizes the error for handling strategies
//   - Message: Human-readable error description
//   - Cause: The underlying error that caused this error
//   - Details: Key-value pairs providing additional context
//   - Stack: Call stack at the point of error creation
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack, capturing
// the function name, file path, and line number for debugging.
type StackFrame struct {
	Function string // Fully qualified function name
	File     string // Source file path
	Line     int    // Line number in source file
}

// Error implements the error interface, returning a formatted error message
// that includes the error type, message, and cause (if present).
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error, enabling compatibility with errors.Is
// and errors.As for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error, providing additional context
// for debugging and logging. This method can be chained for adding multiple details.
//
// Example:
//
//	err := bencherrors.New(ErrorTypeSizeMismatch, "short chunk").
//	    WithDetail("chunk", 7).
//	    WithDetail("expected", 80).
//	    WithDetail("got", 72)
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message, automatically
// capturing the call stack at the point of creation.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf is New with a formatted message.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context, preserving the original
// error as the cause. If the error is already a structured Error, its stack
// trace is preserved. Returns nil if the input error is nil.
//
// Example:
//
//	data, err := os.ReadFile(path)
//	if err != nil {
//	    return bencherrors.Wrap(err, bencherrors.ErrorTypeFileLoad, "failed to read input").
//	        WithDetail("file", path)
//	}
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType checks if the error is of the given type. Only the outermost
// structured error in the chain is consulted, so a wrapped error reports the
// type it was re-classified as.
//
// Example:
//
//	if bencherrors.IsType(err, bencherrors.ErrorTypeIntegrity) {
//	    metrics.IntegrityFailures.Inc()
//	}
func IsType(err error, errType ErrorType) bool {
	return TypeOf(err) == errType
}

// TypeOf returns the type of the outermost structured error in the chain,
// or ErrorTypeInternal when err carries no classification. TypeOf(nil) is "".
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return ErrorTypeInternal
	}
	return e.Type
}

// IsFatal reports whether err must abort the whole batch rather than only
// the file being processed.
func IsFatal(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeSetup, ErrorTypeLedger:
		return true
	default:
		return false
	}
}

// IsRetryable always returns false. A failed round trip is a result, not a
// transient condition: append desynchronization, size mismatches and
// integrity failures are reported as-is.
func IsRetryable(err error) bool {
	return false
}

// DetailsOf returns the details of the outermost structured error, or nil.
func DetailsOf(err error) map[string]interface{} {
	var e *Error
	if !errors.As(err, &e) {
		return nil
	}
	return e.Details
}

// captureStack captures the current call stack up to maxFrames deep,
// skipping the specified number of frames from the top.
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
