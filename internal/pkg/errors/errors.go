// Package errors provides coded errors for the pipeline. Codes follow the
// orchestrator's failure taxonomy so stage boundaries can decide between
// descriptor mutation, republish-and-retry, and log-and-drop.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Code categorizes an error for boundary handling.
type Code string

const (
	CodeInternal   Code = "INTERNAL_ERROR"
	CodeValidation Code = "VALIDATION_ERROR"
	CodeNotFound   Code = "NOT_FOUND"
	CodeTimeout    Code = "TIMEOUT"

	// CodeResolution marks a definitive source-resolution failure after the
	// retry budget is exhausted; recorded as mediaUrl=false.
	CodeResolution Code = "RESOLUTION_FAILED"
	// CodeRender marks a render process failure (non-zero exit or spawn
	// error); recorded as videoUri=false, never retried.
	CodeRender Code = "RENDER_FAILED"
	// CodeStoreIO marks an object store failure; the step is treated as not
	// having happened.
	CodeStoreIO Code = "STORE_IO_ERROR"
	// CodeMalformed marks a descriptor whose fields match no runnable stage;
	// logged and dropped.
	CodeMalformed Code = "MALFORMED_DESCRIPTOR"
)

// Error is a coded error with operation context and a captured stack.
type Error struct {
	Code    Code
	Message string
	// Op is the operation that failed (e.g., "pipeline.render").
	Op    string
	Err   error
	Stack []Frame
}

// Frame is a single captured stack frame.
type Frame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Code != "" {
		b.WriteString("[")
		b.WriteString(string(e.Code))
		b.WriteString("] ")
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on code so sentinel comparisons work across wrapping.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus maps the code to a status for the ops surface.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeValidation, CodeMalformed:
		return 400
	case CodeNotFound:
		return 404
	case CodeTimeout:
		return 504
	default:
		return 500
	}
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Stack: captureStack(2)}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Stack: captureStack(2)}
}

// Wrap wraps err with operation context, preserving an existing code.
func Wrap(err error, op string, message string) *Error {
	if err == nil {
		return nil
	}
	code := CodeInternal
	var e *Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return &Error{Code: code, Message: message, Op: op, Err: err, Stack: captureStack(2)}
}

// WrapWithCode wraps err under a specific code.
func WrapWithCode(err error, code Code, op string, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Op: op, Err: err, Stack: captureStack(2)}
}

// GetCode extracts the code from any error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode checks whether err carries the given code.
func IsCode(err error, code Code) bool { return GetCode(err) == code }

// StackTrace formats the captured stack.
func (e *Error) StackTrace() string {
	if len(e.Stack) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range e.Stack {
		fmt.Fprintf(&b, "  %s:%d %s\n", f.File, f.Line, f.Function)
	}
	return b.String()
}

func captureStack(skip int) []Frame {
	const maxDepth = 32
	var pcs [maxDepth]uintptr
	n := runtime.Callers(skip+1, pcs[:])

	frames := make([]Frame, 0, n)
	callersFrames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := callersFrames.Next()
		if strings.Contains(frame.File, "runtime/") {
			if !more {
				break
			}
			continue
		}
		frames = append(frames, Frame{File: frame.File, Line: frame.Line, Function: frame.Function})
		if !more || len(frames) >= 10 {
			break
		}
	}
	return frames
}

// As is a convenience wrapper for errors.As.
func As(err error, target any) bool { return errors.As(err, target) }

// Is is a convenience wrapper for errors.Is.
func Is(err, target error) bool { return errors.Is(err, target) }
