package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(CodeMalformed, "missing image data")

	if err.Code != CodeMalformed {
		t.Errorf("expected code=%s, got %s", CodeMalformed, err.Code)
	}
	if err.Message != "missing image data" {
		t.Errorf("expected message='missing image data', got %s", err.Message)
	}
	if len(err.Stack) == 0 {
		t.Error("expected stack trace to be captured")
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CodeNotFound, "object %s not found", "watch/abc.json")

	if err.Code != CodeNotFound {
		t.Errorf("expected code=%s, got %s", CodeNotFound, err.Code)
	}
	if err.Message != "object watch/abc.json not found" {
		t.Errorf("expected formatted message, got %s", err.Message)
	}
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name:     "simple error",
			err:      New(CodeRender, "ffmpeg exited 1"),
			contains: []string{"RENDER_FAILED", "ffmpeg exited 1"},
		},
		{
			name: "error with op",
			err: &Error{
				Code:    CodeStoreIO,
				Message: "upload failed",
				Op:      "pipeline.republish",
			},
			contains: []string{"pipeline.republish", "STORE_IO_ERROR", "upload failed"},
		},
		{
			name: "error with underlying",
			err: &Error{
				Code:    CodeResolution,
				Message: "retries exhausted",
				Err:     fmt.Errorf("selector timeout"),
			},
			contains: []string{"RESOLUTION_FAILED", "retries exhausted", "selector timeout"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.err.Error()
			for _, want := range tt.contains {
				if !strings.Contains(s, want) {
					t.Errorf("expected %q to contain %q", s, want)
				}
			}
		})
	}
}

func TestWrapPreservesCode(t *testing.T) {
	inner := New(CodeResolution, "no download link")
	wrapped := Wrap(inner, "pipeline.resolve", "resolution stage failed")

	if wrapped.Code != CodeResolution {
		t.Errorf("expected preserved code %s, got %s", CodeResolution, wrapped.Code)
	}
	if !errors.Is(wrapped, inner) {
		t.Error("expected wrapped error to match inner via errors.Is")
	}
}

func TestWrapPlainError(t *testing.T) {
	wrapped := Wrap(fmt.Errorf("boom"), "op", "context")
	if wrapped.Code != CodeInternal {
		t.Errorf("expected default code %s, got %s", CodeInternal, wrapped.Code)
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "op", "msg") != nil {
		t.Error("expected Wrap(nil) to be nil")
	}
	if WrapWithCode(nil, CodeRender, "op", "msg") != nil {
		t.Error("expected WrapWithCode(nil) to be nil")
	}
}

func TestWrapWithCode(t *testing.T) {
	wrapped := WrapWithCode(fmt.Errorf("exit status 1"), CodeRender, "renderer.run", "process failed")
	if wrapped.Code != CodeRender {
		t.Errorf("expected code %s, got %s", CodeRender, wrapped.Code)
	}
}

func TestGetCode(t *testing.T) {
	t.Run("coded error", func(t *testing.T) {
		if got := GetCode(New(CodeMalformed, "x")); got != CodeMalformed {
			t.Errorf("expected %s, got %s", CodeMalformed, got)
		}
	})

	t.Run("wrapped coded error", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", New(CodeStoreIO, "x"))
		if got := GetCode(err); got != CodeStoreIO {
			t.Errorf("expected %s, got %s", CodeStoreIO, got)
		}
	})

	t.Run("plain error", func(t *testing.T) {
		if got := GetCode(fmt.Errorf("plain")); got != CodeInternal {
			t.Errorf("expected %s, got %s", CodeInternal, got)
		}
	})
}

func TestIsCode(t *testing.T) {
	err := WrapWithCode(fmt.Errorf("x"), CodeResolution, "op", "msg")
	if !IsCode(err, CodeResolution) {
		t.Error("expected IsCode to match")
	}
	if IsCode(err, CodeRender) {
		t.Error("expected IsCode not to match a different code")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeValidation, 400},
		{CodeMalformed, 400},
		{CodeNotFound, 404},
		{CodeTimeout, 504},
		{CodeStoreIO, 500},
		{CodeInternal, 500},
	}
	for _, tt := range tests {
		if got := New(tt.code, "x").HTTPStatus(); got != tt.want {
			t.Errorf("code %s: expected %d, got %d", tt.code, tt.want, got)
		}
	}
}

func TestStackTrace(t *testing.T) {
	err := New(CodeInternal, "x")
	if !strings.Contains(err.StackTrace(), "errors_test.go") {
		t.Errorf("expected stack trace to include test file, got:\n%s", err.StackTrace())
	}
}
