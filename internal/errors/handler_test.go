package errors

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"elamid/internal/ui"
	"elamid/pkg/runtime"
)

func newTestHandler() (*ErrorHandler, *bytes.Buffer, *bytes.Buffer) {
	logBuf := &bytes.Buffer{}
	consoleBuf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(logBuf, nil))
	console := ui.NewConsoleWithWriters(&bytes.Buffer{}, consoleBuf)
	return NewErrorHandler(logger, console), logBuf, consoleBuf
}

func TestNewErrorHandler(t *testing.T) {
	handler := NewErrorHandler(nil, nil)

	if handler == nil {
		t.Fatal("NewErrorHandler() returned nil handler")
	}

	if handler.logger == nil {
		t.Error("ErrorHandler.logger is nil")
	}

	if handler.console == nil {
		t.Error("ErrorHandler.console is nil")
	}
}

func TestErrorHandler_Handle_ElamidError(t *testing.T) {
	handler, logBuf, consoleBuf := newTestHandler()

	testErr := NewImageNotFoundError(
		"Unable to find image elaai:latest",
		"The image is not present in the local image store",
		"Load or pull the image on this host before launching",
		errors.New("No such image: elaai:latest"),
	)

	handler.Handle(testErr)

	var record map[string]any
	if err := json.Unmarshal(logBuf.Bytes(), &record); err != nil {
		t.Fatalf("log output is not JSON: %v (%q)", err, logBuf.String())
	}
	expected := map[string]string{
		"msg":        "Elamid error occurred",
		"type":       "image_not_found",
		"kind":       "launcher",
		"context":    "Unable to find image elaai:latest",
		"error":      "No such image: elaai:latest",
		"suggestion": "Load or pull the image on this host before launching",
	}
	for key, want := range expected {
		if got := record[key]; got != want {
			t.Errorf("log attribute %q = %v, want %q", key, got, want)
		}
	}

	output := consoleBuf.String()
	for _, want := range []string{
		"Error: Unable to find image elaai:latest: No such image: elaai:latest",
		"Cause: The image is not present in the local image store",
		"Suggestion: Load or pull the image on this host before launching",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("console output %q does not contain %q", output, want)
		}
	}
}

func TestErrorHandler_Handle_GenericError(t *testing.T) {
	handler, logBuf, consoleBuf := newTestHandler()

	handler.Handle(&runtime.ClientError{Op: "remove container", Err: errors.New("permission denied")})

	if !strings.Contains(logBuf.String(), `"kind":"runtime"`) {
		t.Errorf("log output %q does not record the runtime kind", logBuf.String())
	}

	want := "Error: Elamid docker error: remove container: permission denied"
	if !strings.Contains(consoleBuf.String(), want) {
		t.Errorf("console output %q does not contain %q", consoleBuf.String(), want)
	}
}

func TestErrorHandler_Handle_NilError(t *testing.T) {
	handler, logBuf, consoleBuf := newTestHandler()

	handler.Handle(nil)

	if logBuf.Len() != 0 || consoleBuf.Len() != 0 {
		t.Error("Handle(nil) should not produce output")
	}
}

func TestGetErrorTypeName(t *testing.T) {
	tests := []struct {
		errorType error
		expected  string
	}{
		{ErrClientCreate, "client_create_failed"},
		{ErrImageNotFound, "image_not_found"},
		{ErrContainerStart, "container_start_failed"},
		{ErrRequestInvalid, "request_invalid"},
		{ErrConfigInvalid, "config_invalid"},
		{ErrRuntimeFailed, "runtime_failed"},
		{ErrFileSystemFailed, "filesystem_failed"},
		{errors.New("unknown"), "unknown"},
	}

	for _, test := range tests {
		result := getErrorTypeName(test.errorType)
		if result != test.expected {
			t.Errorf("getErrorTypeName(%v) = %q, want %q", test.errorType, result, test.expected)
		}
	}
}

func TestGetDefaultHandler(t *testing.T) {
	resetDefaultHandler()
	defer resetDefaultHandler()

	handler1 := GetDefaultHandler()
	handler2 := GetDefaultHandler()

	if handler1 != handler2 {
		t.Error("GetDefaultHandler() should return the same instance on multiple calls")
	}
}

func TestElamidError_Error(t *testing.T) {
	originalErr := errors.New("original error message")

	withCause := NewStartError("Unable to run container myelaai", "", "", originalErr)
	if got, want := withCause.Error(), "Unable to run container myelaai: original error message"; got != want {
		t.Errorf("ElamidError.Error() = %q, want %q", got, want)
	}

	withoutCause := NewStartError("Unable to run container myelaai", "", "", nil)
	if got, want := withoutCause.Error(), "Unable to run container myelaai"; got != want {
		t.Errorf("ElamidError.Error() = %q, want %q", got, want)
	}
}

func TestElamidError_UnwrapAndIs(t *testing.T) {
	originalErr := errors.New("original error message")
	elamidErr := NewClientError("context", "cause", "suggestion", originalErr)

	if elamidErr.Unwrap() != originalErr {
		t.Error("ElamidError.Unwrap() should return the original error")
	}

	wrapped := fmt.Errorf("launch: %w", elamidErr)
	if !errors.Is(wrapped, ErrClientCreate) {
		t.Error("errors.Is should match the sentinel type through wrapping")
	}
	if !errors.Is(wrapped, originalErr) {
		t.Error("errors.Is should reach the original error")
	}
	if errors.Is(wrapped, ErrContainerStart) {
		t.Error("errors.Is should not match an unrelated sentinel")
	}
}

func TestErrorConstructors(t *testing.T) {
	originalErr := errors.New("test error")

	tests := []struct {
		name         string
		constructor  func(string, string, string, error) *ElamidError
		expectedType error
	}{
		{"NewClientError", NewClientError, ErrClientCreate},
		{"NewImageNotFoundError", NewImageNotFoundError, ErrImageNotFound},
		{"NewStartError", NewStartError, ErrContainerStart},
		{"NewRequestError", NewRequestError, ErrRequestInvalid},
		{"NewConfigError", NewConfigError, ErrConfigInvalid},
		{"NewRuntimeError", NewRuntimeError, ErrRuntimeFailed},
		{"NewFileSystemError", NewFileSystemError, ErrFileSystemFailed},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.constructor("context", "cause", "suggestion", originalErr)

			if err.Type != test.expectedType {
				t.Errorf("%s created error with type %v, want %v", test.name, err.Type, test.expectedType)
			}

			if err.Context != "context" || err.Cause != "cause" || err.Suggestion != "suggestion" {
				t.Errorf("%s did not keep its message fields: %+v", test.name, err)
			}

			if err.OriginalErr != originalErr {
				t.Errorf("%s created error with originalErr %v, want %v", test.name, err.OriginalErr, originalErr)
			}
		})
	}
}

func TestClassifyAndMessage(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		expectKind    Kind
		expectStatus  int
		expectMessage string
	}{
		{
			name:          "request",
			err:           NewRequestError("ela_image is required", "", "", nil),
			expectKind:    KindRequest,
			expectStatus:  http.StatusBadRequest,
			expectMessage: "Elamid request error: ela_image is required",
		},
		{
			name:          "client creation",
			err:           NewClientError("Unable to create elamid client", "", "", errors.New("dial unix /var/run/docker.sock: connect: no such file or directory")),
			expectKind:    KindLauncher,
			expectStatus:  http.StatusInternalServerError,
			expectMessage: "Elamid error: Unable to create elamid client. dial unix /var/run/docker.sock: connect: no such file or directory",
		},
		{
			name:          "launcher error without cause",
			err:           NewImageNotFoundError("Unable to find image elaai:latest", "", "", nil),
			expectKind:    KindLauncher,
			expectStatus:  http.StatusInternalServerError,
			expectMessage: "Elamid error: Unable to find image elaai:latest.",
		},
		{
			name:          "launcher error wrapping a runtime error",
			err:           NewStartError("Unable to run container myelaai", "", "", &runtime.ClientError{Op: "start container", Err: errors.New("exec format error")}),
			expectKind:    KindLauncher,
			expectStatus:  http.StatusInternalServerError,
			expectMessage: "Elamid error: Unable to run container myelaai. start container: exec format error",
		},
		{
			name:          "runtime",
			err:           fmt.Errorf("clear slot: %w", &runtime.ClientError{Op: "stop container", Err: errors.New("daemon busy")}),
			expectKind:    KindRuntime,
			expectStatus:  http.StatusInternalServerError,
			expectMessage: "Elamid docker error: clear slot: stop container: daemon busy",
		},
		{
			name:          "unknown",
			err:           errors.New("boom"),
			expectKind:    KindUnknown,
			expectStatus:  http.StatusInternalServerError,
			expectMessage: "Unknown elamid error: boom",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Classify(test.err); got != test.expectKind {
				t.Errorf("Classify() = %v, want %v", got, test.expectKind)
			}
			if got := HTTPStatus(test.err); got != test.expectStatus {
				t.Errorf("HTTPStatus() = %d, want %d", got, test.expectStatus)
			}
			if got := Message(test.err); got != test.expectMessage {
				t.Errorf("Message() = %q, want %q", got, test.expectMessage)
			}
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	if got := Classify(nil); got != KindUnknown {
		t.Errorf("Classify(nil) = %v, want %v", got, KindUnknown)
	}
}
