package errors

import (
	"errors"
	"fmt"
)

var (
	ErrClientCreate     = errors.New("container runtime client creation failed")
	ErrImageNotFound    = errors.New("image not found")
	ErrContainerStart   = errors.New("container start failed")
	ErrRequestInvalid   = errors.New("run request invalid")
	ErrConfigInvalid    = errors.New("configuration invalid")
	ErrRuntimeFailed    = errors.New("runtime operation failed")
	ErrFileSystemFailed = errors.New("filesystem operation failed")
)

// ElamidError carries a classified failure together with the message shown
// to the caller and, where available, the error that caused it.
type ElamidError struct {
	Type        error
	Context     string
	Cause       string
	Suggestion  string
	OriginalErr error
}

func (e *ElamidError) Error() string {
	if e.OriginalErr == nil {
		return e.Context
	}
	return fmt.Sprintf("%s: %v", e.Context, e.OriginalErr)
}

func (e *ElamidError) Unwrap() error {
	return e.OriginalErr
}

// Is matches the sentinel the error was created with.
func (e *ElamidError) Is(target error) bool {
	return e.Type == target
}

func NewElamidError(errorType error, context, cause, suggestion string, originalErr error) *ElamidError {
	return &ElamidError{
		Type:        errorType,
		Context:     context,
		Cause:       cause,
		Suggestion:  suggestion,
		OriginalErr: originalErr,
	}
}

func NewClientError(context, cause, suggestion string, originalErr error) *ElamidError {
	return NewElamidError(ErrClientCreate, context, cause, suggestion, originalErr)
}

func NewImageNotFoundError(context, cause, suggestion string, originalErr error) *ElamidError {
	return NewElamidError(ErrImageNotFound, context, cause, suggestion, originalErr)
}

func NewStartError(context, cause, suggestion string, originalErr error) *ElamidError {
	return NewElamidError(ErrContainerStart, context, cause, suggestion, originalErr)
}

func NewRequestError(context, cause, suggestion string, originalErr error) *ElamidError {
	return NewElamidError(ErrRequestInvalid, context, cause, suggestion, originalErr)
}

func NewConfigError(context, cause, suggestion string, originalErr error) *ElamidError {
	return NewElamidError(ErrConfigInvalid, context, cause, suggestion, originalErr)
}

func NewRuntimeError(context, cause, suggestion string, originalErr error) *ElamidError {
	return NewElamidError(ErrRuntimeFailed, context, cause, suggestion, originalErr)
}

func NewFileSystemError(context, cause, suggestion string, originalErr error) *ElamidError {
	return NewElamidError(ErrFileSystemFailed, context, cause, suggestion, originalErr)
}
