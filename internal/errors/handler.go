package errors

import (
	"context"
	"errors"
	"log/slog"

	"elamid/internal/ui"
)

// ErrorHandler reports errors to the operator: structured to the log and
// formatted to the console.
type ErrorHandler struct {
	logger  *slog.Logger
	console *ui.Console
}

func NewErrorHandler(logger *slog.Logger, console *ui.Console) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if console == nil {
		console = ui.NewConsole()
	}
	return &ErrorHandler{
		logger:  logger,
		console: console,
	}
}

func (h *ErrorHandler) Handle(err error) {
	if err == nil {
		return
	}

	var elamidErr *ElamidError
	if errors.As(err, &elamidErr) {
		h.handleElamidError(elamidErr)
	} else {
		h.handleGenericError(err)
	}
}

func (h *ErrorHandler) handleElamidError(err *ElamidError) {
	h.logStructuredError(err)

	summary := err.Context
	if err.OriginalErr != nil {
		summary = err.Error()
	}
	message := h.console.FormatErrorMessage(summary, err.Cause, err.Suggestion)
	h.console.PrintError(message)
}

func (h *ErrorHandler) handleGenericError(err error) {
	h.logger.Error("Unhandled error occurred",
		"error", err.Error(),
		"type", "generic",
		"kind", Classify(err).String(),
	)

	h.console.PrintError(Message(err))
}

func (h *ErrorHandler) logStructuredError(err *ElamidError) {
	logAttrs := []slog.Attr{
		slog.String("type", getErrorTypeName(err.Type)),
		slog.String("kind", Classify(err).String()),
		slog.String("context", err.Context),
	}

	if err.OriginalErr != nil {
		logAttrs = append(logAttrs, slog.String("error", err.OriginalErr.Error()))
	}

	if err.Cause != "" {
		logAttrs = append(logAttrs, slog.String("cause", err.Cause))
	}

	if err.Suggestion != "" {
		logAttrs = append(logAttrs, slog.String("suggestion", err.Suggestion))
	}

	h.logger.LogAttrs(context.TODO(), slog.LevelError, "Elamid error occurred", logAttrs...)
}

func getErrorTypeName(errType error) string {
	switch errType {
	case ErrClientCreate:
		return "client_create_failed"
	case ErrImageNotFound:
		return "image_not_found"
	case ErrContainerStart:
		return "container_start_failed"
	case ErrRequestInvalid:
		return "request_invalid"
	case ErrConfigInvalid:
		return "config_invalid"
	case ErrRuntimeFailed:
		return "runtime_failed"
	case ErrFileSystemFailed:
		return "filesystem_failed"
	default:
		return "unknown"
	}
}
