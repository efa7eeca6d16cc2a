package errors

import (
	"errors"
	"fmt"
	"net/http"

	"elamid/pkg/runtime"
)

// Kind is the classification a failed launch is reported under.
type Kind int

const (
	KindUnknown Kind = iota
	KindRequest
	KindLauncher
	KindRuntime
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindLauncher:
		return "launcher"
	case KindRuntime:
		return "runtime"
	default:
		return "unknown"
	}
}

// Classify maps an error to its Kind. Classified launcher errors take
// precedence over the runtime error they may wrap.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var elamidErr *ElamidError
	if errors.As(err, &elamidErr) {
		switch elamidErr.Type {
		case ErrRequestInvalid:
			return KindRequest
		case ErrClientCreate, ErrImageNotFound, ErrContainerStart:
			return KindLauncher
		case ErrRuntimeFailed:
			return KindRuntime
		}
	}

	var clientErr *runtime.ClientError
	if errors.As(err, &clientErr) {
		return KindRuntime
	}

	return KindUnknown
}

// HTTPStatus is the status code a /run failure is answered with.
func HTTPStatus(err error) int {
	if Classify(err) == KindRequest {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Message renders the plain-text response body for a failed launch.
func Message(err error) string {
	switch Classify(err) {
	case KindRequest:
		return fmt.Sprintf("Elamid request error: %s", err)
	case KindLauncher:
		var elamidErr *ElamidError
		errors.As(err, &elamidErr)
		if elamidErr.OriginalErr == nil {
			return fmt.Sprintf("Elamid error: %s.", elamidErr.Context)
		}
		return fmt.Sprintf("Elamid error: %s. %v", elamidErr.Context, elamidErr.OriginalErr)
	case KindRuntime:
		return fmt.Sprintf("Elamid docker error: %s", err)
	default:
		return fmt.Sprintf("Unknown elamid error: %s", err)
	}
}
