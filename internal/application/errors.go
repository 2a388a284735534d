package application

import (
	"errors"
	"fmt"

	"github.com/ctfrelay/ctfrelay/internal/domain/port/driven"
)

// ErrorKind classifies a command failure. Every kind is recovered at the
// command boundary and rendered as a transient notice; none crash the process.
type ErrorKind string

const (
	// KindInvalidArgument covers bad types, missing required fields, and
	// out-of-range values.
	KindInvalidArgument ErrorKind = "invalid_argument"
	// KindPermissionDenied means the caller lacks the privileged role.
	KindPermissionDenied ErrorKind = "permission_denied"
	// KindNotFound means the event id is unknown upstream.
	KindNotFound ErrorKind = "not_found"
	// KindConflict means a duplicate team name without the overwrite flag.
	KindConflict ErrorKind = "conflict"
	// KindUpstream covers non-2xx answers and transport failures from the
	// event listing API.
	KindUpstream ErrorKind = "upstream"
	// KindParse means the upstream delivered a malformed timestamp.
	KindParse ErrorKind = "parse"
)

// CommandError is a classified command failure. Status is set for upstream
// failures that carry an HTTP status code.
type CommandError struct {
	Kind    ErrorKind
	Message string
	Status  int
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// AsCommandError unwraps err to a *CommandError if one is in its chain.
func AsCommandError(err error) (*CommandError, bool) {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr, true
	}
	return nil, false
}

func invalidArgument(format string, args ...any) error {
	return &CommandError{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

func permissionDenied(role string) error {
	return &CommandError{
		Kind:    KindPermissionDenied,
		Message: fmt.Sprintf("this command requires the %s role", role),
	}
}

func notFound(format string, args ...any) error {
	return &CommandError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func conflict(format string, args ...any) error {
	return &CommandError{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func parseFailure(err error) error {
	return &CommandError{Kind: KindParse, Message: "event has a malformed timestamp", Err: err}
}

// upstreamFailure folds any event API failure into a KindUpstream error,
// preserving the HTTP status when the cause is a *driven.StatusError.
func upstreamFailure(err error) error {
	var statusErr *driven.StatusError
	if errors.As(err, &statusErr) {
		return &CommandError{
			Kind:    KindUpstream,
			Message: fmt.Sprintf("event API returned status %d", statusErr.StatusCode),
			Status:  statusErr.StatusCode,
			Err:     err,
		}
	}
	return &CommandError{Kind: KindUpstream, Message: "event API is unreachable", Err: err}
}
