package driven

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ctfrelay/ctfrelay/internal/domain/model"
)

// StatusError reports a non-success status from the event listing API.
// It distinguishes "not found" from other upstream failures so callers can
// give a distinct answer for an unknown event id.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("event API returned status %d", e.StatusCode)
}

// NotFound reports whether the upstream answered 404.
func (e *StatusError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// EventClient defines the driven port for the remote event listing API.
// Every call has a bounded outcome: success, *StatusError for a non-2xx
// answer, or a transport error. Implementations must not hang.
type EventClient interface {
	// ListEvents fetches up to limit events whose window overlaps
	// [start, finish] (epoch seconds), in the order the API returns them.
	ListEvents(ctx context.Context, limit int, start, finish int64) ([]model.Event, error)

	// GetEvent fetches a single event by id. An unknown id surfaces as a
	// *StatusError with NotFound() == true.
	GetEvent(ctx context.Context, id int64) (*model.Event, error)

	// FetchLogo downloads an event's thumbnail image. Failure to fetch a
	// logo is never fatal to a command; callers drop the attachment.
	FetchLogo(ctx context.Context, logoURL string) ([]byte, error)
}
