package application

import (
	"strconv"
	"strings"
	"time"
)

// Command names the four commands the dispatcher understands. The platform
// layer parses the raw chat message and invokes the matching method.
type Command string

const (
	CommandListEvents Command = "list_events"
	CommandEventInfo  Command = "event_info"
	CommandSetCreds   Command = "set_credentials"
	CommandPurge      Command = "purge_old_credentials"
)

// Caller identifies who issued a command. Roles come from the chat platform;
// IsBot marks automated senders, whose commands are dropped to prevent
// feedback loops.
type Caller struct {
	Name  string
	Roles []string
	IsBot bool
}

// HasRole reports whether the caller holds the named role.
func (c Caller) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// EventRef is the parsed form of an event identifier argument, which may be
// a numeric id or a free-text name.
type EventRef struct {
	ID   int64
	Name string
	IsID bool
}

// ParseEventRef classifies a raw identifier argument as a numeric id or a
// name. Downstream code consumes the variant uniformly instead of coercing
// the raw string in several places.
func ParseEventRef(raw string) EventRef {
	trimmed := strings.TrimSpace(raw)
	if id, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return EventRef{ID: id, IsID: true}
	}
	return EventRef{Name: trimmed}
}

// ListFilters controls which events survive listing.
type ListFilters struct {
	SkipOnsite  bool
	SkipNonOpen bool
}

// DefaultListFilters matches the command's documented defaults: onsite and
// non-Open events are skipped.
func DefaultListFilters() ListFilters {
	return ListFilters{SkipOnsite: true, SkipNonOpen: true}
}

// SetCredentialsRequest carries the set_credentials arguments. Empty
// TeamName and TeamPassword together select the lookup-only path.
type SetCredentialsRequest struct {
	Identifier   string
	TeamName     string
	TeamPassword string
	Overwrite    bool
}

// noticeTTL returns how long the platform should keep a transient notice
// visible before auto-deleting it, matching the originating command.
func noticeTTL(cmd Command) time.Duration {
	if cmd == CommandListEvents {
		return 5 * time.Second
	}
	return 10 * time.Second
}
