package application

import (
	"time"

	"github.com/ctfrelay/ctfrelay/internal/domain/model"
)

// noCredentialsSentinel is shown when an event has no stored credentials.
const noCredentialsSentinel = "None recorded"

// descriptionLimit caps event descriptions for display.
const descriptionLimit = 1024

// Field is one labeled value inside a response.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Attachment is an optional binary payload, rendered by the platform layer
// as a thumbnail.
type Attachment struct {
	Filename string
	Data     []byte
}

// Response is the abstract reply the dispatcher emits. The chat platform is
// responsible for rendering it as a rich message and, for ephemeral
// responses, deleting it after DeleteAfter.
type Response struct {
	Title       string
	Description string
	Fields      []Field
	Attachment  *Attachment
	Ephemeral   bool
	DeleteAfter time.Duration
}

// infoNotice builds a transient informational response for the given command.
func infoNotice(cmd Command, message string) Response {
	return Response{
		Description: message,
		Ephemeral:   true,
		DeleteAfter: noticeTTL(cmd),
	}
}

// NoticeFromError renders a command failure as a transient, user-visible
// notice. The delete-after delay matches the originating command. Unknown
// (non-command) errors get a generic message so internal details never reach
// the channel.
func NoticeFromError(cmd Command, err error) Response {
	message := "Something went wrong, try again later"
	if cmdErr, ok := AsCommandError(err); ok {
		message = "Error: " + cmdErr.Message
	}

	return Response{
		Description: message,
		Ephemeral:   true,
		DeleteAfter: noticeTTL(cmd),
	}
}

// credentialFields renders stored credentials for one event.
//
//   - no records: sentinel "None recorded" fields
//   - exactly one: a single name/password pair
//   - two or more: name and password columns joined with ",\n", positionally
//     aligned (name[i] corresponds to password[i]) and never independently
//     reordered
func credentialFields(recs []model.CredentialRecord) []Field {
	switch len(recs) {
	case 0:
		return []Field{
			{Name: "Team Name", Value: noCredentialsSentinel, Inline: true},
			{Name: "Team Password", Value: noCredentialsSentinel, Inline: true},
		}
	case 1:
		return []Field{
			{Name: "Team Name", Value: recs[0].TeamName, Inline: true},
			{Name: "Team Password", Value: recs[0].TeamPassword, Inline: true},
		}
	default:
		var names, passwords string
		for i, rec := range recs {
			if i > 0 {
				names += ",\n"
				passwords += ",\n"
			}
			names += rec.TeamName
			passwords += rec.TeamPassword
		}
		return []Field{
			{Name: "Team Names", Value: names, Inline: true},
			{Name: "Team Passwords", Value: passwords, Inline: true},
		}
	}
}

// truncateDescription caps a description at descriptionLimit characters for
// display, cutting on a rune boundary so multi-byte text stays valid UTF-8.
// Returns "" for empty input so callers can omit the field entirely.
func truncateDescription(desc string) string {
	if len(desc) <= descriptionLimit {
		return desc
	}

	runes := []rune(desc)
	if len(runes) <= descriptionLimit {
		return desc
	}
	return string(runes[:descriptionLimit])
}
