// Package application contains the command dispatcher, response shaping, and
// the credential retention sweep.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ctfrelay/ctfrelay/internal/domain/model"
	"github.com/ctfrelay/ctfrelay/internal/domain/port/driven"
)

// Settings carries the tunables the dispatcher needs. Now is a test hook;
// when nil, time.Now is used.
type Settings struct {
	PrivilegedRole   string
	MaxLookaheadDays int
	EventLimit       int
	DisplayZone      *time.Location
	Now              func() time.Time
}

// Dispatcher interprets chat commands against the event API and the
// credential store. It is stateless: one command is one pass, and every
// failure is classified as a *CommandError recoverable at the boundary.
type Dispatcher struct {
	events driven.EventClient
	creds  driven.CredentialStore

	privilegedRole   string
	maxLookaheadDays int
	eventLimit       int
	zone             *time.Location
	now              func() time.Time
}

// NewDispatcher creates a Dispatcher with its two adapter dependencies.
func NewDispatcher(events driven.EventClient, creds driven.CredentialStore, settings Settings) *Dispatcher {
	now := settings.Now
	if now == nil {
		now = time.Now
	}

	return &Dispatcher{
		events:           events,
		creds:            creds,
		privilegedRole:   settings.PrivilegedRole,
		maxLookaheadDays: settings.MaxLookaheadDays,
		eventLimit:       settings.EventLimit,
		zone:             settings.DisplayZone,
		now:              now,
	}
}

// ListEvents fetches events in the next `days` days and emits one response
// per surviving event, in the order the API returned them. Onsite and
// non-Open events are skipped per the filters. An empty upstream result gets
// a distinct "no events" reply rather than an error.
func (d *Dispatcher) ListEvents(ctx context.Context, caller Caller, days int, filters ListFilters) ([]Response, error) {
	if caller.IsBot {
		return nil, nil
	}

	if days <= 0 || days > d.maxLookaheadDays {
		return nil, invalidArgument("days must be a positive integer no greater than %d", d.maxLookaheadDays)
	}

	start, end := ComputeWindow(days, d.now())

	events, err := d.events.ListEvents(ctx, d.eventLimit, start.Unix(), end.Unix())
	if err != nil {
		return nil, upstreamFailure(err)
	}

	if len(events) == 0 {
		return []Response{{Description: fmt.Sprintf("No events found in the next %d days", days)}}, nil
	}

	var out []Response
	for _, ev := range events {
		if filters.SkipNonOpen && !ev.Open() {
			continue
		}
		if filters.SkipOnsite && ev.Onsite {
			continue
		}

		resp, err := d.eventResponse(ctx, ev, true)
		if err != nil {
			return nil, err
		}
		out = append(out, resp)
	}

	slog.Debug("events listed", "caller", caller.Name, "days", days, "fetched", len(events), "surviving", len(out))

	return out, nil
}

// EventInfo answers a lookup for a single event. Numeric identifiers are
// fetched upstream; name-based search is an explicit placeholder, not a
// best-effort match.
func (d *Dispatcher) EventInfo(ctx context.Context, caller Caller, ref EventRef) ([]Response, error) {
	if caller.IsBot {
		return nil, nil
	}

	if !ref.IsID {
		return []Response{infoNotice(CommandEventInfo,
			"Searching events by name is not implemented yet; use the numeric event id")}, nil
	}

	ev, err := d.getEvent(ctx, ref.ID)
	if err != nil {
		return nil, err
	}

	resp, err := d.eventResponse(ctx, *ev, false)
	if err != nil {
		return nil, err
	}

	return []Response{resp}, nil
}

// SetCredentials records a team name/password pair for an event. With only
// an identifier it degrades to an event lookup. The duplicate-name check is
// query-then-decide at this layer; the store has no uniqueness constraint.
func (d *Dispatcher) SetCredentials(ctx context.Context, caller Caller, req SetCredentialsRequest) ([]Response, error) {
	if caller.IsBot {
		return nil, nil
	}

	ref := ParseEventRef(req.Identifier)
	if !ref.IsID {
		return nil, invalidArgument("event id must be an integer, got %q", req.Identifier)
	}

	if req.TeamName == "" && req.TeamPassword == "" {
		// Lookup-only path; no privileged role required.
		return d.EventInfo(ctx, caller, ref)
	}

	if req.TeamName == "" || req.TeamPassword == "" {
		return nil, invalidArgument("provide the event id, team name, and team password together")
	}

	if !caller.HasRole(d.privilegedRole) {
		return nil, permissionDenied(d.privilegedRole)
	}

	existing, err := d.creds.FindByEvent(ctx, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("loading credentials for event %d: %w", ref.ID, err)
	}

	overwrote := false
	for _, rec := range existing {
		if rec.TeamName != req.TeamName {
			continue
		}
		if !req.Overwrite {
			return nil, conflict("team %s already exists for event %d; set the overwrite flag to replace it",
				req.TeamName, ref.ID)
		}
		if err := d.creds.DeleteByID(ctx, rec.RecordID); err != nil {
			return nil, fmt.Errorf("deleting credential record %d: %w", rec.RecordID, err)
		}
		overwrote = true
		break
	}

	ev, err := d.getEvent(ctx, ref.ID)
	if err != nil {
		return nil, err
	}

	win, err := FormatWindow(ev.Start, ev.Finish, d.zone)
	if err != nil {
		return nil, err
	}

	rec := model.CredentialRecord{
		EventID:      ref.ID,
		TeamName:     req.TeamName,
		TeamPassword: req.TeamPassword,
		EventTitle:   ev.Title,
		EventStart:   win.StartEpoch,
		EventFinish:  win.FinishEpoch,
	}
	if _, err := d.creds.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("inserting credential record for event %d: %w", ref.ID, err)
	}

	slog.Info("credentials stored",
		"caller", caller.Name,
		"event_id", ref.ID,
		"team", req.TeamName,
		"overwrote", overwrote,
	)

	resp := Response{
		Title: "Credentials stored",
		Fields: []Field{
			{Name: "Event Name", Value: ev.Title},
			{Name: "Event ID", Value: strconv.FormatInt(ref.ID, 10)},
			{Name: "Team Name", Value: req.TeamName},
			{Name: "Team Password", Value: req.TeamPassword},
		},
		Attachment: d.fetchLogo(ctx, ev.Logo),
	}
	if overwrote {
		resp.Description = fmt.Sprintf("Team %s already existed for this event; the old password was overwritten", req.TeamName)
	}

	return []Response{resp}, nil
}

// PurgeOldCredentials is the forced, on-demand variant of the retention
// sweep. It performs the identical deletion and reports the removed count to
// the caller.
func (d *Dispatcher) PurgeOldCredentials(ctx context.Context, caller Caller, thresholdDays int) ([]Response, error) {
	if caller.IsBot {
		return nil, nil
	}

	if thresholdDays <= 0 {
		return nil, invalidArgument("threshold days must be a positive integer")
	}

	cutoff := d.now().Add(-time.Duration(thresholdDays) * 24 * time.Hour).Unix()

	count, err := d.creds.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("purging credential records: %w", err)
	}

	slog.Info("forced credential purge complete", "caller", caller.Name, "removed", count)

	return []Response{{Description: fmt.Sprintf("Removed %d credential records", count)}}, nil
}

// getEvent fetches one event, mapping a 404 to a distinct not-found failure
// and everything else to an upstream failure.
func (d *Dispatcher) getEvent(ctx context.Context, id int64) (*model.Event, error) {
	ev, err := d.events.GetEvent(ctx, id)
	if err != nil {
		var statusErr *driven.StatusError
		if errors.As(err, &statusErr) && statusErr.NotFound() {
			return nil, notFound("event %d not found", id)
		}
		return nil, upstreamFailure(err)
	}
	return ev, nil
}

// eventResponse shapes one event, its stored credentials, and its logo into
// a response. Listing includes the duration field; single-event lookups do not.
func (d *Dispatcher) eventResponse(ctx context.Context, ev model.Event, includeDuration bool) (Response, error) {
	win, err := FormatWindow(ev.Start, ev.Finish, d.zone)
	if err != nil {
		return Response{}, err
	}

	fields := []Field{
		{Name: "Name", Value: ev.Title, Inline: true},
		{Name: "Event ID", Value: strconv.FormatInt(ev.ID, 10), Inline: true},
		{Name: "URL", Value: ev.URL},
		{Name: "Start", Value: win.StartDisplay, Inline: true},
		{Name: "Finish", Value: win.FinishDisplay, Inline: true},
		{Name: "Format", Value: ev.Format, Inline: true},
	}

	if includeDuration && ev.Duration != nil {
		fields = append(fields, Field{
			Name:   "Duration",
			Value:  fmt.Sprintf("Days: %d\nHours: %d", ev.Duration.Days, ev.Duration.Hours),
			Inline: true,
		})
	}

	recs, err := d.creds.FindByEvent(ctx, ev.ID)
	if err != nil {
		return Response{}, fmt.Errorf("loading credentials for event %d: %w", ev.ID, err)
	}
	fields = append(fields, credentialFields(recs)...)

	if desc := truncateDescription(ev.Description); desc != "" {
		fields = append(fields, Field{Name: "Description", Value: desc})
	}

	return Response{
		Fields:     fields,
		Attachment: d.fetchLogo(ctx, ev.Logo),
	}, nil
}

// fetchLogo downloads an event thumbnail. A missing or unfetchable logo just
// means no attachment; it never fails the command.
func (d *Dispatcher) fetchLogo(ctx context.Context, logoURL string) *Attachment {
	if logoURL == "" {
		return nil
	}

	data, err := d.events.FetchLogo(ctx, logoURL)
	if err != nil {
		slog.Debug("logo fetch failed", "url", logoURL, "error", err)
		return nil
	}

	return &Attachment{Filename: "logo.png", Data: data}
}
