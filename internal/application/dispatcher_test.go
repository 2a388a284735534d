package application_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctfrelay/ctfrelay/internal/application"
	"github.com/ctfrelay/ctfrelay/internal/domain/model"
	"github.com/ctfrelay/ctfrelay/internal/domain/port/driven"
)

// testNow is the fixed clock all dispatcher tests run against.
var testNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

// --- Fake ports ---

type fakeEventClient struct {
	events  []model.Event
	logo    []byte
	listErr error
	getErr  error

	listCalls int
	getCalls  int
	logoCalls int
}

func (f *fakeEventClient) ListEvents(_ context.Context, _ int, _, _ int64) ([]model.Event, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.events, nil
}

func (f *fakeEventClient) GetEvent(_ context.Context, id int64) (*model.Event, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, ev := range f.events {
		if ev.ID == id {
			found := ev
			return &found, nil
		}
	}
	return nil, &driven.StatusError{StatusCode: http.StatusNotFound}
}

func (f *fakeEventClient) FetchLogo(_ context.Context, _ string) ([]byte, error) {
	f.logoCalls++
	if f.logo == nil {
		return nil, errors.New("logo unavailable")
	}
	return f.logo, nil
}

type fakeCredentialStore struct {
	records []model.CredentialRecord
	nextID  int64

	findErr     error
	insertCalls int
	deleteCalls int
}

func (f *fakeCredentialStore) FindByEvent(_ context.Context, eventID int64) ([]model.CredentialRecord, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []model.CredentialRecord
	for _, rec := range f.records {
		if rec.EventID == eventID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeCredentialStore) Insert(_ context.Context, rec model.CredentialRecord) (int64, error) {
	f.insertCalls++
	f.nextID++
	rec.RecordID = f.nextID
	f.records = append(f.records, rec)
	return rec.RecordID, nil
}

func (f *fakeCredentialStore) DeleteByID(_ context.Context, recordID int64) error {
	f.deleteCalls++
	for i, rec := range f.records {
		if rec.RecordID == recordID {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeCredentialStore) DeleteFinishedBefore(_ context.Context, cutoff int64) (int64, error) {
	var kept []model.CredentialRecord
	var removed int64
	for _, rec := range f.records {
		if rec.EventFinish < cutoff {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	f.records = kept
	return removed, nil
}

// --- Test environment ---

type testEnv struct {
	events *fakeEventClient
	creds  *fakeCredentialStore
}

func newTestEnv(t *testing.T) (*application.Dispatcher, *testEnv) {
	t.Helper()

	env := &testEnv{
		events: &fakeEventClient{},
		creds:  &fakeCredentialStore{},
	}

	d := application.NewDispatcher(env.events, env.creds, application.Settings{
		PrivilegedRole:   "Cabinet",
		MaxLookaheadDays: 30,
		EventLimit:       100,
		DisplayZone:      time.UTC,
		Now:              func() time.Time { return testNow },
	})

	return d, env
}

func regularCaller() application.Caller {
	return application.Caller{Name: "alice", Roles: []string{"Member"}}
}

func cabinetCaller() application.Caller {
	return application.Caller{Name: "trent", Roles: []string{"Member", "Cabinet"}}
}

func openEvent(id int64, title string, opts ...func(*model.Event)) model.Event {
	ev := model.Event{
		ID:           id,
		Title:        title,
		URL:          "https://example.ctf/",
		Format:       "Jeopardy",
		Description:  "An example competition",
		Start:        "2026-09-10T00:00:00Z",
		Finish:       "2026-09-12T00:00:00Z",
		Restrictions: "Open",
	}
	for _, opt := range opts {
		opt(&ev)
	}
	return ev
}

func withDescription(desc string) func(*model.Event) {
	return func(ev *model.Event) { ev.Description = desc }
}

func hasField(resp application.Response, name string) bool {
	for _, f := range resp.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func fieldValue(t *testing.T, resp application.Response, name string) string {
	t.Helper()
	for _, f := range resp.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	t.Fatalf("response has no field %q", name)
	return ""
}

func requireKind(t *testing.T, err error, kind application.ErrorKind) *application.CommandError {
	t.Helper()
	require.Error(t, err)
	cmdErr, ok := application.AsCommandError(err)
	require.True(t, ok, "expected a command error, got %v", err)
	require.Equal(t, kind, cmdErr.Kind)
	return cmdErr
}

// --- list_events ---

func TestListEvents_RejectsOutOfRangeDaysWithoutUpstreamCall(t *testing.T) {
	for _, days := range []int{0, -1, 31, 1000} {
		d, env := newTestEnv(t)

		_, err := d.ListEvents(context.Background(), regularCaller(), days, application.DefaultListFilters())
		requireKind(t, err, application.KindInvalidArgument)
		assert.Zero(t, env.events.listCalls, "days=%d must be rejected before calling the event API", days)
	}
}

func TestListEvents_AcceptsFullRange(t *testing.T) {
	for _, days := range []int{1, 7, 30} {
		d, env := newTestEnv(t)
		env.events.events = []model.Event{openEvent(1, "Open CTF")}

		responses, err := d.ListEvents(context.Background(), regularCaller(), days, application.DefaultListFilters())
		require.NoError(t, err, "days=%d", days)
		assert.Len(t, responses, 1)
	}
}

func TestListEvents_FiltersOnsiteAndRestricted(t *testing.T) {
	d, env := newTestEnv(t)
	env.events.events = []model.Event{
		openEvent(1, "Onsite CTF", func(ev *model.Event) { ev.Onsite = true }),
		openEvent(2, "Verified CTF", func(ev *model.Event) { ev.Restrictions = "Verified" }),
		openEvent(3, "Open CTF"),
	}

	responses, err := d.ListEvents(context.Background(), regularCaller(), 7, application.DefaultListFilters())
	require.NoError(t, err)

	require.Len(t, responses, 1, "exactly one response, for the open event")
	assert.Equal(t, "Open CTF", fieldValue(t, responses[0], "Name"))
	assert.Equal(t, "3", fieldValue(t, responses[0], "Event ID"))
}

func TestListEvents_OneResponsePerEventInAdapterOrder(t *testing.T) {
	d, env := newTestEnv(t)
	env.events.events = []model.Event{
		openEvent(30, "Charlie CTF"),
		openEvent(10, "Alpha CTF"),
		openEvent(20, "Bravo CTF"),
	}

	responses, err := d.ListEvents(context.Background(), regularCaller(), 7, application.DefaultListFilters())
	require.NoError(t, err)

	require.Len(t, responses, 3, "never batches multiple events into one response")
	assert.Equal(t, "Charlie CTF", fieldValue(t, responses[0], "Name"))
	assert.Equal(t, "Alpha CTF", fieldValue(t, responses[1], "Name"))
	assert.Equal(t, "Bravo CTF", fieldValue(t, responses[2], "Name"))
}

func TestListEvents_NoEventsIsDistinctFromFailure(t *testing.T) {
	d, _ := newTestEnv(t)

	responses, err := d.ListEvents(context.Background(), regularCaller(), 7, application.DefaultListFilters())
	require.NoError(t, err)

	require.Len(t, responses, 1)
	assert.Contains(t, responses[0].Description, "No events found")
	assert.False(t, responses[0].Ephemeral)
}

func TestListEvents_UpstreamStatusCarried(t *testing.T) {
	d, env := newTestEnv(t)
	env.events.listErr = &driven.StatusError{StatusCode: http.StatusServiceUnavailable}

	_, err := d.ListEvents(context.Background(), regularCaller(), 7, application.DefaultListFilters())
	cmdErr := requireKind(t, err, application.KindUpstream)
	assert.Equal(t, http.StatusServiceUnavailable, cmdErr.Status)
}

func TestListEvents_TransportFailureFoldsIntoUpstream(t *testing.T) {
	d, env := newTestEnv(t)
	env.events.listErr = errors.New("dial tcp: connection refused")

	_, err := d.ListEvents(context.Background(), regularCaller(), 7, application.DefaultListFilters())
	requireKind(t, err, application.KindUpstream)
}

func TestListEvents_IncludesDurationWhenPresent(t *testing.T) {
	d, env := newTestEnv(t)
	env.events.events = []model.Event{
		openEvent(1, "Timed CTF", func(ev *model.Event) {
			ev.Duration = &model.Duration{Days: 2, Hours: 6}
		}),
	}

	responses, err := d.ListEvents(context.Background(), regularCaller(), 7, application.DefaultListFilters())
	require.NoError(t, err)
	require.Len(t, responses, 1)

	assert.Equal(t, "Days: 2\nHours: 6", fieldValue(t, responses[0], "Duration"))
}

func TestListEvents_CredentialRendering(t *testing.T) {
	d, env := newTestEnv(t)
	env.events.events = []model.Event{openEvent(1, "Solo"), openEvent(2, "None"), openEvent(3, "Crowded")}
	env.creds.records = []model.CredentialRecord{
		{RecordID: 1, EventID: 1, TeamName: "solo-team", TeamPassword: "pw1", EventFinish: 1},
		{RecordID: 2, EventID: 3, TeamName: "first", TeamPassword: "pw-a", EventFinish: 1},
		{RecordID: 3, EventID: 3, TeamName: "second", TeamPassword: "pw-b", EventFinish: 1},
		{RecordID: 4, EventID: 3, TeamName: "third", TeamPassword: "pw-c", EventFinish: 1},
	}

	responses, err := d.ListEvents(context.Background(), regularCaller(), 7, application.DefaultListFilters())
	require.NoError(t, err)
	require.Len(t, responses, 3)

	// Exactly one record is its own case, not the original's broken branch.
	assert.Equal(t, "solo-team", fieldValue(t, responses[0], "Team Name"))
	assert.Equal(t, "pw1", fieldValue(t, responses[0], "Team Password"))

	assert.Equal(t, "None recorded", fieldValue(t, responses[1], "Team Name"))
	assert.Equal(t, "None recorded", fieldValue(t, responses[1], "Team Password"))

	// Name and password columns stay positionally aligned.
	assert.Equal(t, "first,\nsecond,\nthird", fieldValue(t, responses[2], "Team Names"))
	assert.Equal(t, "pw-a,\npw-b,\npw-c", fieldValue(t, responses[2], "Team Passwords"))
}

func TestListEvents_LogoAttachedWhenFetchable(t *testing.T) {
	d, env := newTestEnv(t)
	env.events.logo = []byte{0x89, 0x50, 0x4e, 0x47}
	env.events.events = []model.Event{
		openEvent(1, "With Logo", func(ev *model.Event) { ev.Logo = "https://example.ctf/logo.png" }),
		openEvent(2, "Without Logo"),
	}

	responses, err := d.ListEvents(context.Background(), regularCaller(), 7, application.DefaultListFilters())
	require.NoError(t, err)
	require.Len(t, responses, 2)

	require.NotNil(t, responses[0].Attachment)
	assert.Equal(t, "logo.png", responses[0].Attachment.Filename)
	assert.Nil(t, responses[1].Attachment)
	assert.Equal(t, 1, env.events.logoCalls, "no fetch attempted for events without a logo URL")
}

func TestListEvents_LogoFetchFailureIsNotFatal(t *testing.T) {
	d, env := newTestEnv(t)
	env.events.events = []model.Event{
		openEvent(1, "Broken Logo", func(ev *model.Event) { ev.Logo = "https://example.ctf/gone.png" }),
	}

	responses, err := d.ListEvents(context.Background(), regularCaller(), 7, application.DefaultListFilters())
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Nil(t, responses[0].Attachment)
}

func TestListEvents_MalformedTimestampFailsCommand(t *testing.T) {
	d, env := newTestEnv(t)
	env.events.events = []model.Event{
		openEvent(1, "Bad Clock", func(ev *model.Event) { ev.Start = "sometime soon" }),
	}

	_, err := d.ListEvents(context.Background(), regularCaller(), 7, application.DefaultListFilters())
	requireKind(t, err, application.KindParse)
}

func TestListEvents_IgnoresBotCallers(t *testing.T) {
	d, env := newTestEnv(t)
	env.events.events = []model.Event{openEvent(1, "Open CTF")}

	responses, err := d.ListEvents(context.Background(), application.Caller{Name: "beep", IsBot: true}, 7, application.DefaultListFilters())
	require.NoError(t, err)
	assert.Empty(t, responses)
	assert.Zero(t, env.events.listCalls)
}

// --- event_info ---

func TestEventInfo_ByID(t *testing.T) {
	d, env := newTestEnv(t)
	env.events.events = []model.Event{
		openEvent(77, "Lookup CTF", func(ev *model.Event) {
			ev.Duration = &model.Duration{Days: 1, Hours: 0}
		}),
	}

	responses, err := d.EventInfo(context.Background(), regularCaller(), application.EventRef{ID: 77, IsID: true})
	require.NoError(t, err)
	require.Len(t, responses, 1)

	assert.Equal(t, "Lookup CTF", fieldValue(t, responses[0], "Name"))
	assert.Equal(t, "77", fieldValue(t, responses[0], "Event ID"))
	assert.False(t, hasField(responses[0], "Duration"), "single-event lookups do not show duration")
}

func TestEventInfo_NotFound(t *testing.T) {
	d, _ := newTestEnv(t)

	_, err := d.EventInfo(context.Background(), regularCaller(), application.EventRef{ID: 404, IsID: true})
	requireKind(t, err, application.KindNotFound)
}

func TestEventInfo_UpstreamError(t *testing.T) {
	d, env := newTestEnv(t)
	env.events.getErr = &driven.StatusError{StatusCode: http.StatusInternalServerError}

	_, err := d.EventInfo(context.Background(), regularCaller(), application.EventRef{ID: 1, IsID: true})
	cmdErr := requireKind(t, err, application.KindUpstream)
	assert.Equal(t, http.StatusInternalServerError, cmdErr.Status)
}

func TestEventInfo_NameSearchIsExplicitPlaceholder(t *testing.T) {
	d, env := newTestEnv(t)

	responses, err := d.EventInfo(context.Background(), regularCaller(), application.EventRef{Name: "DEF CON Quals"})
	require.NoError(t, err)

	require.Len(t, responses, 1)
	assert.True(t, responses[0].Ephemeral)
	assert.Contains(t, responses[0].Description, "not implemented")
	assert.Zero(t, env.events.getCalls, "no best-effort match is attempted")
}

// --- set_credentials ---

func setCredsReq(id, team, password string, overwrite bool) application.SetCredentialsRequest {
	return application.SetCredentialsRequest{
		Identifier:   id,
		TeamName:     team,
		TeamPassword: password,
		Overwrite:    overwrite,
	}
}

func TestSetCredentials_CreatesRecordWithDenormalizedEvent(t *testing.T) {
	d, env := newTestEnv(t)
	env.events.events = []model.Event{openEvent(50, "Fresh CTF")}

	responses, err := d.SetCredentials(context.Background(), cabinetCaller(), setCredsReq("50", "iasg", "hunter2", false))
	require.NoError(t, err)

	require.Len(t, env.creds.records, 1)
	rec := env.creds.records[0]
	assert.Equal(t, int64(50), rec.EventID)
	assert.Equal(t, "iasg", rec.TeamName)
	assert.Equal(t, "hunter2", rec.TeamPassword)
	assert.Equal(t, "Fresh CTF", rec.EventTitle)
	assert.Equal(t, time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC).Unix(), rec.EventStart)
	assert.Equal(t, time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC).Unix(), rec.EventFinish)

	require.Len(t, responses, 1)
	assert.Equal(t, "Credentials stored", responses[0].Title)
	assert.Empty(t, responses[0].Description, "non-overwrite confirmation carries no overwrite note")
	assert.Equal(t, "iasg", fieldValue(t, responses[0], "Team Name"))
	assert.Equal(t, "hunter2", fieldValue(t, responses[0], "Team Password"))
}

func TestSetCredentials_DuplicateWithoutOverwriteConflicts(t *testing.T) {
	d, env := newTestEnv(t)
	env.events.events = []model.Event{openEvent(50, "Fresh CTF")}

	_, err := d.SetCredentials(context.Background(), cabinetCaller(), setCredsReq("50", "iasg", "hunter2", false))
	require.NoError(t, err)

	_, err = d.SetCredentials(context.Background(), cabinetCaller(), setCredsReq("50", "iasg", "other", false))
	requireKind(t, err, application.KindConflict)

	require.Len(t, env.creds.records, 1, "store unchanged on conflict")
	assert.Equal(t, "hunter2", env.creds.records[0].TeamPassword)
	assert.Zero(t, env.creds.deleteCalls)
}

func TestSetCredentials_OverwriteReplacesRecord(t *testing.T) {
	d, env := newTestEnv(t)
	env.events.events = []model.Event{openEvent(50, "Fresh CTF")}

	_, err := d.SetCredentials(context.Background(), cabinetCaller(), setCredsReq("50", "iasg", "hunter2", false))
	require.NoError(t, err)

	responses, err := d.SetCredentials(context.Background(), cabinetCaller(), setCredsReq("50", "iasg", "correct-horse", true))
	require.NoError(t, err)

	require.Len(t, env.creds.records, 1, "exactly one record per (event, team) after overwrite")
	assert.Equal(t, "correct-horse", env.creds.records[0].TeamPassword)
	assert.Equal(t, 1, env.creds.deleteCalls)

	require.Len(t, responses, 1)
	assert.Contains(t, responses[0].Description, "overwritten")
}

func TestSetCredentials_DistinctTeamsCoexist(t *testing.T) {
	d, env := newTestEnv(t)
	env.events.events = []model.Event{openEvent(50, "Fresh CTF")}

	_, err := d.SetCredentials(context.Background(), cabinetCaller(), setCredsReq("50", "red", "pw1", false))
	require.NoError(t, err)
	_, err = d.SetCredentials(context.Background(), cabinetCaller(), setCredsReq("50", "blue", "pw2", false))
	require.NoError(t, err)

	assert.Len(t, env.creds.records, 2)
}

func TestSetCredentials_WithoutRoleDeniedBeforeAnySideEffect(t *testing.T) {
	d, env := newTestEnv(t)
	env.events.events = []model.Event{openEvent(50, "Fresh CTF")}

	_, err := d.SetCredentials(context.Background(), regularCaller(), setCredsReq("50", "iasg", "hunter2", false))
	requireKind(t, err, application.KindPermissionDenied)

	assert.Empty(t, env.creds.records)
	assert.Zero(t, env.creds.insertCalls)
	assert.Zero(t, env.creds.deleteCalls)
	assert.Zero(t, env.events.getCalls, "no upstream call for unauthorized callers")
}

func TestSetCredentials_NonIntegerIdentifier(t *testing.T) {
	d, _ := newTestEnv(t)

	_, err := d.SetCredentials(context.Background(), cabinetCaller(), setCredsReq("not-a-number", "iasg", "hunter2", false))
	requireKind(t, err, application.KindInvalidArgument)
}

func TestSetCredentials_PartialFieldsRejected(t *testing.T) {
	d, env := newTestEnv(t)

	_, err := d.SetCredentials(context.Background(), cabinetCaller(), setCredsReq("50", "iasg", "", false))
	requireKind(t, err, application.KindInvalidArgument)

	_, err = d.SetCredentials(context.Background(), cabinetCaller(), setCredsReq("50", "", "hunter2", false))
	requireKind(t, err, application.KindInvalidArgument)

	assert.Empty(t, env.creds.records)
}

func TestSetCredentials_IdentifierOnlyDelegatesToLookup(t *testing.T) {
	d, env := newTestEnv(t)
	env.events.events = []model.Event{openEvent(50, "Fresh CTF")}

	responses, err := d.SetCredentials(context.Background(), regularCaller(), setCredsReq("50", "", "", false))
	require.NoError(t, err, "lookup path requires no privileged role")

	require.Len(t, responses, 1)
	assert.Equal(t, "Fresh CTF", fieldValue(t, responses[0], "Name"))
	assert.Zero(t, env.creds.insertCalls)
}

func TestSetCredentials_UnknownEventUpstream(t *testing.T) {
	d, env := newTestEnv(t)

	_, err := d.SetCredentials(context.Background(), cabinetCaller(), setCredsReq("9999", "iasg", "hunter2", false))
	requireKind(t, err, application.KindNotFound)
	assert.Zero(t, env.creds.insertCalls)
}

// --- purge_old_credentials ---

func agedRecord(eventID int64, finishedDaysAgo int) model.CredentialRecord {
	return model.CredentialRecord{
		RecordID:    eventID,
		EventID:     eventID,
		TeamName:    "team",
		EventFinish: testNow.Add(-time.Duration(finishedDaysAgo) * 24 * time.Hour).Unix(),
	}
}

func TestPurgeOldCredentials_DeletesOnlyAgedOutRecords(t *testing.T) {
	d, env := newTestEnv(t)
	env.creds.records = []model.CredentialRecord{
		agedRecord(1, 8),
		agedRecord(2, 6),
	}

	responses, err := d.PurgeOldCredentials(context.Background(), cabinetCaller(), 7)
	require.NoError(t, err)

	require.Len(t, env.creds.records, 1)
	assert.Equal(t, int64(2), env.creds.records[0].EventID, "records inside the retention window survive")

	require.Len(t, responses, 1)
	assert.Contains(t, responses[0].Description, "Removed 1")
}

func TestPurgeOldCredentials_ReportsZeroWhenNothingAged(t *testing.T) {
	d, env := newTestEnv(t)
	env.creds.records = []model.CredentialRecord{agedRecord(1, 2)}

	responses, err := d.PurgeOldCredentials(context.Background(), cabinetCaller(), 7)
	require.NoError(t, err)

	require.Len(t, responses, 1)
	assert.Contains(t, responses[0].Description, "Removed 0")
	assert.Len(t, env.creds.records, 1)
}

func TestPurgeOldCredentials_RejectsNonPositiveThreshold(t *testing.T) {
	d, _ := newTestEnv(t)

	_, err := d.PurgeOldCredentials(context.Background(), cabinetCaller(), 0)
	requireKind(t, err, application.KindInvalidArgument)
}
