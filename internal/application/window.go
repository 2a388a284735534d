package application

import (
	"time"
)

// displayTimeLayout renders instants the way the chat channel expects:
// "13 Jan 2026 05:00:00 PM CST".
const displayTimeLayout = "02 Jan 2006 03:04:05 PM MST"

// ComputeWindow converts a requested day count into a [now, now+days]
// timestamp pair. It performs no validation; range checks are the
// dispatcher's job.
func ComputeWindow(days int, now time.Time) (start, end time.Time) {
	return now, now.Add(time.Duration(days) * 24 * time.Hour)
}

// Window holds an event's start/finish pair normalized for display and for
// denormalized storage.
type Window struct {
	StartDisplay  string
	StartEpoch    int64
	FinishDisplay string
	FinishEpoch   int64
}

// FormatWindow parses an ISO-8601 start/finish pair, converts both to the
// display zone, and yields display strings plus epoch seconds. A malformed
// input yields a KindParse command error; it propagates as a command failure,
// never a crash.
func FormatWindow(startISO, finishISO string, zone *time.Location) (*Window, error) {
	start, err := time.Parse(time.RFC3339, startISO)
	if err != nil {
		return nil, parseFailure(err)
	}

	finish, err := time.Parse(time.RFC3339, finishISO)
	if err != nil {
		return nil, parseFailure(err)
	}

	return &Window{
		StartDisplay:  start.In(zone).Format(displayTimeLayout),
		StartEpoch:    start.Unix(),
		FinishDisplay: finish.In(zone).Format(displayTimeLayout),
		FinishEpoch:   finish.Unix(),
	}, nil
}
