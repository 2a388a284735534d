package model

// Duration is the advertised length of a competition.
type Duration struct {
	Days  int
	Hours int
}

// Event is a competition record sourced from the CTFtime listing API.
// Events are read-only from this system's perspective; they are never
// mutated or written back upstream.
type Event struct {
	ID           int64
	Title        string
	URL          string
	Format       string
	Description  string
	Start        string // ISO-8601 timestamp as delivered by the API.
	Finish       string // ISO-8601 timestamp as delivered by the API.
	Restrictions string
	Onsite       bool
	Logo         string // Optional thumbnail URL; empty when absent.
	Duration     *Duration
}

// Open reports whether the event has no participation restrictions.
// Only "Open" events are eligible for listing.
func (e Event) Open() bool {
	return e.Restrictions == "Open"
}
