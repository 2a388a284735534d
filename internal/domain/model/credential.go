package model

// CredentialRecord is a stored team name/password pair for one event.
// EventTitle, EventStart, and EventFinish are denormalized copies taken at
// write time so the retention sweep never needs to re-fetch the event.
//
// The password is stored in plain text. That is a known limitation carried
// over from the system this replaces, not a design goal.
type CredentialRecord struct {
	RecordID     int64 // Assigned by the store on insert.
	EventID      int64
	TeamName     string
	TeamPassword string
	EventTitle   string
	EventStart   int64 // Epoch seconds.
	EventFinish  int64 // Epoch seconds; used solely by the retention sweep.
}
