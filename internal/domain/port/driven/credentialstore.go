package driven

import (
	"context"

	"github.com/ctfrelay/ctfrelay/internal/domain/model"
)

// CredentialStore defines the driven port for credential persistence.
// Team-name uniqueness within an event is NOT enforced here; the dispatcher
// queries existing records and checks names before inserting. Individual
// operations are serialized by the adapter, but no multi-record transaction
// is assumed or required.
type CredentialStore interface {
	// FindByEvent returns all records for the given event id as a
	// materialized slice ordered by record id.
	FindByEvent(ctx context.Context, eventID int64) ([]model.CredentialRecord, error)

	// Insert stores a new record and returns its store-assigned id.
	Insert(ctx context.Context, rec model.CredentialRecord) (int64, error)

	// DeleteByID removes a single record. Deleting an id that does not
	// exist is not an error.
	DeleteByID(ctx context.Context, recordID int64) error

	// DeleteFinishedBefore removes every record whose event finish time is
	// strictly before cutoff (epoch seconds) and returns the removed count.
	DeleteFinishedBefore(ctx context.Context, cutoff int64) (int64, error)
}
