package sqlite

import (
	"context"
	"fmt"

	"github.com/ctfrelay/ctfrelay/internal/domain/model"
	"github.com/ctfrelay/ctfrelay/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port.
type CredentialRepo struct {
	db *DB
}

// NewCredentialRepo creates a new CredentialRepo.
func NewCredentialRepo(db *DB) *CredentialRepo {
	return &CredentialRepo{db: db}
}

// FindByEvent returns all records for the given event id, ordered by record
// id so the dispatcher's name/password columns stay positionally aligned.
func (r *CredentialRepo) FindByEvent(ctx context.Context, eventID int64) ([]model.CredentialRecord, error) {
	const query = `SELECT id, event_id, team_name, team_password, event_title, event_start, event_finish
		FROM credential_records WHERE event_id = ? ORDER BY id`

	rows, err := r.db.Reader.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("find credentials for event %d: %w", eventID, err)
	}
	defer rows.Close()

	var recs []model.CredentialRecord
	for rows.Next() {
		var rec model.CredentialRecord
		if err := rows.Scan(
			&rec.RecordID,
			&rec.EventID,
			&rec.TeamName,
			&rec.TeamPassword,
			&rec.EventTitle,
			&rec.EventStart,
			&rec.EventFinish,
		); err != nil {
			return nil, fmt.Errorf("scan credential record: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credential records: %w", err)
	}

	return recs, nil
}

// Insert stores a new record and returns its assigned id.
func (r *CredentialRepo) Insert(ctx context.Context, rec model.CredentialRecord) (int64, error) {
	const query = `INSERT INTO credential_records
		(event_id, team_name, team_password, event_title, event_start, event_finish)
		VALUES (?, ?, ?, ?, ?, ?)`

	res, err := r.db.Writer.ExecContext(ctx, query,
		rec.EventID,
		rec.TeamName,
		rec.TeamPassword,
		rec.EventTitle,
		rec.EventStart,
		rec.EventFinish,
	)
	if err != nil {
		return 0, fmt.Errorf("insert credential record for event %d: %w", rec.EventID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted record id: %w", err)
	}

	return id, nil
}

// DeleteByID removes a single record. Deleting a nonexistent id is a no-op.
func (r *CredentialRepo) DeleteByID(ctx context.Context, recordID int64) error {
	const query = `DELETE FROM credential_records WHERE id = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, recordID); err != nil {
		return fmt.Errorf("delete credential record %d: %w", recordID, err)
	}
	return nil
}

// DeleteFinishedBefore removes every record whose event finished strictly
// before cutoff (epoch seconds) and returns the number removed.
func (r *CredentialRepo) DeleteFinishedBefore(ctx context.Context, cutoff int64) (int64, error) {
	const query = `DELETE FROM credential_records WHERE event_finish < ?`

	res, err := r.db.Writer.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete credential records finished before %d: %w", cutoff, err)
	}

	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted credential records: %w", err)
	}

	return count, nil
}
