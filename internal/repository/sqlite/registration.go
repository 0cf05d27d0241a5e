package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/heartpipes/clubbot/internal/apperror"
	"github.com/heartpipes/clubbot/internal/model"
	"github.com/heartpipes/clubbot/internal/repository"
)

var _ repository.RegistrationRepository = (*DB)(nil)

// InsertIfCapacity claims a seat with a single conditional INSERT: the row is
// written only if the live registration count is still below the event's
// capacity and the event is still scheduled. A single statement executes
// atomically under SQLite's writer lock, so two processes racing for the
// last seat cannot both pass the count check — this is where the capacity
// invariant is enforced, not in application code.
//
// Returns false when the seat count (or the event's status) blocked the
// insert. A folded-name clash trips the UNIQUE(event_id, folded_name) index
// and comes back as apperror.ErrDuplicateName.
func (db *DB) InsertIfCapacity(ctx context.Context, reg *model.Registration) (bool, error) {
	reg.ID = xid.New().String()
	reg.CreatedAt = time.Now()

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO registrations (id, event_id, name, folded_name, user_id, created_at)
		 SELECT ?, ?, ?, ?, ?, ?
		 WHERE (SELECT COUNT(*) FROM registrations WHERE event_id = ?)
		       < (SELECT capacity FROM events WHERE id = ? AND status = ?)`,
		reg.ID,
		reg.EventID,
		reg.Name,
		reg.FoldedName,
		reg.UserID,
		reg.CreatedAt,
		reg.EventID,
		reg.EventID,
		model.EventScheduled,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			// Report the spelling of the registration that holds the seat,
			// not the one that just lost the race for it.
			existing := reg.Name
			_ = db.conn.QueryRowContext(ctx,
				`SELECT name FROM registrations WHERE event_id = ? AND folded_name = ?`,
				reg.EventID, reg.FoldedName,
			).Scan(&existing)
			return false, apperror.DuplicateName(reg.Name, existing)
		}
		return false, fmt.Errorf("sqlite: inserting registration: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// DeleteRegistration removes the registration with the given folded name and reports
// whether a row matched. Deleting an absent registration is not an error
// here; the admission layer decides how to report it.
func (db *DB) DeleteRegistration(ctx context.Context, eventID, foldedName string) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM registrations WHERE event_id = ? AND folded_name = ?`,
		eventID, foldedName,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: deleting registration: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// ListRegistrations returns an event's registrations in sign-up order.
func (db *DB) ListRegistrations(ctx context.Context, eventID string) ([]model.Registration, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, event_id, name, folded_name, user_id, created_at
		 FROM registrations
		 WHERE event_id = ?
		 ORDER BY created_at ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		var r model.Registration
		if err := rows.Scan(&r.ID, &r.EventID, &r.Name, &r.FoldedName, &r.UserID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning registration row: %w", err)
		}
		regs = append(regs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating registrations: %w", err)
	}

	return regs, nil
}

// CountRegistrations returns the number of registrations on an event.
func (db *DB) CountRegistrations(ctx context.Context, eventID string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations WHERE event_id = ?`,
		eventID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting registrations: %w", err)
	}
	return count, nil
}

// RegistrantUserIDs returns the distinct chat IDs behind an event's
// registrations. Registrations entered by hand carry user_id 0 and are
// skipped — there is nowhere to deliver to.
func (db *DB) RegistrantUserIDs(ctx context.Context, eventID string) ([]int64, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM registrations WHERE event_id = ? AND user_id != 0`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing registrant user ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating user ids: %w", err)
	}

	return ids, nil
}
