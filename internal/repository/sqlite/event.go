package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/heartpipes/clubbot/internal/apperror"
	"github.com/heartpipes/clubbot/internal/model"
	"github.com/heartpipes/clubbot/internal/repository"
)

var _ repository.EventRepository = (*DB)(nil)

// CreateEvent inserts a new event, filling in ID, status, and timestamps.
func (db *DB) CreateEvent(ctx context.Context, event *model.Event) error {
	event.ID = xid.New().String()
	event.Status = model.EventScheduled

	now := time.Now()
	event.CreatedAt = now
	event.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO events (id, title, starts_at, ends_at, capacity, location, price, host, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Title,
		event.StartsAt,
		event.EndsAt,
		event.Capacity,
		event.Location,
		event.Price,
		event.Host,
		event.Status,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating event: %w", err)
	}

	return nil
}

// GetEvent retrieves a single event by its ID.
func (db *DB) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	var e model.Event
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, title, starts_at, ends_at, capacity, location, price, host, status, created_at, updated_at
		 FROM events
		 WHERE id = ?`,
		id,
	).Scan(
		&e.ID, &e.Title, &e.StartsAt, &e.EndsAt, &e.Capacity,
		&e.Location, &e.Price, &e.Host, &e.Status, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("event", id)
		}
		return nil, fmt.Errorf("sqlite: getting event %s: %w", id, err)
	}

	return &e, nil
}

// ListOpenEvents returns scheduled events ordered by start time, soonest first.
func (db *DB) ListOpenEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, title, starts_at, ends_at, capacity, location, price, host, status, created_at, updated_at
		 FROM events
		 WHERE status = ?
		 ORDER BY starts_at ASC`,
		model.EventScheduled,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing open events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(
			&e.ID, &e.Title, &e.StartsAt, &e.EndsAt, &e.Capacity,
			&e.Location, &e.Price, &e.Host, &e.Status, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning event row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating events: %w", err)
	}

	return events, nil
}

// UpdateEvent rewrites the mutable fields of an event.
func (db *DB) UpdateEvent(ctx context.Context, event *model.Event) error {
	event.UpdatedAt = time.Now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE events
		 SET title = ?, starts_at = ?, ends_at = ?, capacity = ?, location = ?, price = ?, host = ?, updated_at = ?
		 WHERE id = ?`,
		event.Title,
		event.StartsAt,
		event.EndsAt,
		event.Capacity,
		event.Location,
		event.Price,
		event.Host,
		event.UpdatedAt,
		event.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating event %s: %w", event.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("event", event.ID)
	}

	return nil
}

// SetEventStatus changes an event's status. Cancelled events keep their
// registrations; they just stop admitting new ones.
func (db *DB) SetEventStatus(ctx context.Context, id, status string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE events SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting event %s status: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("event", id)
	}

	return nil
}
