package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/heartpipes/clubbot/internal/model"
	"github.com/heartpipes/clubbot/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

// UpsertUser records a chat identity. First contact sets first_seen; every later
// contact refreshes last_seen and the display metadata (people rename
// themselves on the platform).
func (db *DB) UpsertUser(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.LastSeen = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, first_name, username, first_seen, last_seen)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE
		 SET first_name = excluded.first_name,
		     username = excluded.username,
		     last_seen = excluded.last_seen`,
		user.ID,
		user.FirstName,
		user.Username,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting user %d: %w", user.ID, err)
	}

	return nil
}

// ListUserIDs returns every known chat ID, for all-users broadcasts.
func (db *DB) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id FROM users ORDER BY first_seen ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing user ids: %w", err)
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
