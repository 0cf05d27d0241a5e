package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/heartpipes/clubbot/internal/apperror"
	"github.com/heartpipes/clubbot/internal/model"
	"github.com/heartpipes/clubbot/internal/namefold"
	"github.com/heartpipes/clubbot/internal/repository"
)

var _ repository.PlayerRepository = (*DB)(nil)

// UpsertPlayer creates or updates a roster entry. The folded name is the primary
// key, so "Семён" and "семен" are the same player; the display name follows
// the most recent spelling the operator typed.
func (db *DB) UpsertPlayer(ctx context.Context, player *model.Player) error {
	now := time.Now()
	player.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO players (folded_name, name, rating, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (folded_name) DO UPDATE
		 SET name = excluded.name, rating = excluded.rating, updated_at = excluded.updated_at`,
		namefold.Fold(player.Name),
		player.Name,
		player.Rating,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting player: %w", err)
	}

	return nil
}

// DeletePlayer removes a roster entry and its card, reporting whether the player
// existed.
func (db *DB) DeletePlayer(ctx context.Context, foldedName string) (bool, error) {
	if err := db.DeleteCard(ctx, foldedName); err != nil {
		return false, err
	}

	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM players WHERE folded_name = ?`,
		foldedName,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: deleting player: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// ListPlayers returns the roster ordered by rating, highest first.
func (db *DB) ListPlayers(ctx context.Context) ([]model.Player, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT name, rating, created_at, updated_at
		 FROM players
		 ORDER BY rating DESC, name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing players: %w", err)
	}
	defer rows.Close()

	var players []model.Player
	for rows.Next() {
		var p model.Player
		if err := rows.Scan(&p.Name, &p.Rating, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning player row: %w", err)
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating players: %w", err)
	}

	return players, nil
}

// UpsertCard stores or replaces the transport file ID of a player's photo card.
func (db *DB) UpsertCard(ctx context.Context, card *model.PlayerCard) error {
	card.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO player_cards (folded_name, player_name, file_id, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (folded_name) DO UPDATE
		 SET player_name = excluded.player_name, file_id = excluded.file_id`,
		namefold.Fold(card.PlayerName),
		card.PlayerName,
		card.FileID,
		card.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting player card: %w", err)
	}

	return nil
}

// GetCard retrieves a player's photo card by folded name.
func (db *DB) GetCard(ctx context.Context, foldedName string) (*model.PlayerCard, error) {
	var card model.PlayerCard
	err := db.conn.QueryRowContext(ctx,
		`SELECT player_name, file_id, created_at FROM player_cards WHERE folded_name = ?`,
		foldedName,
	).Scan(&card.PlayerName, &card.FileID, &card.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("player card", foldedName)
		}
		return nil, fmt.Errorf("sqlite: getting player card: %w", err)
	}

	return &card, nil
}

// DeleteCard removes a player's photo card. Missing cards are not an error;
// most players never had one.
func (db *DB) DeleteCard(ctx context.Context, foldedName string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM player_cards WHERE folded_name = ?`,
		foldedName,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting player card: %w", err)
	}
	return nil
}
