package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createTimersTable = `
CREATE TABLE IF NOT EXISTS room_timers (
    room_id    TEXT PRIMARY KEY,
    started_at BIGINT NOT NULL
)`

// PostgresStore persists room timer instants in a one-row-per-room table.
// Suited to deployments where several server nodes share a database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the given DSN and ensures the timers table
// exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, createTimersTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure room_timers table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Load returns the stored start instant for a room, or ok=false when no row
// exists.
func (s *PostgresStore) Load(ctx context.Context, roomID string) (int64, bool, error) {
	var startedAt int64
	err := s.pool.QueryRow(ctx,
		`SELECT started_at FROM room_timers WHERE room_id = $1`, roomID,
	).Scan(&startedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load timer for room %s: %w", roomID, err)
	}
	return startedAt, true, nil
}

// Save upserts the start instant for a room.
func (s *PostgresStore) Save(ctx context.Context, roomID string, startedAt int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO room_timers (room_id, started_at) VALUES ($1, $2)
		 ON CONFLICT (room_id) DO UPDATE SET started_at = EXCLUDED.started_at`,
		roomID, startedAt,
	)
	if err != nil {
		return fmt.Errorf("save timer for room %s: %w", roomID, err)
	}
	return nil
}

// Delete removes a room's row. Deleting an absent row is not an error.
func (s *PostgresStore) Delete(ctx context.Context, roomID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM room_timers WHERE room_id = $1`, roomID); err != nil {
		return fmt.Errorf("delete timer for room %s: %w", roomID, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
