package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PostgresStore keeps snapshots in a single jsonb table.
type PostgresStore struct {
	pool *Pool
}

// NewPostgresStore creates the table if needed and returns the store.
func NewPostgresStore(ctx context.Context, pool *Pool) (*PostgresStore, error) {
	const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    name     text PRIMARY KEY,
    state    jsonb NOT NULL,
    saved_at timestamptz NOT NULL DEFAULT now()
)`
	if _, err := pool.DB().Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("ensure snapshot schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Save(ctx context.Context, name string, state State) error {
	if !validName(name) {
		return fmt.Errorf("%w: %q", ErrBadName, name)
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	const q = `
INSERT INTO snapshots (name, state, saved_at)
VALUES ($1, $2, now())
ON CONFLICT (name) DO UPDATE SET state = EXCLUDED.state, saved_at = now()`
	if _, err := s.pool.DB().Exec(ctx, q, name, raw); err != nil {
		return fmt.Errorf("save snapshot %q: %w", name, err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, name string) (State, error) {
	if !validName(name) {
		return State{}, fmt.Errorf("%w: %q", ErrBadName, name)
	}
	var raw []byte
	err := s.pool.DB().QueryRow(ctx, `SELECT state FROM snapshots WHERE name = $1`, name).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return State{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return State{}, fmt.Errorf("load snapshot %q: %w", name, err)
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return State{}, fmt.Errorf("decode snapshot %q: %w", name, err)
	}
	return state, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.DB().Query(ctx, `SELECT name FROM snapshots ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan snapshot name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
