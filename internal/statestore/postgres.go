package statestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

const casMaxAttempts = 5

// PostgresStore keeps the state document in a single versioned row and
// updates it with compare-and-swap, so concurrent mergers from multiple
// hosts cannot clobber each other. It satisfies the same contract as
// FileStore and is selected for multi-host deployments.
type PostgresStore struct {
	db     *sqlx.DB
	name   string
	logger *slog.Logger
}

func NewPostgresStore(db *sqlx.DB, name string, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		name:   name,
		logger: logger.With("component", "statestore", "backend", "postgres"),
	}
}

func (s *PostgresStore) Load(ctx context.Context) (map[string]any, error) {
	_, state, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return state, nil
}

// Merge retries the read-merge-CAS loop until the version matches or the
// attempt budget runs out.
func (s *PostgresStore) Merge(ctx context.Context, updates map[string]any, protected []string) error {
	for attempt := 1; attempt <= casMaxAttempts; attempt++ {
		version, existing, err := s.current(ctx)
		if err != nil {
			return err
		}

		merged := mergeState(existing, updates, protected)
		data, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("marshal state: %w", err)
		}

		var done bool
		if version == 0 {
			done, err = s.insert(ctx, data)
		} else {
			done, err = s.swap(ctx, version, data)
		}
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		s.logger.Debug("state version moved, retrying merge", "attempt", attempt)
	}

	return fmt.Errorf("merge state %q: version conflict after %d attempts", s.name, casMaxAttempts)
}

func (s *PostgresStore) current(ctx context.Context) (int64, map[string]any, error) {
	var row struct {
		Version int64  `db:"version"`
		State   []byte `db:"state"`
	}
	query := `SELECT version, state FROM publish_state WHERE name = $1`

	err := s.db.GetContext(ctx, &row, query, s.name)
	if err == sql.ErrNoRows {
		return 0, map[string]any{}, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("read state row: %w", err)
	}

	var state map[string]any
	if err := json.Unmarshal(row.State, &state); err != nil {
		s.logger.Warn("state row corrupt, starting empty", "name", s.name, "error", err)
		return row.Version, map[string]any{}, nil
	}
	if state == nil {
		state = map[string]any{}
	}
	return row.Version, state, nil
}

func (s *PostgresStore) insert(ctx context.Context, data []byte) (bool, error) {
	query := `
		INSERT INTO publish_state (name, version, state)
		VALUES ($1, 1, $2)
		ON CONFLICT (name) DO NOTHING`

	res, err := s.db.ExecContext(ctx, query, s.name, data)
	if err != nil {
		return false, fmt.Errorf("insert state row: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert state row: %w", err)
	}
	return n == 1, nil
}

func (s *PostgresStore) swap(ctx context.Context, version int64, data []byte) (bool, error) {
	query := `
		UPDATE publish_state
		SET state = $1, version = version + 1, updated_at = NOW()
		WHERE name = $2 AND version = $3`

	res, err := s.db.ExecContext(ctx, query, data, s.name, version)
	if err != nil {
		return false, fmt.Errorf("update state row: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update state row: %w", err)
	}
	return n == 1, nil
}
