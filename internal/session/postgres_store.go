package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore persists sessions as JSON rows. Schema creation is lazy and
// idempotent; Update runs under SELECT ... FOR UPDATE so concurrent writers
// to the same session serialize.
type PostgresStore struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
	log        *slog.Logger
}

// NewPostgresStore opens the pgx stdlib driver against dsn.
func NewPostgresStore(dsn string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("session: open postgres: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, log: logger.With("component", "session-store")}, nil
}

func (p *PostgresStore) Close() error { return p.db.Close() }

func (p *PostgresStore) ensureSchema(ctx context.Context) error {
	p.schemaOnce.Do(func() {
		_, p.schemaErr = p.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  state TEXT NOT NULL,
  payload JSONB NOT NULL,
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_sessions_state ON sessions (state);
`)
	})
	return p.schemaErr
}

func (p *PostgresStore) Put(ctx context.Context, s *Session) error {
	if err := p.ensureSchema(ctx); err != nil {
		return err
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: encode %s: %w", s.ID, err)
	}
	_, err = p.db.ExecContext(ctx, `
INSERT INTO sessions (id, state, payload, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id)
DO UPDATE SET state = EXCLUDED.state,
  payload = EXCLUDED.payload,
  updated_at = EXCLUDED.updated_at`,
		s.ID, string(s.State), payload, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("session: put %s: %w", s.ID, err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Session, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}
	row := p.db.QueryRowContext(ctx, `SELECT payload FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

func (p *PostgresStore) Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("session: begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT payload FROM sessions WHERE id = $1 FOR UPDATE`, id)
	s, err := scanSession(row)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("session: encode %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE sessions SET state = $2, payload = $3, updated_at = $4 WHERE id = $1`,
		id, string(s.State), payload, s.UpdatedAt); err != nil {
		return nil, fmt.Errorf("session: update %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("session: commit %s: %w", id, err)
	}
	return s, nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	if err := p.ensureSchema(ctx); err != nil {
		return err
	}
	_, err := p.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (p *PostgresStore) List(ctx context.Context) ([]*Session, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, `SELECT payload FROM sessions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("session: list: %w", err)
	}
	defer rows.Close()
	var out []*Session
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		s := &Session{}
		if err := json.Unmarshal(payload, s); err != nil || !s.State.Valid() {
			p.log.Warn("skipping corrupt session row", "err", err)
			continue
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

var _ Store = (*PostgresStore)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s := &Session{}
	if err := json.Unmarshal(payload, s); err != nil {
		return nil, fmt.Errorf("session: decode row: %w", err)
	}
	if !s.State.Valid() {
		return nil, fmt.Errorf("session: row has unknown state %q", s.State)
	}
	return s, nil
}
