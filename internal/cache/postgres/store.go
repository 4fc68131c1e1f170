// Package postgres stores payloads in a Postgres table through the pgx driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"dirsummary/internal/cache/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS dir_summaries (
    namespace TEXT NOT NULL,
    snapshot TEXT NOT NULL,
    payload BYTEA NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    PRIMARY KEY (namespace, snapshot)
);
`

type Store struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

// Open connects using a pgx DSN and checks the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return NewStore(db), nil
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, schema)
	})
	return s.schemaErr
}

func (s *Store) Get(ctx context.Context, key store.Key) ([]byte, bool, error) {
	if err := key.Validate(); err != nil {
		return nil, false, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, false, err
	}
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM dir_summaries WHERE namespace=$1 AND snapshot=$2`,
		key.Namespace(), string(key.Snapshot),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (s *Store) Put(ctx context.Context, key store.Key, payload []byte, force bool) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	if payload == nil {
		payload = []byte{}
	}
	if force {
		_, err := s.db.ExecContext(ctx, `
INSERT INTO dir_summaries (namespace, snapshot, payload, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (namespace, snapshot)
DO UPDATE SET payload=EXCLUDED.payload, updated_at=EXCLUDED.updated_at
`, key.Namespace(), string(key.Snapshot), payload, time.Now())
		return err
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO dir_summaries (namespace, snapshot, payload, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (namespace, snapshot) DO NOTHING
`, key.Namespace(), string(key.Snapshot), payload, time.Now())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", key, store.ErrExists)
	}
	return nil
}
