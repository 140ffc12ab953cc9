// Package db backs the session store with a Postgres key-value table for
// deployments that already run Postgres and no Redis.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"invite-service/internal/store"

	_ "github.com/lib/pq"
)

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}
	return sqlDB, nil
}

// Store implements store.Store on the kv_entries table. Expired rows are
// invisible to reads and removed lazily or by Sweep.
type Store struct {
	DB  *sql.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db, now: time.Now}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var (
		value     string
		expiresAt time.Time
	)
	err := s.DB.QueryRowContext(ctx,
		`SELECT value, expires_at FROM kv_entries WHERE key = $1`, key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("db: get %s: %w", key, err)
	}

	if !s.now().Before(expiresAt) {
		_, err := s.DB.ExecContext(ctx,
			`DELETE FROM kv_entries WHERE key = $1 AND expires_at <= $2`, key, s.now(),
		)
		if err != nil {
			return "", fmt.Errorf("db: expire %s: %w", key, err)
		}
		return "", store.ErrNotFound
	}
	return value, nil
}

// Set writes value and its expiry in one statement.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("db: ttl must be positive for %s", key)
	}
	now := s.now()
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO kv_entries (key, value, expires_at, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (key) DO UPDATE
SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at`,
		key, value, now.Add(ttl), now,
	)
	if err != nil {
		return fmt.Errorf("db: set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = $1`, key); err != nil {
		return fmt.Errorf("db: delete %s: %w", key, err)
	}
	return nil
}

// Sweep removes every expired row and reports how many went.
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM kv_entries WHERE expires_at <= $1`, s.now())
	if err != nil {
		return 0, fmt.Errorf("db: sweep: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.DB.Close()
}
