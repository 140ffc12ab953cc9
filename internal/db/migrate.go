package db

import (
	"context"
	"database/sql"
)

const kvMigration = `
CREATE TABLE IF NOT EXISTS kv_entries (
    key text PRIMARY KEY,
    value text NOT NULL,
    expires_at timestamptz NOT NULL,
    updated_at timestamptz NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS kv_entries_expires_at_idx
ON kv_entries (expires_at);
`

// RunMigration creates the key-value table used by the Postgres store.
func RunMigration(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, kvMigration)
	return err
}
