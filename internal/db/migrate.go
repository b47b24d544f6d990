package db

import (
	"context"
	"database/sql"
)

const sessionMigration = `
CREATE TABLE IF NOT EXISTS session_values (
    session_id text NOT NULL,
    key text NOT NULL,
    value text NOT NULL,
    expires_at timestamptz NOT NULL,
    PRIMARY KEY (session_id, key)
);

CREATE INDEX IF NOT EXISTS session_values_expires_at_idx
ON session_values (expires_at);
`

func RunSessionMigration(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, sessionMigration)
	return err
}
