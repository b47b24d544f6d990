package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresStore keeps one row per session field. Expiry is tracked per
// row and slid forward for the whole session on every write.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

func (p *PostgresStore) Load(ctx context.Context, sessionID string) (map[string]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT key, value
		FROM session_values
		WHERE session_id = $1
		  AND expires_at > $2
	`, sessionID, p.now())
	if err != nil {
		return nil, fmt.Errorf("session: failed to load: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("session: failed to scan: %w", err)
		}
		values[k] = v
	}
	return values, rows.Err()
}

func (p *PostgresStore) Save(ctx context.Context, sessionID string, values map[string]string, ttl time.Duration) (err error) {
	if sessionID == "" {
		return fmt.Errorf("session: missing session_id")
	}
	if ttl <= 0 {
		return fmt.Errorf("session: ttl must be positive")
	}
	expiresAt := p.now().Add(ttl)

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("session: failed to begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for k, v := range values {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO session_values (session_id, key, value, expires_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (session_id, key)
			DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
		`, sessionID, k, v, expiresAt)
		if err != nil {
			return fmt.Errorf("session: failed to save %s: %w", k, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE session_values SET expires_at = $2 WHERE session_id = $1
	`, sessionID, expiresAt)
	if err != nil {
		return fmt.Errorf("session: failed to extend: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("session: failed to commit: %w", err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, sessionID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := p.db.ExecContext(ctx, `
		DELETE FROM session_values
		WHERE session_id = $1
		  AND key = ANY($2)
	`, sessionID, pq.Array(keys))
	if err != nil {
		return fmt.Errorf("session: failed to delete: %w", err)
	}
	return nil
}

func (p *PostgresStore) Take(ctx context.Context, sessionID string, key string) (string, bool, error) {
	var v string
	err := p.db.QueryRowContext(ctx, `
		DELETE FROM session_values
		WHERE session_id = $1
		  AND key = $2
		  AND expires_at > $3
		RETURNING value
	`, sessionID, key, p.now()).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("session: failed to take %s: %w", key, err)
	}
	return v, true, nil
}

// DeleteExpired removes rows past their expiry and returns how many
// were dropped.
func (p *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := p.db.ExecContext(ctx, `
		DELETE FROM session_values WHERE expires_at <= $1
	`, p.now())
	if err != nil {
		return 0, fmt.Errorf("session: failed to delete expired: %w", err)
	}
	return res.RowsAffected()
}
