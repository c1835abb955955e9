// internal/ratelimit/postgres_store.go
package ratelimit

import (
	"database/sql"
	"time"
)

// PostgresStore keeps fixed-window counters as durable TTL-keyed rows, so the
// limit holds across restarts and across multiple server instances.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Allow(key string, limit int, window time.Duration) (bool, int, error) {
	now := time.Now()
	var count int
	var expiresAt time.Time
	// Expired windows restart; live windows increment. One statement keeps
	// the increment atomic under concurrent requests.
	err := s.db.QueryRow(`
        INSERT INTO rate_limit_windows (key, window_start, count, expires_at)
        VALUES ($1, $2, 1, $3)
        ON CONFLICT (key) DO UPDATE SET
            count = CASE WHEN rate_limit_windows.expires_at <= $2 THEN 1 ELSE rate_limit_windows.count + 1 END,
            window_start = CASE WHEN rate_limit_windows.expires_at <= $2 THEN $2 ELSE rate_limit_windows.window_start END,
            expires_at = CASE WHEN rate_limit_windows.expires_at <= $2 THEN $3 ELSE rate_limit_windows.expires_at END
        RETURNING count, expires_at
    `, key, now, now.Add(window)).Scan(&count, &expiresAt)
	if err != nil {
		return false, 0, err
	}
	if count <= limit {
		return true, 0, nil
	}
	retryAfter := int(time.Until(expiresAt).Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	return false, retryAfter, nil
}

// Purge drops expired windows; callers run it occasionally to keep the table
// small.
func (s *PostgresStore) Purge() error {
	_, err := s.db.Exec(`DELETE FROM rate_limit_windows WHERE expires_at <= NOW()`)
	return err
}
