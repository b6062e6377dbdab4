package persistence

import (
	"PredictLedger/internal/core"
	"context"
	"database/sql"
	"errors"
	"time"
)

const dedupLookupTimeout = 500 * time.Millisecond

// PostgresIdempotencyChecker answers dedup lookups from the event log
type PostgresIdempotencyChecker struct {
	db *sql.DB
}

func NewPostgresIdempotencyChecker(db *sql.DB) *PostgresIdempotencyChecker {
	return &PostgresIdempotencyChecker{db: db}
}

// IsDuplicate reports whether an event with this type and key was persisted
func (pic *PostgresIdempotencyChecker) IsDuplicate(eventType string, idempotencyKey string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dedupLookupTimeout)
	defer cancel()

	var exists int
	err := pic.db.QueryRowContext(ctx, `
		SELECT 1
		FROM event_log.events
		WHERE event_type = $1 AND idempotency_key = $2
		LIMIT 1
	`, eventType, idempotencyKey).Scan(&exists)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RecentKeys returns up to limit composite dedup keys for eventType, oldest
// first, for warming the in-memory LRU.
func (pic *PostgresIdempotencyChecker) RecentKeys(ctx context.Context, eventType string, limit int) ([]string, error) {
	rows, err := pic.db.QueryContext(ctx, `
		SELECT idempotency_key FROM (
			SELECT idempotency_key, sequence
			FROM event_log.events
			WHERE event_type = $1
			ORDER BY sequence DESC
			LIMIT $2
		) recent
		ORDER BY sequence ASC
	`, eventType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, core.CompositeKey(eventType, k))
	}
	return keys, rows.Err()
}
