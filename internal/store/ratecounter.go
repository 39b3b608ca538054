package store

import (
	"context"
	"fmt"
)

// IncrementRateCounter performs the fixed-window check-and-consume for one
// API key as a single atomic statement. now is unix seconds; windowSeconds
// is the key's window length.
//
// Semantics: if no counter row exists or the current window has expired
// (now - window_start >= windowSeconds), a fresh window starts with count 1.
// Otherwise the count increments — including past the limit, so a client
// hammering a full window keeps the window accumulating and cannot reset it
// by retrying. The caller compares the returned count against its max.
//
// Atomicity: the UPSERT reads and writes the row in one statement, so two
// concurrent requests for the same key cannot both observe the same count.
// On SQLite the single write connection serializes them; on Postgres the
// row-level lock taken by ON CONFLICT DO UPDATE does.
func (s *Store) IncrementRateCounter(ctx context.Context, keyID string, now, windowSeconds int64) (windowStart, count int64, err error) {
	const q = `INSERT INTO rate_counters (key_id, window_start, count)
		VALUES (?, ?, 1)
		ON CONFLICT (key_id) DO UPDATE SET
			count = CASE WHEN excluded.window_start - rate_counters.window_start >= ?
				THEN 1 ELSE rate_counters.count + 1 END,
			window_start = CASE WHEN excluded.window_start - rate_counters.window_start >= ?
				THEN excluded.window_start ELSE rate_counters.window_start END
		RETURNING window_start, count`

	row := s.db.QueryRowContext(ctx, s.rebind(q), keyID, now, windowSeconds, windowSeconds)
	if err := row.Scan(&windowStart, &count); err != nil {
		return 0, 0, fmt.Errorf("increment rate counter: %w", err)
	}
	return windowStart, count, nil
}
