package postgres

import (
	"context"
	"fmt"
	"time"
)

// Claim inserts the marker unless it exists and reports whether this call
// inserted it. Inside a transaction the marker commits or rolls back with
// the rest of the work.
func (s *Store) Claim(ctx context.Context, provider, eventID string, at time.Time) (bool, error) {
	tag, err := s.conn(ctx).Exec(ctx,
		`INSERT INTO idempotency_markers (provider, event_id, applied_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider, event_id) DO NOTHING`,
		provider, eventID, at)
	if err != nil {
		return false, fmt.Errorf("claim event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.conn(ctx).Exec(ctx, `DELETE FROM idempotency_markers WHERE applied_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune markers: %w", err)
	}
	return tag.RowsAffected(), nil
}
