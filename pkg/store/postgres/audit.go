package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/dmitrymomot/billingcore/pkg/audit"
)

const defaultHistoryLimit = 100

var transitionColumns = []string{
	"id", "action", "source", "subscription_id", "user_id", "provider", "event_id",
	"from_status", "to_status", "result", "error", "request_id", "metadata", "created_at",
}

// The id column is uuid; read it back as text.
var transitionSelect = append([]string{"id::text"}, transitionColumns[1:]...)

// Store writes one transition row.
func (s *Store) Store(ctx context.Context, e audit.Event) error {
	meta := []byte("{}")
	if len(e.Metadata) > 0 {
		var err error
		if meta, err = json.Marshal(e.Metadata); err != nil {
			return fmt.Errorf("encode audit metadata: %w", err)
		}
	}

	query, args, err := s.sb.Insert("subscription_transitions").
		Columns(transitionColumns...).
		Values(e.ID, e.Action, string(e.Source), e.SubscriptionID, e.UserID, e.Provider, e.EventID,
			e.FromStatus, e.ToStatus, string(e.Result), e.Error, e.RequestID, meta, e.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build audit insert: %w", err)
	}
	if _, err := s.conn(ctx).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// List returns matching transitions newest first.
func (s *Store) List(ctx context.Context, f audit.Filter) ([]audit.Event, error) {
	b := s.sb.Select(transitionSelect...).From("subscription_transitions")
	if f.SubscriptionID != "" {
		b = b.Where(sq.Eq{"subscription_id": f.SubscriptionID})
	}
	if f.UserID != "" {
		b = b.Where(sq.Eq{"user_id": f.UserID})
	}
	if f.Source != "" {
		b = b.Where(sq.Eq{"source": string(f.Source)})
	}
	if f.Action != "" {
		b = b.Where(sq.Eq{"action": f.Action})
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	query, args, err := b.OrderBy("created_at DESC", "id DESC").Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build audit query: %w", err)
	}

	rows, err := s.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var (
			e              audit.Event
			source, result string
			meta           []byte
		)
		if err := rows.Scan(&e.ID, &e.Action, &source, &e.SubscriptionID, &e.UserID, &e.Provider, &e.EventID,
			&e.FromStatus, &e.ToStatus, &result, &e.Error, &e.RequestID, &meta, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Source = audit.Source(source)
		e.Result = audit.Result(result)
		if len(meta) > 0 && string(meta) != "{}" {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata: %w", err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return out, nil
}
