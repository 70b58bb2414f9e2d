package memory

import (
	"context"
	"slices"

	"github.com/dmitrymomot/billingcore/pkg/audit"
)

func (s *Store) Store(ctx context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	record(ctx, func() {
		s.events = slices.DeleteFunc(s.events, func(e audit.Event) bool { return e.ID == event.ID })
	})
	return nil
}

// List returns matching events newest first.
func (s *Store) List(_ context.Context, f audit.Filter) ([]audit.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.Event
	for i := len(s.events) - 1; i >= 0; i-- {
		e := s.events[i]
		if f.SubscriptionID != "" && e.SubscriptionID != f.SubscriptionID {
			continue
		}
		if f.UserID != "" && e.UserID != f.UserID {
			continue
		}
		if f.Source != "" && e.Source != f.Source {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}
