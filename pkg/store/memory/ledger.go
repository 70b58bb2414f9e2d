package memory

import (
	"context"
	"time"
)

// Claim inserts the marker if absent and reports whether this call did.
func (s *Store) Claim(ctx context.Context, provider, eventID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := markerKey{provider: provider, eventID: eventID}
	if _, ok := s.markers[key]; ok {
		return false, nil
	}
	s.markers[key] = at
	record(ctx, func() { delete(s.markers, key) })
	return true, nil
}

func (s *Store) Claimed(_ context.Context, provider, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.markers[markerKey{provider: provider, eventID: eventID}]
	return ok, nil
}

// Prune removes markers applied before cutoff.
func (s *Store) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for key, at := range s.markers {
		if at.Before(cutoff) {
			delete(s.markers, key)
			n++
		}
	}
	return n, nil
}
