package abuse

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps timestamps in process memory. Entries of idle users are
// dropped by a background sweep.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time

	sweepInterval time.Duration
	maxAge        time.Duration
	stop          chan struct{}
	stopOnce      sync.Once
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithSweepInterval sets how often idle windows are dropped. Default 10 minutes.
func WithSweepInterval(d time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// WithMaxAge sets how long after the last event a window is kept. Default 24h.
func WithMaxAge(d time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		if d > 0 {
			s.maxAge = d
		}
	}
}

// NewMemoryStore starts the sweep goroutine; call Close to stop it.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		windows:       make(map[string][]time.Time),
		sweepInterval: 10 * time.Minute,
		maxAge:        24 * time.Hour,
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.sweepLoop()
	return s
}

func (s *MemoryStore) Record(_ context.Context, userID string, at time.Time, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := append(trim(s.windows[userID], at.Add(-window)), at)
	s.windows[userID] = ts
	return int64(len(ts)), nil
}

func (s *MemoryStore) Count(_ context.Context, userID string, at time.Time, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := trim(s.windows[userID], at.Add(-window))
	if len(ts) == 0 {
		delete(s.windows, userID)
		return 0, nil
	}
	s.windows[userID] = ts
	return int64(len(ts)), nil
}

func (s *MemoryStore) Reset(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, userID)
	return nil
}

// Close stops the sweep goroutine.
func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// trim drops timestamps at or before cutoff. Timestamps are appended in
// arrival order, so the slice is sorted unless clocks disagree; the scan
// does not rely on it.
func trim(ts []time.Time, cutoff time.Time) []time.Time {
	out := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

func (s *MemoryStore) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

func (s *MemoryStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.maxAge)
	for user, ts := range s.windows {
		if len(ts) == 0 || !ts[len(ts)-1].After(cutoff) {
			delete(s.windows, user)
		}
	}
}
