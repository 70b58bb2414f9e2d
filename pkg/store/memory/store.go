package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingcore/pkg/audit"
	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

type markerKey struct {
	provider string
	eventID  string
}

// Store keeps all state in maps guarded by mu.
type Store struct {
	txMu sync.Mutex

	mu      sync.Mutex
	subs    map[uuid.UUID]*subscription.Subscription
	byRef   map[markerKey]uuid.UUID
	markers map[markerKey]time.Time
	events  []audit.Event
}

func New() *Store {
	return &Store{
		subs:    make(map[uuid.UUID]*subscription.Subscription),
		byRef:   make(map[markerKey]uuid.UUID),
		markers: make(map[markerKey]time.Time),
	}
}

type txKey struct{}

type journal struct {
	undo []func()
}

// WithTx runs fn as one transaction. Transactions are serialised; a nested
// call joins the outer one. On error or panic every write made through ctx is
// undone.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*journal); ok {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	j := &journal{}
	defer func() {
		if p := recover(); p != nil {
			s.rollback(j)
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, j)); err != nil {
		s.rollback(j)
		return err
	}
	return nil
}

func (s *Store) rollback(j *journal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
}

// record registers an undo step. Must be called with mu held.
func record(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(txKey{}).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}

func copySub(sub *subscription.Subscription) *subscription.Subscription {
	c := *sub
	return &c
}
