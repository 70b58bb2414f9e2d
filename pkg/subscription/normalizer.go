package subscription

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"
)

// Normalizer verifies a provider webhook and converts it to a BillingEvent.
// Verification failures must wrap ErrInvalidSignature and decoding failures
// ErrMalformedPayload. Events the core does not act on are returned with
// Type EventUnhandled rather than as errors.
type Normalizer interface {
	Provider() Provider
	Normalize(ctx context.Context, body []byte, header http.Header) (*BillingEvent, error)
}

// Registry dispatches webhooks to the normalizer registered for a provider.
type Registry struct {
	mu          sync.RWMutex
	normalizers map[Provider]Normalizer
}

func NewRegistry(normalizers ...Normalizer) *Registry {
	r := &Registry{normalizers: make(map[Provider]Normalizer, len(normalizers))}
	for _, n := range normalizers {
		r.Register(n)
	}
	return r
}

// Register adds or replaces the normalizer for n.Provider().
func (r *Registry) Register(n Normalizer) {
	if n == nil {
		panic("subscription: nil normalizer")
	}
	r.mu.Lock()
	r.normalizers[n.Provider()] = n
	r.mu.Unlock()
}

func (r *Registry) Normalize(ctx context.Context, provider Provider, body []byte, header http.Header) (*BillingEvent, error) {
	r.mu.RLock()
	n, ok := r.normalizers[provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	ev, err := n.Normalize(ctx, body, header)
	if err != nil {
		return nil, err
	}
	if ev.Provider == "" {
		ev.Provider = provider
	}
	if ev.EventID == "" {
		return nil, fmt.Errorf("%w: missing event id", ErrMalformedPayload)
	}
	if ev.Type == "" {
		ev.Type = EventUnhandled
	}
	return ev, nil
}

// Providers lists registered providers in sorted order.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.normalizers))
	for p := range r.normalizers {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}
