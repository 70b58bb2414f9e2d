package statemachine

import (
	"context"
	"fmt"
)

// Table is an immutable-after-construction transition table.
// Lookups are map[from][event][]Transition.
type Table struct {
	transitions map[string]map[string][]Transition
}

// New builds a Table from options.
func New(opts ...Option) (*Table, error) {
	t := &Table{transitions: make(map[string]map[string][]Transition)}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustNew is like New but panics on invalid definitions.
func MustNew(opts ...Option) *Table {
	t, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create state machine: %v", err))
	}
	return t
}

func (t *Table) add(tr Transition) error {
	if tr.From == nil || tr.To == nil || tr.Event == nil {
		return ErrInvalidTransition
	}
	from, event := tr.From.Name(), tr.Event.Name()
	if _, ok := t.transitions[from]; !ok {
		t.transitions[from] = make(map[string][]Transition)
	}
	t.transitions[from][event] = append(t.transitions[from][event], tr)
	return nil
}

// Resolve returns the first transition for (from, event) whose guards pass.
func (t *Table) Resolve(ctx context.Context, from State, event Event, data any) (Transition, error) {
	if from == nil || event == nil {
		return Transition{}, ErrInvalidEvent
	}

	candidates := t.transitions[from.Name()][event.Name()]
	if len(candidates) == 0 {
		return Transition{}, fmt.Errorf("%w: %s on %s", ErrNoTransition, from.Name(), event.Name())
	}

	for _, tr := range candidates {
		if tr.passes(ctx, from, event, data) {
			return tr, nil
		}
	}

	return Transition{}, fmt.Errorf("%w: %s on %s", ErrRejected, from.Name(), event.Name())
}

// Fire resolves the transition, runs its actions and returns the target state.
// The caller persists the returned state.
func (t *Table) Fire(ctx context.Context, from State, event Event, data any) (State, error) {
	tr, err := t.Resolve(ctx, from, event, data)
	if err != nil {
		return nil, err
	}

	for _, action := range tr.Actions {
		if action == nil {
			continue
		}
		if err := action(ctx, from, tr.To, event, data); err != nil {
			return nil, fmt.Errorf("%w: %s -> %s on %s: %w", ErrActionFailed, from.Name(), tr.To.Name(), event.Name(), err)
		}
	}

	return tr.To, nil
}

// CanFire reports whether some transition for (from, event) would pass its guards.
func (t *Table) CanFire(ctx context.Context, from State, event Event, data any) bool {
	_, err := t.Resolve(ctx, from, event, data)
	return err == nil
}
