package statemachine

import "context"

// State and Event are identified by name only.
type (
	State interface{ Name() string }
	Event interface{ Name() string }
)

// Guard vetoes a transition for a given input.
type Guard func(ctx context.Context, from State, event Event, data any) bool

// Action runs while a transition fires. An error aborts the transition and
// Fire returns no state.
type Action func(ctx context.Context, from, to State, event Event, data any) error

// Transition moves From to To on Event when every guard passes.
type Transition struct {
	From, To State
	Event    Event
	Guards   []Guard
	Actions  []Action
}

func (t Transition) passes(ctx context.Context, from State, event Event, data any) bool {
	for _, g := range t.Guards {
		if g == nil {
			continue
		}
		if !g(ctx, from, event, data) {
			return false
		}
	}
	return true
}

type (
	StringState string
	StringEvent string
)

func (s StringState) Name() string { return string(s) }
func (e StringEvent) Name() string { return string(e) }
