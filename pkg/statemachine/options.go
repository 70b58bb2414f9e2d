package statemachine

import "fmt"

// Option configures a Table during construction.
type Option func(*Table) error

// TransitionOption configures a single transition with guards and actions.
type TransitionOption func(*Transition)

// WithTransition adds a single transition.
func WithTransition(from, to State, event Event, opts ...TransitionOption) Option {
	return func(t *Table) error {
		tr := Transition{From: from, To: to, Event: event}
		for _, opt := range opts {
			opt(&tr)
		}
		return t.add(tr)
	}
}

// WithTransitions adds prebuilt transitions in order.
func WithTransitions(transitions ...Transition) Option {
	return func(t *Table) error {
		for i, tr := range transitions {
			if err := t.add(tr); err != nil {
				return fmt.Errorf("transition[%d] %s -> %s on %s: %w",
					i, nameOf(tr.From), nameOf(tr.To), nameOf(tr.Event), err)
			}
		}
		return nil
	}
}

// WithGuard adds a guard to a transition.
func WithGuard(guard Guard) TransitionOption {
	return func(tr *Transition) {
		if guard != nil {
			tr.Guards = append(tr.Guards, guard)
		}
	}
}

// WithGuards adds guards to a transition.
func WithGuards(guards ...Guard) TransitionOption {
	return func(tr *Transition) {
		for _, g := range guards {
			WithGuard(g)(tr)
		}
	}
}

// WithAction adds an action to a transition.
func WithAction(action Action) TransitionOption {
	return func(tr *Transition) {
		if action != nil {
			tr.Actions = append(tr.Actions, action)
		}
	}
}

// WithActions adds actions to a transition.
func WithActions(actions ...Action) TransitionOption {
	return func(tr *Transition) {
		for _, a := range actions {
			WithAction(a)(tr)
		}
	}
}

func nameOf(v interface{ Name() string }) string {
	if v == nil {
		return "<nil>"
	}
	return v.Name()
}
