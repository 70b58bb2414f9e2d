package statemachine

import "errors"

var (
	ErrInvalidTransition = errors.New("statemachine: transition needs from, to and event")
	ErrInvalidEvent      = errors.New("statemachine: nil state or event")
	ErrNoTransition      = errors.New("statemachine: no transition for state and event")
	ErrRejected          = errors.New("statemachine: every transition rejected by guards")
	ErrActionFailed      = errors.New("statemachine: transition action failed")
)

// Unhandled reports whether err means the table has nothing to do for the
// input, as opposed to an action failing.
func Unhandled(err error) bool {
	return errors.Is(err, ErrNoTransition) || errors.Is(err, ErrRejected)
}
