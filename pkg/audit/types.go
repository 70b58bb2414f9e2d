package audit

import (
	"fmt"
	"time"
)

// Result represents the outcome of an audited action.
type Result string

const (
	ResultSuccess Result = "success"
	ResultSkipped Result = "skipped"
	ResultFailure Result = "failure"
)

// Source identifies what initiated an audited change.
type Source string

const (
	SourceProvider   Source = "provider"
	SourceAbuseGuard Source = "abuse_guard"
	SourceUser       Source = "user"
	SourceOperator   Source = "operator"
	SourceMeter      Source = "meter"
)

// Event is a single audit entry.
type Event struct {
	ID             string         `json:"id"`
	Action         string         `json:"action"`
	Source         Source         `json:"source"`
	SubscriptionID string         `json:"subscription_id,omitempty"`
	UserID         string         `json:"user_id,omitempty"`
	Provider       string         `json:"provider,omitempty"`
	EventID        string         `json:"event_id,omitempty"`
	FromStatus     string         `json:"from_status,omitempty"`
	ToStatus       string         `json:"to_status,omitempty"`
	Result         Result         `json:"result"`
	Error          string         `json:"error,omitempty"`
	RequestID      string         `json:"request_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Validate checks required fields.
func (e *Event) Validate() error {
	if e.Action == "" {
		return fmt.Errorf("%w: action is required", ErrEventValidation)
	}
	if e.Source == "" {
		return fmt.Errorf("%w: source is required", ErrEventValidation)
	}
	return nil
}

// Filter narrows a history query. Zero fields are ignored.
type Filter struct {
	SubscriptionID string
	UserID         string
	Source         Source
	Action         string
	Limit          int
}

// EventOption applies configuration to an Event during creation.
type EventOption func(*Event)

func WithSubscription(id, userID string) EventOption {
	return func(e *Event) {
		e.SubscriptionID = id
		e.UserID = userID
	}
}

func WithTransition(from, to string) EventOption {
	return func(e *Event) {
		e.FromStatus = from
		e.ToStatus = to
	}
}

func WithProviderEvent(provider, eventID string) EventOption {
	return func(e *Event) {
		e.Provider = provider
		e.EventID = eventID
	}
}

func WithResult(r Result) EventOption {
	return func(e *Event) { e.Result = r }
}

// WithMetadata adds a key to the event metadata.
func WithMetadata(key string, value any) EventOption {
	return func(e *Event) {
		if e.Metadata == nil {
			e.Metadata = make(map[string]any)
		}
		e.Metadata[key] = value
	}
}
