package handler

import (
	"maps"
	"slices"
	"strings"
)

// ValidationError maps request fields to their failure messages. It renders
// as a 422 with the map under "details".
type ValidationError map[string][]string

func NewValidationError() ValidationError { return ValidationError{} }

// Add records a message for field.
func (e ValidationError) Add(field, message string) {
	e[field] = append(e[field], message)
}

// Fields returns the failed field names in sorted order.
func (e ValidationError) Fields() []string {
	return slices.Sorted(maps.Keys(e))
}

// Err returns nil when no field failed, so validate methods can end with
// `return verr.Err()`.
func (e ValidationError) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Error lists the first message per field.
func (e ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("validation failed")
	for i, field := range e.Fields() {
		msgs := e[field]
		if len(msgs) == 0 {
			continue
		}
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(field + " " + msgs[0])
	}
	return b.String()
}
