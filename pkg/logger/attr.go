package logger

import (
	"fmt"
	"log/slog"
	"time"
)

// Attribute helpers keep key names consistent across packages. Helpers for
// identifiers return an empty Attr, which slog drops, when the value is
// missing.

func optional(key, value string) slog.Attr {
	if value == "" {
		return slog.Attr{}
	}
	return slog.String(key, value)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

func Component(name string) slog.Attr { return slog.String("component", name) }

func Provider(p fmt.Stringer) slog.Attr {
	if p == nil {
		return slog.Attr{}
	}
	return optional("provider", p.String())
}

func EventID(id string) slog.Attr   { return optional("event_id", id) }
func UserID(id string) slog.Attr    { return optional("user_id", id) }
func RequestID(id string) slog.Attr { return optional("request_id", id) }

func EventType(t string) slog.Attr { return slog.String("event_type", t) }

// SubscriptionID accepts uuid.UUID as well as provider ids.
func SubscriptionID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("subscription_id", id)
}

func Status(s string) slog.Attr { return slog.String("status", s) }

func Int64(key string, v int64) slog.Attr { return slog.Int64(key, v) }

func Duration(d time.Duration) slog.Attr { return slog.Duration("duration", d) }
