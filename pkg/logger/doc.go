// Package logger builds the service's *slog.Logger.
//
// New returns a logger configured by functional options: output format, level,
// static attributes and ContextExtractor callbacks that pull request-scoped
// values (request id, provider, event id) out of a context.Context every time a
// record is handled.
//
// Attribute helpers keep key names consistent across packages:
//
//	log.ErrorContext(ctx, "usage overage detected",
//	    logger.Component("usage"),
//	    logger.SubscriptionID(sub.ID),
//	    logger.Int64("usage_count", sub.UsageCount),
//	)
//
// Helpers that take an error or an optional identifier return an empty
// slog.Attr for nil input, so callers never need a nil check before logging.
package logger
