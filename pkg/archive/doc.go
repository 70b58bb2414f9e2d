// Package archive stores raw inbound webhook payloads in S3 or an
// S3-compatible bucket.
//
// Archiving is best effort: callers log failures and carry on. Objects are
// keyed by provider, receive date and event id:
//
//	<prefix>/<provider>/2025/03/01/<event-id>.json
//
// When no bucket is configured New returns a Nop archive.
package archive
