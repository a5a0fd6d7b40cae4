// Package session provides Redis-backed server-side session records.
//
// A session correlates an opaque identifier (carried in a cookie) with a
// user and its most recent activity. Records are CBOR-encoded and expire
// after an idle timeout that every [Store.Touch] renews, capped by an
// absolute lifetime measured from creation.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session] model.
// It does NOT interpret bearer credentials or make authorization decisions.
//
// # What this package must NOT do
//
//   - Import authgate or jwt (no upward imports).
//   - Store secrets in [Session] fields.
package session
