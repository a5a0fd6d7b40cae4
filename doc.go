// Package authgate authenticates HTTP requests carrying signed bearer
// credentials, hydrates server-side sessions and guards routes by role or
// named permission.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Pipelines
//
// Authentication runs verify, revocation check, identity lookup and status
// check in that order; the first rejection ends the run. Revocation is
// always consulted before a verified credential is trusted. Store failures
// fail closed with [ErrUnavailable].
//
// Session hydration loads a session by id, renews its idle expiry with an
// atomic conditional write and attaches it to the request. Unknown and
// expired ids hydrate nothing.
//
// Authorization guards are pure functions of the attached identity:
// [RequireRole] for exact role matches and [Engine.RequirePermission] for a
// pluggable [PermissionPolicy].
//
// # Architecture boundaries
//
// authgate is the public surface. It exposes [Engine], [Builder], [Config]
// and value types. Flow orchestration, rate limiting and audit dispatch
// live under internal/ and are never exported. Sub-packages that import
// authgate (identity, policy, middleware, config) are never imported back.
package authgate
