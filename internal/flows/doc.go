// Package flows contains the orchestration behind every Engine operation.
//
// Each flow function (RunAuthenticate, RunHydrateSession, RunLogin, RunRevoke,
// RunLogout) accepts a typed dependency struct and returns a classified
// result. The root package maps results onto its sentinel errors, metrics and
// audit events.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the token manager, revocation store,
// session store and identity lookup. They do NOT own any of these resources;
// ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authgate (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency fields.
package flows
