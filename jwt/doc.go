// Package jwt issues and verifies bearer credentials.
//
// A [Manager] owns claim layout and the expiry rule; the cryptography sits
// behind the [Signer] interface so HS256 and Ed25519 (or any future
// algorithm) are interchangeable without touching callers.
//
// # Expiry boundary
//
// Expiry is compared at whole-second resolution and is inclusive: a
// credential whose exp equals the current second still verifies.
//
// # What this package must NOT do
//
//   - Consult revocation state or identity data.
//   - Perform I/O.
package jwt
