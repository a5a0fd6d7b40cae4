// Package revocation tracks explicitly invalidated credentials in Redis.
//
// Entries are keyed by a BLAKE3 fingerprint of the credential's decoded
// signature, never the raw credential text, and expire on their own once
// the credential could no longer be honored anyway. No explicit cleanup is
// required.
//
// # Ordering
//
// Callers must consult [Store.IsRevoked] only after the credential's
// signature and expiry have been verified, and before any identity lookup.
package revocation
