// Package identity provides reference implementations of
// [authgate.IdentityLookup] and [authgate.CredentialLookup].
//
// [SQLStore] runs on database/sql with either the pgx (PostgreSQL) or the
// modernc sqlite driver. [MemoryStore] is a map guarded by a RWMutex for
// tests and demos. The users table layout is an example; applications with
// their own schema implement the two interfaces directly.
package identity
