// Package rate throttles failed logins with Redis-backed counters.
//
// Each counter is a fixed window: the first failure sets the key with a
// Cooldown expiry and later failures only increment it. Keys:
//
//	arl:<email>   failures per lower-cased email
//	arli:<ip>     failures per client IP, when IP throttling is on
//
// Refusals are *LimitError values matching ErrRateLimited. The package
// never decides whether a login succeeded; callers report failures.
package rate
