package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authgate/jwt"
)

// RevokeDeps captures credential revocation dependencies.
type RevokeDeps struct {
	Inspect func(credential string) (*jwt.Verified, error)
	Revoke  func(ctx context.Context, key string, ttl time.Duration) error
	Now     func() time.Time
}

// RevokeResult reports what RunRevoke did.
type RevokeResult struct {
	Verified *jwt.Verified
	// Revoked is false when the credential had already expired and nothing
	// was written.
	Revoked bool
	Err     error
}

// RunRevoke records credential as revoked for the rest of its lifetime,
// keyed by its decoded signature. The signature must verify; expired
// credentials are accepted and skipped.
func RunRevoke(ctx context.Context, credential string, deps RevokeDeps) RevokeResult {
	v, err := deps.Inspect(credential)
	if err != nil {
		return RevokeResult{Err: err}
	}
	now := deps.Now()
	if now.After(v.ExpiresAt) {
		return RevokeResult{Verified: v}
	}
	// Still valid at its expiry instant, so keep an entry for at least the
	// smallest TTL Redis honors.
	ttl := max(v.Remaining(now), time.Millisecond)
	if err := deps.Revoke(ctx, v.RevocationKey(), ttl); err != nil {
		return RevokeResult{Verified: v, Err: err}
	}
	return RevokeResult{Verified: v, Revoked: true}
}

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	Revoke        RevokeDeps
	DeleteSession func(ctx context.Context, sessionID string) error
}

// LogoutResult reports the outcome of both halves of a logout.
type LogoutResult struct {
	Revoke     RevokeResult
	SessionErr error
}

// RunLogout revokes credential (if any) and deletes sessionID (if any). Both
// halves are attempted even when the first fails.
func RunLogout(ctx context.Context, credential, sessionID string, deps LogoutDeps) LogoutResult {
	var res LogoutResult
	if credential != "" {
		res.Revoke = RunRevoke(ctx, credential, deps.Revoke)
	}
	if sessionID != "" {
		res.SessionErr = deps.DeleteSession(ctx, sessionID)
	}
	return res
}

// Err joins the revocation and session errors.
func (r LogoutResult) Err() error {
	return errors.Join(r.Revoke.Err, r.SessionErr)
}
