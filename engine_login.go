package authgate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/authgate/internal/flows"
	"github.com/MrEthical07/authgate/jwt"
	"github.com/MrEthical07/authgate/revocation"
)

// Login checks email and password against the [CredentialLookup], then
// issues a credential and starts a session. Unknown emails and wrong
// passwords both yield [ErrInvalidCredentials]. The client IP for
// throttling is read from ctx (see [WithClientIP]).
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if e.credentials == nil {
		return nil, errors.New("login requires a CredentialLookup")
	}

	ip := clientIPFromContext(ctx)
	res := flows.RunLogin(ctx, normalizeLoginEmail(email), password, ip, e.flows.Login)

	switch res.Failure {
	case flows.LoginFailureNone:
	case flows.LoginFailureRateLimited:
		e.metrics.Inc(MetricLoginRateLimited)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", ErrLoginRateLimited, nil)
		return nil, fmt.Errorf("%w: %w", ErrLoginRateLimited, res.Err)
	case flows.LoginFailureInactiveAccount:
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, res.User.UserID, "", ErrInactiveAccount, nil)
		return nil, ErrInactiveAccount
	case flows.LoginFailureUnavailable:
		e.metrics.Inc(MetricLoginFailure)
		e.logger.WarnContext(ctx, "authgate: login backend unavailable", "error", res.Err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, res.Err)
	default:
		e.metrics.Inc(MetricLoginFailure)
		e.logger.DebugContext(ctx, "authgate: login rejected", "error", res.Err)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	id := identityFromUser(res.User)
	e.metrics.Inc(MetricLoginSuccess)
	e.metrics.Inc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventLoginSuccess, true, id.UserID, res.Session.SessionID, nil, nil)

	return &LoginResult{
		Credential: IssuedCredential{Token: res.Token, ExpiresAt: res.ExpiresAt},
		Session:    res.Session,
		Identity:   id,
	}, nil
}

// RevokeCredential makes credential fail authentication for the rest of its
// lifetime. The signature must verify. Revoking an expired credential is a
// no-op and revoking twice is harmless.
func (e *Engine) RevokeCredential(ctx context.Context, credential string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	res := flows.RunRevoke(ctx, credential, e.flows.Revoke)
	if res.Err != nil {
		return revokeError(res.Err)
	}
	if res.Revoked {
		e.metrics.Inc(MetricCredentialRevoked)
		e.emitAudit(ctx, auditEventCredentialRevoked, true, res.Verified.Payload.UserID, "", nil, nil)
	}
	return nil
}

// Logout revokes credential and deletes sessionID. Either may be empty.
// Both halves are attempted; the returned error joins their failures.
func (e *Engine) Logout(ctx context.Context, credential, sessionID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	res := flows.RunLogout(ctx, credential, sessionID, e.flows.Logout)

	var userID string
	if v := res.Revoke.Verified; v != nil {
		userID = v.Payload.UserID
	}
	if res.Revoke.Revoked {
		e.metrics.Inc(MetricCredentialRevoked)
	}
	if sessionID != "" && res.SessionErr == nil {
		e.metrics.Inc(MetricSessionEnded)
	}
	if res.SessionErr != nil {
		e.logger.WarnContext(ctx, "authgate: logout session delete failed", "error", res.SessionErr)
	}

	var errs []error
	if res.Revoke.Err != nil {
		errs = append(errs, revokeError(res.Revoke.Err))
	}
	if res.SessionErr != nil {
		errs = append(errs, sessionStoreError(res.SessionErr))
	}
	err := errors.Join(errs...)
	e.emitAudit(ctx, auditEventLogout, err == nil, userID, sessionID, err, nil)
	return err
}

func revokeError(err error) error {
	switch {
	case errors.Is(err, revocation.ErrRedisUnavailable):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	case errors.Is(err, jwt.ErrMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	default:
		return err
	}
}

func normalizeLoginEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
