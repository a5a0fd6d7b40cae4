package authgate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	internalaudit "github.com/MrEthical07/authgate/internal/audit"
	"github.com/MrEthical07/authgate/internal/flows"
	"github.com/MrEthical07/authgate/internal/rate"
	"github.com/MrEthical07/authgate/jwt"
	"github.com/MrEthical07/authgate/password"
	"github.com/MrEthical07/authgate/revocation"
	"github.com/MrEthical07/authgate/session"
)

// Engine runs the authentication, session and authorization pipelines.
//
// An Engine is built once by [Builder.Build] and is safe for concurrent use.
// Signing keys and configuration are immutable after Build.
type Engine struct {
	config Config

	tokens      *jwt.Manager
	revocations *revocation.Store
	sessions    *session.Store
	identities  IdentityLookup
	credentials CredentialLookup
	policy      PermissionPolicy

	hasher    *password.Hasher
	dummyHash string
	limiter   *rate.Limiter

	audit   *internalaudit.Dispatcher
	metrics *Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time

	flows flows.Deps
}

// Close flushes pending audit events. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports audit events discarded because the buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return emptySnapshot()
	}
	return e.metrics.Snapshot()
}

// SessionCookieName is the cookie the session middleware reads.
func (e *Engine) SessionCookieName() string {
	return e.config.Session.CookieName
}

// PolicyName names the active permission policy.
func (e *Engine) PolicyName() string {
	return e.policy.Name()
}

// Ping checks that the revocation and session stores are reachable.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if _, err := e.revocations.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := e.sessions.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ParseBearer extracts the credential from an Authorization header value.
// present is false when the header is empty or uses another scheme. A
// Bearer header with an empty value is present with an empty credential.
func ParseBearer(header string) (credential string, present bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	// Any whitespace run separates the scheme, so "Bearer\t<token>" is a
	// Bearer header rather than an unknown scheme.
	scheme, rest := header, ""
	if i := strings.IndexFunc(header, unicode.IsSpace); i >= 0 {
		scheme, rest = header[:i], strings.TrimSpace(header[i:])
	}
	if !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	return rest, true
}

// AuthenticateHeader runs [Engine.Authenticate] on an Authorization header.
func (e *Engine) AuthenticateHeader(ctx context.Context, header string) (*Identity, error) {
	credential, present := ParseBearer(header)
	if !present {
		return e.authenticate(ctx, "", false)
	}
	return e.authenticate(ctx, credential, true)
}

// Authenticate verifies credential, checks revocation, resolves the user
// and checks account status, in that order. An empty credential counts as
// present and malformed; use [Engine.AuthenticateHeader] to distinguish a
// missing header.
func (e *Engine) Authenticate(ctx context.Context, credential string) (*Identity, error) {
	return e.authenticate(ctx, credential, true)
}

func (e *Engine) authenticate(ctx context.Context, credential string, present bool) (*Identity, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	start := e.now()
	defer e.observeLatency(start)

	ctx, span := e.tracer.Start(ctx, "authgate.Authenticate")
	defer span.End()

	res := flows.RunAuthenticate(ctx, credential, present, e.flows.Authenticate)
	if res.State != flows.AuthStateAuthenticated {
		err := authFailureError(res.Failure, res.Err)
		e.metrics.Inc(authFailureMetric(res.Failure))
		span.SetAttributes(attribute.String("authgate.failure", KindOf(err).Code()))
		span.SetStatus(codes.Error, KindOf(err).Code())

		if res.Failure == flows.AuthFailureUnavailable {
			e.logger.WarnContext(ctx, "authgate: auth backend unavailable", "error", res.Err)
		} else if res.Failure != flows.AuthFailureNoCredential {
			e.logger.DebugContext(ctx, "authgate: credential rejected",
				"code", KindOf(err).Code(), "error", res.Err)
		}
		if res.Failure != flows.AuthFailureNoCredential {
			var userID string
			if res.Verified != nil {
				userID = res.Verified.Payload.UserID
			}
			e.emitAudit(ctx, auditEventAuthRejected, false, userID, "", err, nil)
		}
		return nil, err
	}

	id := identityFrom(res.Verified, res.User)
	span.SetAttributes(attribute.String("authgate.user_id", id.UserID))
	e.metrics.Inc(MetricAuthSuccess)
	return id, nil
}

// identityFrom prefers the identity store's fields and falls back to the
// signed payload where the store left one empty.
func identityFrom(v *jwt.Verified, u *flows.UserInfo) *Identity {
	id := identityFromUser(u)
	if id.UserID == "" {
		id.UserID = v.Payload.UserID
	}
	if id.Email == "" {
		id.Email = v.Payload.Email
	}
	if id.Role == "" {
		id.Role = v.Payload.Role
	}
	if id.Plan == "" {
		id.Plan = v.Payload.Plan
	}
	id.ID = id.UserID
	return id
}

func identityFromUser(u *flows.UserInfo) *Identity {
	return &Identity{
		ID:     u.UserID,
		UserID: u.UserID,
		Email:  u.Email,
		Role:   u.Role,
		Plan:   u.Plan,
	}
}

func authFailureError(f flows.AuthFailure, cause error) error {
	var sentinel error
	switch f {
	case flows.AuthFailureNoCredential:
		return ErrUnauthenticated
	case flows.AuthFailureMalformed:
		sentinel = ErrMalformed
	case flows.AuthFailureExpired:
		return ErrExpired
	case flows.AuthFailureRevoked:
		return ErrRevoked
	case flows.AuthFailureUserNotFound:
		return ErrUserNotFound
	case flows.AuthFailureInactiveAccount:
		return ErrInactiveAccount
	case flows.AuthFailureUnavailable:
		sentinel = ErrUnavailable
	default:
		sentinel = ErrMalformed
	}
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %v", sentinel, cause)
}

func authFailureMetric(f flows.AuthFailure) MetricID {
	switch f {
	case flows.AuthFailureNoCredential:
		return MetricAuthNoCredential
	case flows.AuthFailureExpired:
		return MetricAuthExpired
	case flows.AuthFailureRevoked:
		return MetricAuthRevoked
	case flows.AuthFailureUserNotFound:
		return MetricAuthUserNotFound
	case flows.AuthFailureInactiveAccount:
		return MetricAuthInactiveAccount
	case flows.AuthFailureUnavailable:
		return MetricAuthUnavailable
	default:
		return MetricAuthMalformed
	}
}

// Issue signs a credential for payload that expires ttl from now. A zero or
// negative ttl yields a credential that is already expired.
func (e *Engine) Issue(payload Payload, ttl time.Duration) (IssuedCredential, error) {
	if e == nil {
		return IssuedCredential{}, ErrEngineNotReady
	}
	now := e.now()
	token, err := e.tokens.Issue(payload, ttl)
	if err != nil {
		return IssuedCredential{}, err
	}
	return IssuedCredential{Token: token, ExpiresAt: now.Add(ttl)}, nil
}

// IssueDefault issues with the configured default TTL.
func (e *Engine) IssueDefault(payload Payload) (IssuedCredential, error) {
	if e == nil {
		return IssuedCredential{}, ErrEngineNotReady
	}
	return e.Issue(payload, e.tokens.DefaultTTL())
}
