package authgate

import (
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/authgate/internal/rate"
)

var (
	// ErrUnauthenticated is returned when no credential was presented or no
	// identity is attached where one is required.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrMalformed is returned for credentials that fail parsing or signature checks.
	ErrMalformed = errors.New("credential malformed")
	// ErrExpired is returned for credentials past their expiry instant.
	ErrExpired = errors.New("credential expired")
	// ErrRevoked is returned for credentials present in the revocation store.
	ErrRevoked = errors.New("credential revoked")
	// ErrUserNotFound is returned when the credential's subject no longer exists.
	ErrUserNotFound = errors.New("user not found")
	// ErrInactiveAccount is returned when the subject's account is not ACTIVE.
	ErrInactiveAccount = errors.New("account inactive")
	// ErrSessionRequired is returned when a route needs a session and none was hydrated.
	ErrSessionRequired = errors.New("session required")
	// ErrForbidden is returned by guards when the identity lacks a role or permission.
	ErrForbidden = errors.New("forbidden")
	// ErrUnavailable is returned when a backing store cannot answer. Requests
	// fail closed.
	ErrUnavailable = errors.New("auth backend unavailable")
	// ErrInvalidCredentials is returned by Login for unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginRateLimited is returned by Login while an email or client IP is cooling down.
	ErrLoginRateLimited = errors.New("too many login attempts")
	// ErrEngineNotReady is returned when an Engine method is called on a nil or closed engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// Kind classifies an error for transport mapping.
type Kind uint8

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindMalformed
	KindExpired
	KindRevoked
	KindUserNotFound
	KindInactiveAccount
	KindSessionRequired
	KindForbidden
	KindUnavailable
	KindInvalidCredentials
	KindRateLimited
)

var kindTable = []struct {
	err  error
	kind Kind
}{
	{ErrUnauthenticated, KindUnauthenticated},
	{ErrMalformed, KindMalformed},
	{ErrExpired, KindExpired},
	{ErrRevoked, KindRevoked},
	{ErrUserNotFound, KindUserNotFound},
	{ErrInactiveAccount, KindInactiveAccount},
	{ErrSessionRequired, KindSessionRequired},
	{ErrForbidden, KindForbidden},
	{ErrUnavailable, KindUnavailable},
	{ErrInvalidCredentials, KindInvalidCredentials},
	{ErrLoginRateLimited, KindRateLimited},
}

// RetryAfter reports how long a throttled login should wait before retrying.
func RetryAfter(err error) (time.Duration, bool) {
	var le *rate.LimitError
	if !errors.As(err, &le) || le.RetryAfter <= 0 {
		return 0, false
	}
	return le.RetryAfter, true
}

// KindOf returns the Kind of the first sentinel err wraps. Unknown errors
// are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	for _, k := range kindTable {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// HTTPStatus maps k to a response status.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthenticated, KindMalformed, KindExpired, KindRevoked,
		KindSessionRequired, KindInvalidCredentials:
		return http.StatusUnauthorized
	case KindUserNotFound:
		return http.StatusNotFound
	case KindInactiveAccount, KindForbidden:
		return http.StatusForbidden
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Code is the machine-readable code sent to clients.
func (k Kind) Code() string {
	switch k {
	case KindUnauthenticated:
		return "UNAUTHENTICATED"
	case KindMalformed:
		return "MALFORMED_CREDENTIAL"
	case KindExpired:
		return "CREDENTIAL_EXPIRED"
	case KindRevoked:
		return "CREDENTIAL_REVOKED"
	case KindUserNotFound:
		return "USER_NOT_FOUND"
	case KindInactiveAccount:
		return "ACCOUNT_INACTIVE"
	case KindSessionRequired:
		return "SESSION_REQUIRED"
	case KindForbidden:
		return "FORBIDDEN"
	case KindUnavailable:
		return "SERVICE_UNAVAILABLE"
	case KindInvalidCredentials:
		return "INVALID_CREDENTIALS"
	case KindRateLimited:
		return "RATE_LIMITED"
	default:
		return "INTERNAL_ERROR"
	}
}

// Message is the generic, user-facing text for k. It never includes causes.
func (k Kind) Message() string {
	switch k {
	case KindUnauthenticated:
		return "Authentication required"
	case KindMalformed:
		return "Invalid credential"
	case KindExpired:
		return "Credential expired"
	case KindRevoked:
		return "Credential revoked"
	case KindUserNotFound:
		return "User not found"
	case KindInactiveAccount:
		return "Account is not active"
	case KindSessionRequired:
		return "Session required"
	case KindForbidden:
		return "Forbidden"
	case KindUnavailable:
		return "Service temporarily unavailable"
	case KindInvalidCredentials:
		return "Invalid email or password"
	case KindRateLimited:
		return "Too many attempts, try again later"
	default:
		return "Internal error"
	}
}

func (k Kind) String() string {
	return k.Code()
}
