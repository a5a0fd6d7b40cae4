package jwt

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrMalformed is returned when a credential cannot be parsed or authenticated.
	ErrMalformed = errors.New("credential malformed")
	// ErrExpired is returned when a credential's expiry instant has passed.
	ErrExpired = errors.New("credential expired")
)

// Payload is the identity data embedded in a credential.
type Payload struct {
	UserID string
	Email  string
	Role   string
	Plan   string
}

// Claims is the JWT claim set carried by every credential.
type Claims struct {
	UserID string `json:"uid"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role"`
	Plan   string `json:"plan,omitempty"`
	// ExpiresAtNano is the expiry instant in Unix nanoseconds. The standard
	// exp claim only has whole seconds and is kept for other readers.
	ExpiresAtNano int64 `json:"exp_ns"`
	jwt.RegisteredClaims
}

// Verified is the result of a successful [Manager.Verify].
type Verified struct {
	Payload   Payload
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
	// Signature is the decoded signature segment.
	Signature []byte
}

// Remaining reports how long the credential stays valid after now. The
// result is never negative.
func (v *Verified) Remaining(now time.Time) time.Duration {
	if v == nil {
		return 0
	}
	d := v.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// RevocationKey identifies the credential independently of how its text is
// encoded. Two strings that verify to the same signature share a key.
func (v *Verified) RevocationKey() string {
	if v == nil {
		return ""
	}
	return string(v.Signature)
}

// Config controls claim issuance and validation.
type Config struct {
	DefaultTTL time.Duration
	Issuer     string
	Audience   string
}

// Option customizes a [Manager].
type Option func(*Manager)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager issues and verifies credentials through a [Signer]. It holds no
// mutable state and is safe for concurrent use.
type Manager struct {
	config Config
	signer Signer
	now    func() time.Time
}

// NewManager validates cfg and returns a Manager bound to signer.
func NewManager(cfg Config, signer Signer, opts ...Option) (*Manager, error) {
	if signer == nil {
		return nil, errors.New("signer required")
	}
	if cfg.DefaultTTL <= 0 {
		return nil, errors.New("invalid default TTL configuration")
	}

	m := &Manager{config: cfg, signer: signer, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// NewSigner builds the signer named by method.
func NewSigner(method SigningMethod, secret, privateKey, publicKey []byte, keyID string) (Signer, error) {
	switch method {
	case MethodHS256, "":
		return NewHMACSigner(secret, keyID)
	case MethodEd25519:
		return NewEd25519Signer(privateKey, publicKey, keyID)
	default:
		return nil, fmt.Errorf("unsupported signing method %q", method)
	}
}

// Now returns the manager's current time.
func (m *Manager) Now() time.Time {
	return m.now()
}

// DefaultTTL returns the configured credential lifetime.
func (m *Manager) DefaultTTL() time.Duration {
	return m.config.DefaultTTL
}

// Issue signs a credential for p that expires ttl from now. A zero ttl yields
// a credential valid only at the issuing instant; a negative ttl yields an
// already-expired one.
func (m *Manager) Issue(p Payload, ttl time.Duration) (string, error) {
	if p.UserID == "" {
		return "", errors.New("payload user id required")
	}

	now := m.now()
	exp := now.Add(ttl)
	claims := &Claims{
		UserID:        p.UserID,
		Email:         p.Email,
		Role:          p.Role,
		Plan:          p.Plan,
		ExpiresAtNano: exp.UnixNano(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Subject:  p.UserID,
			Issuer:   m.config.Issuer,
			IssuedAt: jwt.NewNumericDate(now),
			// Rounded up so second-resolution readers never see an earlier expiry.
			ExpiresAt: jwt.NewNumericDate(exp.Add(time.Second - 1)),
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	return m.signer.Sign(claims)
}

// IssueDefault signs a credential with the configured default TTL.
func (m *Manager) IssueDefault(p Payload) (string, error) {
	return m.Issue(p, m.config.DefaultTTL)
}

// Verify authenticates token and returns its embedded payload unchanged.
// Failures wrap [ErrMalformed] or [ErrExpired]. Expiry is compared at
// nanosecond resolution; a credential whose expiry equals the current
// instant is still valid.
func (m *Manager) Verify(token string) (*Verified, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty credential", ErrMalformed)
	}

	claims, err := m.signer.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if claims.UserID == "" || claims.ExpiresAtNano == 0 {
		return nil, fmt.Errorf("%w: missing required claims", ErrMalformed)
	}
	if m.config.Issuer != "" && claims.Issuer != m.config.Issuer {
		return nil, fmt.Errorf("%w: issuer mismatch", ErrMalformed)
	}
	if m.config.Audience != "" && !hasAudience(claims.Audience, m.config.Audience) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrMalformed)
	}

	if m.now().After(time.Unix(0, claims.ExpiresAtNano)) {
		return nil, ErrExpired
	}

	return toVerified(token, claims)
}

// Inspect authenticates token and returns its claims even when expired. It
// is used by revocation, which must accept credentials at any age.
func (m *Manager) Inspect(token string) (*Verified, error) {
	v, err := m.Verify(token)
	if err == nil || !errors.Is(err, ErrExpired) {
		return v, err
	}

	// Verify already accepted everything but the expiry.
	claims, err := m.signer.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return toVerified(token, claims)
}

func toVerified(token string, claims *Claims) (*Verified, error) {
	i := strings.LastIndexByte(token, '.')
	sig, err := base64.RawURLEncoding.Strict().DecodeString(token[i+1:])
	if i < 0 || err != nil || len(sig) == 0 {
		return nil, fmt.Errorf("%w: signature segment", ErrMalformed)
	}
	v := &Verified{
		Payload: Payload{
			UserID: claims.UserID,
			Email:  claims.Email,
			Role:   claims.Role,
			Plan:   claims.Plan,
		},
		ID:        claims.ID,
		ExpiresAt: time.Unix(0, claims.ExpiresAtNano),
		Signature: sig,
	}
	if claims.IssuedAt != nil {
		v.IssuedAt = claims.IssuedAt.Time
	}
	return v, nil
}

func hasAudience(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}
