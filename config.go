package authgate

import (
	"errors"
	"strings"
	"time"
)

// Config is the engine configuration. It is cloned into the engine at
// Build and never mutated afterwards.
type Config struct {
	Token      TokenConfig
	Revocation RevocationConfig
	Session    SessionConfig
	Login      LoginConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls credential signing and validation.
type TokenConfig struct {
	SigningMethod string // "hs256" (default) or "ed25519"
	Secret        []byte // hs256 shared secret, at least 32 bytes
	PrivateKey    []byte // ed25519, raw or PEM
	PublicKey     []byte // ed25519, raw or PEM
	KeyID         string
	DefaultTTL    time.Duration
	Issuer        string
	Audience      string
}

/*
====================================
REVOCATION / SESSION CONFIG
====================================
*/

// RevocationConfig controls the revocation store.
type RevocationConfig struct {
	RedisPrefix string
}

// SessionConfig controls server-side sessions.
type SessionConfig struct {
	RedisPrefix      string
	IdleTimeout      time.Duration
	AbsoluteLifetime time.Duration
	CookieName       string
}

/*
====================================
LOGIN CONFIG
====================================
*/

// LoginConfig controls password login and its failure throttle.
type LoginConfig struct {
	BcryptCost       int
	MaxAttempts      int
	Cooldown         time.Duration
	EnableIPThrottle bool
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// SinkTimeout bounds each sink call, e.g. an AMQP publish.
	SinkTimeout time.Duration
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. Signing material must
// still be supplied.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			SigningMethod: "hs256",
			DefaultTTL:    time.Hour,
			Issuer:        "authgate",
		},
		Revocation: RevocationConfig{
			RedisPrefix: "arv",
		},
		Session: SessionConfig{
			RedisPrefix:      "as",
			IdleTimeout:      30 * time.Minute,
			AbsoluteLifetime: 7 * 24 * time.Hour,
			CookieName:       "sid",
		},
		Login: LoginConfig{
			BcryptCost:  12,
			MaxAttempts: 5,
			Cooldown:    15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:     false,
			BufferSize:  1024,
			DropIfFull:  true,
			SinkTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	return c.validate(true)
}

// validate skips key material checks when keys is false, for engines built
// with an explicit signer.
func (c *Config) validate(keys bool) error {
	// Token
	if c.Token.DefaultTTL <= 0 {
		return errors.New("Token DefaultTTL must be > 0")
	}
	if keys {
		if err := c.validateKeys(); err != nil {
			return err
		}
	}

	// Stores
	if strings.TrimSpace(c.Revocation.RedisPrefix) == "" {
		return errors.New("Revocation RedisPrefix must not be empty")
	}
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if c.Revocation.RedisPrefix == c.Session.RedisPrefix {
		return errors.New("Revocation and Session RedisPrefix must differ")
	}
	if c.Session.IdleTimeout <= 0 {
		return errors.New("Session IdleTimeout must be > 0")
	}
	if c.Session.AbsoluteLifetime < 0 {
		return errors.New("Session AbsoluteLifetime must be >= 0")
	}
	if c.Session.AbsoluteLifetime > 0 && c.Session.AbsoluteLifetime < c.Session.IdleTimeout {
		return errors.New("Session AbsoluteLifetime must be >= IdleTimeout")
	}
	if strings.TrimSpace(c.Session.CookieName) == "" {
		return errors.New("Session CookieName must not be empty")
	}

	// Login
	if c.Login.MaxAttempts < 0 {
		return errors.New("Login MaxAttempts must be >= 0")
	}
	if c.Login.MaxAttempts > 0 && c.Login.Cooldown <= 0 {
		return errors.New("Login Cooldown must be > 0 when MaxAttempts is set")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}
	if c.Audit.SinkTimeout < 0 {
		return errors.New("Audit SinkTimeout must be >= 0")
	}

	return nil
}

func (c *Config) validateKeys() error {
	switch c.Token.SigningMethod {
	case "hs256", "":
		if len(c.Token.Secret) < 32 {
			return errors.New("hs256 requires a Secret of at least 32 bytes")
		}
	case "ed25519":
		if len(c.Token.PrivateKey) == 0 && len(c.Token.PublicKey) == 0 {
			return errors.New("ed25519 requires PrivateKey or PublicKey")
		}
	default:
		return errors.New("unsupported Token signing method")
	}
	return nil
}
