package authgate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	internalaudit "github.com/MrEthical07/authgate/internal/audit"
	"github.com/MrEthical07/authgate/internal/flows"
	"github.com/MrEthical07/authgate/internal/rate"
	"github.com/MrEthical07/authgate/jwt"
	"github.com/MrEthical07/authgate/password"
	"github.com/MrEthical07/authgate/revocation"
	"github.com/MrEthical07/authgate/session"
)

const tracerName = "github.com/MrEthical07/authgate"

// Builder assembles an [Engine]. It is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	identities  IdentityLookup
	credentials CredentialLookup
	policy      PermissionPolicy
	signer      jwt.Signer
	auditSink   AuditSink
	logger      *slog.Logger
	tracer      trace.TracerProvider
	now         func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithIdentityLookup sets the user store. If lookup also implements
// [CredentialLookup] it serves Login too.
func (b *Builder) WithIdentityLookup(lookup IdentityLookup) *Builder {
	b.identities = lookup
	return b
}

func (b *Builder) WithCredentialLookup(lookup CredentialLookup) *Builder {
	b.credentials = lookup
	return b
}

// WithPermissionPolicy replaces [AdminOnly].
func (b *Builder) WithPermissionPolicy(p PermissionPolicy) *Builder {
	b.policy = p
	return b
}

// WithSigner overrides the signer derived from Config.Token.
func (b *Builder) WithSigner(s jwt.Signer) *Builder {
	b.signer = s
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracer = tp
	return b
}

// WithClock overrides the time source for credentials and sessions. Tests only.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and constructs the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.identities == nil {
		return nil, errors.New("identity lookup required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.validate(b.signer == nil); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	tp := b.tracer
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	policy := b.policy
	if policy == nil {
		policy = AdminOnly()
	}
	credentials := b.credentials
	if credentials == nil {
		credentials, _ = b.identities.(CredentialLookup)
	}

	// -------- TOKENS --------
	signer := b.signer
	if signer == nil {
		s, err := jwt.NewSigner(
			jwt.SigningMethod(cfg.Token.SigningMethod),
			cfg.Token.Secret,
			cfg.Token.PrivateKey,
			cfg.Token.PublicKey,
			cfg.Token.KeyID,
		)
		if err != nil {
			return nil, err
		}
		signer = s
	}
	tokens, err := jwt.NewManager(jwt.Config{
		DefaultTTL: cfg.Token.DefaultTTL,
		Issuer:     cfg.Token.Issuer,
		Audience:   cfg.Token.Audience,
	}, signer, jwt.WithClock(now))
	if err != nil {
		return nil, err
	}

	// -------- STORES --------
	revocations := revocation.NewStore(b.redis, cfg.Revocation.RedisPrefix)
	sessions, err := session.NewStore(b.redis, session.Config{
		Prefix:           cfg.Session.RedisPrefix,
		IdleTimeout:      cfg.Session.IdleTimeout,
		AbsoluteLifetime: cfg.Session.AbsoluteLifetime,
	})
	if err != nil {
		return nil, err
	}
	sessions.SetClock(now)

	engine := &Engine{
		config:      cfg,
		tokens:      tokens,
		revocations: revocations,
		sessions:    sessions,
		identities:  b.identities,
		credentials: credentials,
		policy:      policy,
		hasher:      password.NewHasher(cfg.Login.BcryptCost),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:     cfg.Audit.Enabled,
			BufferSize:  cfg.Audit.BufferSize,
			DropIfFull:  cfg.Audit.DropIfFull,
			SinkTimeout: cfg.Audit.SinkTimeout,
		}, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger,
		tracer:  tp.Tracer(tracerName),
		now:     now,
	}
	if cfg.Login.MaxAttempts > 0 {
		engine.limiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle: cfg.Login.EnableIPThrottle,
			MaxAttempts:      cfg.Login.MaxAttempts,
			Cooldown:         cfg.Login.Cooldown,
		})
	}
	if credentials != nil {
		// Equalizes unknown-email and wrong-password timing.
		dummy, err := engine.hasher.Hash("authgate-dummy-password")
		if err != nil {
			return nil, err
		}
		engine.dummyHash = dummy
	}
	engine.flows = engine.buildFlowDeps()

	b.built = true
	return engine, nil
}

func (e *Engine) buildFlowDeps() flows.Deps {
	revokeDeps := flows.RevokeDeps{
		Inspect: e.tokens.Inspect,
		Revoke:  e.revocations.Revoke,
		Now:     e.now,
	}

	d := flows.Deps{
		Authenticate: flows.AuthenticateDeps{
			Verify:       e.tokens.Verify,
			IsRevoked:    e.revocations.IsRevoked,
			FindUser:     e.findUser,
			ActiveStatus: string(StatusActive),
		},
		Hydrate: flows.HydrateDeps{Store: e.sessions},
		Revoke:  revokeDeps,
		Logout: flows.LogoutDeps{
			Revoke:        revokeDeps,
			DeleteSession: e.sessions.Delete,
		},
		Login: flows.LoginDeps{
			FindByEmail:    e.findLoginUser,
			VerifyPassword: e.hasher.Verify,
			DummyHash:      e.dummyHash,
			ActiveStatus:   string(StatusActive),
			Issue:          e.issueFor,
			CreateSession:  e.sessions.Create,
			Warn: func(msg string, args ...any) {
				e.logger.Warn(msg, args...)
			},
		},
	}
	if e.limiter != nil {
		d.Login.CheckRate = e.limiter.Check
		d.Login.RecordFailure = e.limiter.RecordFailure
		d.Login.ResetRate = e.limiter.Reset
	}
	return d
}

func (e *Engine) findUser(ctx context.Context, userID string) (*flows.UserInfo, error) {
	u, err := e.identities.FindByID(ctx, userID)
	if err != nil || u == nil {
		return nil, err
	}
	return toUserInfo(u), nil
}

func (e *Engine) findLoginUser(ctx context.Context, email string) (*flows.LoginUser, error) {
	u, err := e.credentials.FindByEmail(ctx, email)
	if err != nil || u == nil {
		return nil, err
	}
	return &flows.LoginUser{UserInfo: *toUserInfo(u), PasswordHash: u.PasswordHash}, nil
}

func (e *Engine) issueFor(u *flows.UserInfo) (string, time.Time, error) {
	token, err := e.tokens.IssueDefault(jwt.Payload{
		UserID: u.UserID,
		Email:  u.Email,
		Role:   u.Role,
		Plan:   u.Plan,
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return token, e.now().Add(e.tokens.DefaultTTL()), nil
}

func toUserInfo(u *UserRecord) *flows.UserInfo {
	return &flows.UserInfo{
		UserID: u.UserID,
		Email:  u.Email,
		Role:   u.Role,
		Plan:   u.Plan,
		Status: string(u.Status),
	}
}
