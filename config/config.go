// Package config loads server settings from flags, the environment and an
// optional config file using Viper. Environment variables carry the
// AUTHGATE_ prefix; flags override both.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/MrEthical07/authgate"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "AUTHGATE"

// Settings is everything the server needs to start.
type Settings struct {
	// HTTPAddr is the listen address (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// RedisURL is a redis:// URL. Empty starts an in-process miniredis (development only).
	RedisURL string `mapstructure:"REDIS_URL"`
	// DatabaseDriver is "pgx" or "sqlite". Empty uses an in-memory identity store.
	DatabaseDriver string `mapstructure:"DATABASE_DRIVER"`
	DatabaseURL    string `mapstructure:"DATABASE_URL"`

	// PolicyFile is a YAML role/permission matrix. RegoFile is a rego module;
	// it wins when both are set.
	PolicyFile string `mapstructure:"POLICY_FILE"`
	RegoFile   string `mapstructure:"REGO_FILE"`
	RegoQuery  string `mapstructure:"REGO_QUERY"`

	// AMQPURL enables the RabbitMQ audit sink.
	AMQPURL      string `mapstructure:"AMQP_URL"`
	AMQPExchange string `mapstructure:"AMQP_EXCHANGE"`

	// OTLPEndpoint enables trace and metric export over OTLP/gRPC.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	ServiceName  string `mapstructure:"SERVICE_NAME"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// SigningSecret is the HS256 secret. SigningSecretID names an AWS
	// Secrets Manager secret to fetch it from instead.
	SigningSecret   string `mapstructure:"SIGNING_SECRET"`
	SigningSecretID string `mapstructure:"SIGNING_SECRET_ID"`
	AWSRegion       string `mapstructure:"AWS_REGION"`

	SigningMethod  string `mapstructure:"SIGNING_METHOD"`
	PrivateKeyFile string `mapstructure:"PRIVATE_KEY_FILE"`
	PublicKeyFile  string `mapstructure:"PUBLIC_KEY_FILE"`
	KeyID          string `mapstructure:"KEY_ID"`

	TokenTTL      time.Duration `mapstructure:"TOKEN_TTL"`
	TokenIssuer   string        `mapstructure:"TOKEN_ISSUER"`
	TokenAudience string        `mapstructure:"TOKEN_AUDIENCE"`

	SessionIdleTimeout      time.Duration `mapstructure:"SESSION_IDLE_TIMEOUT"`
	SessionAbsoluteLifetime time.Duration `mapstructure:"SESSION_ABSOLUTE_LIFETIME"`
	SessionCookieName       string        `mapstructure:"SESSION_COOKIE_NAME"`

	BcryptCost       int           `mapstructure:"BCRYPT_COST"`
	LoginMaxAttempts int           `mapstructure:"LOGIN_MAX_ATTEMPTS"`
	LoginCooldown    time.Duration `mapstructure:"LOGIN_COOLDOWN"`
	LoginIPThrottle  bool          `mapstructure:"LOGIN_IP_THROTTLE"`

	AuditEnabled     bool          `mapstructure:"AUDIT_ENABLED"`
	AuditBufferSize  int           `mapstructure:"AUDIT_BUFFER_SIZE"`
	AuditSinkTimeout time.Duration `mapstructure:"AUDIT_SINK_TIMEOUT"`
	MetricsEnabled   bool          `mapstructure:"METRICS_ENABLED"`

	// Auth is assembled from the fields above by Load.
	Auth authgate.Config `mapstructure:"-"`
}

// Options controls Load. Zero values are usable.
type Options struct {
	// Secrets resolves SigningSecretID. Defaults to an AWS Secrets Manager
	// client built from the default credential chain.
	Secrets SecretSource
}

// flag name -> settings key
var flagKeys = map[string]string{
	"config":          "",
	"http-addr":       "HTTP_ADDR",
	"redis-url":       "REDIS_URL",
	"database-driver": "DATABASE_DRIVER",
	"database-url":    "DATABASE_URL",
	"policy-file":     "POLICY_FILE",
	"rego-file":       "REGO_FILE",
	"amqp-url":        "AMQP_URL",
	"otlp-endpoint":   "OTLP_ENDPOINT",
	"log-level":       "LOG_LEVEL",
}

// NewFlagSet declares the command-line flags understood by Load.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "path to a YAML or .env config file")
	fs.String("http-addr", "", "listen address")
	fs.String("redis-url", "", "redis URL (empty: in-process miniredis)")
	fs.String("database-driver", "", "identity store driver: pgx or sqlite")
	fs.String("database-url", "", "identity store DSN")
	fs.String("policy-file", "", "YAML role/permission matrix")
	fs.String("rego-file", "", "rego permission policy module")
	fs.String("amqp-url", "", "RabbitMQ URL for audit events")
	fs.String("otlp-endpoint", "", "OTLP/gRPC collector endpoint")
	fs.String("log-level", "", "debug, info, warn or error")
	return fs
}

// Load parses args, reads the config file if one was given and builds
// Settings. pflag.ErrHelp is returned unchanged for -h.
func Load(ctx context.Context, args []string, opts Options) (*Settings, error) {
	fs := NewFlagSet("authgate-server")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if strings.HasSuffix(path, ".env") {
			v.SetConfigType("env")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if key == "" {
			continue
		}
		if f := fs.Lookup(name); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if s.SigningSecretID != "" {
		src := opts.Secrets
		if src == nil {
			client, err := NewAWSSecretSource(ctx, s.AWSRegion)
			if err != nil {
				return nil, err
			}
			src = client
		}
		secret, err := FetchSigningSecret(ctx, src, s.SigningSecretID)
		if err != nil {
			return nil, err
		}
		s.SigningSecret = secret
	}

	if err := s.buildAuth(); err != nil {
		return nil, err
	}
	if err := s.Auth.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &s, nil
}

func setDefaults(v *viper.Viper) {
	d := authgate.DefaultConfig()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("DATABASE_DRIVER", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("POLICY_FILE", "")
	v.SetDefault("REGO_FILE", "")
	v.SetDefault("REGO_QUERY", "")
	v.SetDefault("AMQP_URL", "")
	v.SetDefault("AMQP_EXCHANGE", "authgate.audit")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("SERVICE_NAME", "authgate")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("SIGNING_SECRET", "")
	v.SetDefault("SIGNING_SECRET_ID", "")
	v.SetDefault("AWS_REGION", "")
	v.SetDefault("SIGNING_METHOD", d.Token.SigningMethod)
	v.SetDefault("PRIVATE_KEY_FILE", "")
	v.SetDefault("PUBLIC_KEY_FILE", "")
	v.SetDefault("KEY_ID", "")
	v.SetDefault("TOKEN_TTL", d.Token.DefaultTTL)
	v.SetDefault("TOKEN_ISSUER", d.Token.Issuer)
	v.SetDefault("TOKEN_AUDIENCE", d.Token.Audience)
	v.SetDefault("SESSION_IDLE_TIMEOUT", d.Session.IdleTimeout)
	v.SetDefault("SESSION_ABSOLUTE_LIFETIME", d.Session.AbsoluteLifetime)
	v.SetDefault("SESSION_COOKIE_NAME", d.Session.CookieName)
	v.SetDefault("BCRYPT_COST", d.Login.BcryptCost)
	v.SetDefault("LOGIN_MAX_ATTEMPTS", d.Login.MaxAttempts)
	v.SetDefault("LOGIN_COOLDOWN", d.Login.Cooldown)
	v.SetDefault("LOGIN_IP_THROTTLE", d.Login.EnableIPThrottle)
	v.SetDefault("AUDIT_ENABLED", true)
	v.SetDefault("AUDIT_BUFFER_SIZE", d.Audit.BufferSize)
	v.SetDefault("AUDIT_SINK_TIMEOUT", d.Audit.SinkTimeout)
	v.SetDefault("METRICS_ENABLED", d.Metrics.Enabled)
}

func (s *Settings) buildAuth() error {
	cfg := authgate.DefaultConfig()

	cfg.Token.SigningMethod = strings.ToLower(s.SigningMethod)
	cfg.Token.Secret = []byte(s.SigningSecret)
	cfg.Token.KeyID = s.KeyID
	cfg.Token.DefaultTTL = s.TokenTTL
	cfg.Token.Issuer = s.TokenIssuer
	cfg.Token.Audience = s.TokenAudience
	if s.PrivateKeyFile != "" {
		key, err := os.ReadFile(s.PrivateKeyFile)
		if err != nil {
			return fmt.Errorf("config: read private key: %w", err)
		}
		cfg.Token.PrivateKey = key
	}
	if s.PublicKeyFile != "" {
		key, err := os.ReadFile(s.PublicKeyFile)
		if err != nil {
			return fmt.Errorf("config: read public key: %w", err)
		}
		cfg.Token.PublicKey = key
	}

	cfg.Session.IdleTimeout = s.SessionIdleTimeout
	cfg.Session.AbsoluteLifetime = s.SessionAbsoluteLifetime
	cfg.Session.CookieName = s.SessionCookieName

	cfg.Login.BcryptCost = s.BcryptCost
	cfg.Login.MaxAttempts = s.LoginMaxAttempts
	cfg.Login.Cooldown = s.LoginCooldown
	cfg.Login.EnableIPThrottle = s.LoginIPThrottle

	cfg.Audit.Enabled = s.AuditEnabled
	cfg.Audit.BufferSize = s.AuditBufferSize
	cfg.Audit.SinkTimeout = s.AuditSinkTimeout
	cfg.Metrics.Enabled = s.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = s.MetricsEnabled

	switch s.DatabaseDriver {
	case "", "pgx", "sqlite":
	default:
		return errors.New("config: DATABASE_DRIVER must be pgx or sqlite")
	}
	if s.DatabaseDriver != "" && s.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL must be set with DATABASE_DRIVER")
	}

	s.Auth = cfg
	return nil
}

// Logger builds the process logger described by LogLevel and LogFormat.
func (s *Settings) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(s.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
