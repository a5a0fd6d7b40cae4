package config

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/spf13/pflag"
)

var testSecret = strings.Repeat("s", 32)

type fakeSecrets struct {
	value *string
	err   error
	asked string
}

func (f *fakeSecrets) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.asked = aws.ToString(in.SecretId)
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: f.value}, nil
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTHGATE_SIGNING_SECRET", testSecret)

	s, err := Load(context.Background(), nil, Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.HTTPAddr != ":8080" {
		t.Fatalf("unexpected addr %q", s.HTTPAddr)
	}
	if string(s.Auth.Token.Secret) != testSecret {
		t.Fatal("secret not carried into auth config")
	}
	if s.Auth.Session.IdleTimeout != 30*time.Minute || s.Auth.Session.CookieName != "sid" {
		t.Fatalf("unexpected session config %+v", s.Auth.Session)
	}
	if !s.Auth.Audit.Enabled {
		t.Fatal("expected audit enabled by default")
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("AUTHGATE_SIGNING_SECRET", "")
	if _, err := Load(context.Background(), nil, Options{}); err == nil {
		t.Fatal("expected missing secret to fail validation")
	}
}

func TestLoadEnvAndFlags(t *testing.T) {
	t.Setenv("AUTHGATE_SIGNING_SECRET", testSecret)
	t.Setenv("AUTHGATE_HTTP_ADDR", ":9000")
	t.Setenv("AUTHGATE_SESSION_IDLE_TIMEOUT", "10m")
	t.Setenv("AUTHGATE_LOGIN_MAX_ATTEMPTS", "3")
	t.Setenv("AUTHGATE_LOGIN_IP_THROTTLE", "true")

	s, err := Load(context.Background(), []string{"--http-addr", ":7000", "--log-level", "debug"}, Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.HTTPAddr != ":7000" {
		t.Fatalf("flag should win over env, got %q", s.HTTPAddr)
	}
	if s.Auth.Session.IdleTimeout != 10*time.Minute {
		t.Fatalf("unexpected idle timeout %v", s.Auth.Session.IdleTimeout)
	}
	if s.Auth.Login.MaxAttempts != 3 || !s.Auth.Login.EnableIPThrottle {
		t.Fatalf("unexpected login config %+v", s.Auth.Login)
	}
	if !s.Logger(os.Stderr).Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug logging enabled")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "authgate.yaml")
	body := "SIGNING_SECRET: " + testSecret + "\nTOKEN_TTL: 5m\nDATABASE_DRIVER: sqlite\nDATABASE_URL: file:users.db\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	s, err := Load(context.Background(), []string{"--config", path}, Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Auth.Token.DefaultTTL != 5*time.Minute {
		t.Fatalf("unexpected ttl %v", s.Auth.Token.DefaultTTL)
	}
	if s.DatabaseDriver != "sqlite" {
		t.Fatalf("unexpected driver %q", s.DatabaseDriver)
	}
}

func TestLoadRejectsBadDriver(t *testing.T) {
	t.Setenv("AUTHGATE_SIGNING_SECRET", testSecret)
	t.Setenv("AUTHGATE_DATABASE_DRIVER", "mysql")
	t.Setenv("AUTHGATE_DATABASE_URL", "x")
	if _, err := Load(context.Background(), nil, Options{}); err == nil {
		t.Fatal("expected unsupported driver to fail")
	}
}

func TestLoadHelp(t *testing.T) {
	if _, err := Load(context.Background(), []string{"--help"}, Options{}); !errors.Is(err, pflag.ErrHelp) {
		t.Fatalf("expected ErrHelp, got %v", err)
	}
}

func TestLoadSecretFromSecretsManager(t *testing.T) {
	t.Setenv("AUTHGATE_SIGNING_SECRET", "")
	t.Setenv("AUTHGATE_SIGNING_SECRET_ID", "prod/authgate")
	src := &fakeSecrets{value: aws.String(`{"AUTHGATE_SIGNING_SECRET":"` + testSecret + `"}`)}

	s, err := Load(context.Background(), nil, Options{Secrets: src})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if src.asked != "prod/authgate" {
		t.Fatalf("unexpected secret id %q", src.asked)
	}
	if string(s.Auth.Token.Secret) != testSecret {
		t.Fatal("secret not taken from secrets manager")
	}
}

func TestFetchSigningSecret(t *testing.T) {
	ctx := context.Background()

	raw, err := FetchSigningSecret(ctx, &fakeSecrets{value: aws.String(testSecret)}, "id")
	if err != nil || raw != testSecret {
		t.Fatalf("raw payload: %q, %v", raw, err)
	}
	if _, err := FetchSigningSecret(ctx, &fakeSecrets{value: aws.String(`{"other":"x"}`)}, "id"); err == nil {
		t.Fatal("expected missing field error")
	}
	if _, err := FetchSigningSecret(ctx, &fakeSecrets{}, "id"); err == nil {
		t.Fatal("expected empty payload error")
	}
	if _, err := FetchSigningSecret(ctx, &fakeSecrets{err: errors.New("denied")}, "id"); err == nil {
		t.Fatal("expected fetch error")
	}
}
