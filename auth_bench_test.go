package authgate

import (
	"context"
	"testing"
	"time"
)

func BenchmarkAuthenticate(b *testing.B) {
	env := newTestEnv(b, func(cfg *Config, _ *Builder) { cfg.Audit.Enabled = false })
	token := env.issue(b, alice, time.Hour)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := env.engine.Authenticate(ctx, token); err != nil {
			b.Fatalf("authenticate failed: %v", err)
		}
	}
}

func BenchmarkAuthenticateRevoked(b *testing.B) {
	env := newTestEnv(b, func(cfg *Config, _ *Builder) { cfg.Audit.Enabled = false })
	token := env.issue(b, alice, time.Hour)
	ctx := context.Background()
	if err := env.engine.RevokeCredential(ctx, token); err != nil {
		b.Fatalf("revoke: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := env.engine.Authenticate(ctx, token); err == nil {
			b.Fatal("revoked credential authenticated")
		}
	}
}

func BenchmarkHydrateSession(b *testing.B) {
	env := newTestEnv(b, func(cfg *Config, _ *Builder) { cfg.Audit.Enabled = false })
	ctx := context.Background()
	s, err := env.engine.StartSession(ctx, alice.UserID)
	if err != nil {
		b.Fatalf("start session: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		got, err := env.engine.HydrateSession(ctx, s.SessionID)
		if err != nil || got == nil {
			b.Fatalf("hydrate failed: %v", err)
		}
	}
}

func BenchmarkLogin(b *testing.B) {
	env := newLoginEnv(b, func(cfg *Config, _ *Builder) {
		cfg.Audit.Enabled = false
		cfg.Login.MaxAttempts = 0
	})
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res, err := env.engine.Login(ctx, alice.Email, alicePassword)
		if err != nil {
			b.Fatalf("login failed: %v", err)
		}
		_ = env.engine.Logout(ctx, res.Credential.Token, res.Session.SessionID)
	}
}
