package authgate

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func nextEvent(t *testing.T, sink *ChannelSink) AuditEvent {
	t.Helper()
	select {
	case ev := <-sink.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit event")
		return AuditEvent{}
	}
}

func TestAuditLoginEvents(t *testing.T) {
	sink := NewChannelSink(16)
	env := newLoginEnv(t, func(cfg *Config, b *Builder) {
		cfg.Audit.Enabled = true
		b.WithAuditSink(sink)
	})
	ctx := WithClientIP(context.Background(), "198.51.100.4")

	if _, err := env.engine.Login(ctx, alice.Email, "wrong"); err == nil {
		t.Fatal("expected failure")
	}
	ev := nextEvent(t, sink)
	if ev.EventType != "login_failure" || ev.Success || ev.Error != "INVALID_CREDENTIALS" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.IP != "198.51.100.4" {
		t.Fatalf("expected client ip, got %q", ev.IP)
	}

	res, err := env.engine.Login(ctx, alice.Email, alicePassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	ev = nextEvent(t, sink)
	if ev.EventType != "login_success" || !ev.Success || ev.SessionID != res.Session.SessionID {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestAuditRejectionCarriesCodeNotCause(t *testing.T) {
	sink := NewChannelSink(16)
	env := newTestEnv(t, func(cfg *Config, b *Builder) {
		cfg.Audit.Enabled = true
		b.WithAuditSink(sink)
	})
	token := env.issue(t, alice, time.Hour)
	if err := env.engine.RevokeCredential(context.Background(), token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if ev := nextEvent(t, sink); ev.EventType != "credential_revoked" || ev.UserID != alice.UserID {
		t.Fatalf("unexpected event %+v", ev)
	}

	_, _ = env.engine.Authenticate(context.Background(), token)
	ev := nextEvent(t, sink)
	if ev.EventType != "auth_rejected" || ev.Error != "CREDENTIAL_REVOKED" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestAuditMissingCredentialNotRecorded(t *testing.T) {
	sink := NewChannelSink(4)
	env := newTestEnv(t, func(cfg *Config, b *Builder) {
		cfg.Audit.Enabled = true
		b.WithAuditSink(sink)
	})
	_, _ = env.engine.AuthenticateHeader(context.Background(), "")
	env.engine.Close()

	select {
	case ev := <-sink.Events():
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestAuditJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	env := newTestEnv(t, func(cfg *Config, b *Builder) {
		cfg.Audit.Enabled = true
		b.WithAuditSink(sink)
	})
	if _, err := env.engine.StartSession(context.Background(), alice.UserID); err != nil {
		t.Fatalf("start: %v", err)
	}
	env.engine.Close()

	line := strings.TrimSpace(buf.String())
	var ev map[string]any
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		t.Fatalf("decode %q: %v", line, err)
	}
	if ev["event_type"] != "session_created" || ev["user_id"] != alice.UserID {
		t.Fatalf("unexpected event %v", ev)
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	first, second := NewChannelSink(4), NewChannelSink(4)
	multi := MultiSink{first, nil, second}

	multi.Emit(context.Background(), AuditEvent{EventType: "logout", UserID: "u-1"})

	for i, sink := range []*ChannelSink{first, second} {
		if ev := nextEvent(t, sink); ev.EventType != "logout" || ev.UserID != "u-1" {
			t.Fatalf("sink %d: unexpected event %+v", i, ev)
		}
	}
}
