package authgate

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHydrateSessionEmptyAndUnknown(t *testing.T) {
	env := newTestEnv(t, nil)

	s, err := env.engine.HydrateSession(context.Background(), "")
	if err != nil || s != nil {
		t.Fatalf("expected nil, nil for empty id, got %v, %v", s, err)
	}
	s, err = env.engine.HydrateSession(context.Background(), "no-such-session")
	if err != nil || s != nil {
		t.Fatalf("expected nil, nil for unknown id, got %v, %v", s, err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricSessionMiss]; got != 1 {
		t.Fatalf("expected 1 miss, got %d", got)
	}
}

func TestHydrateSessionTouches(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	created, err := env.engine.StartSession(ctx, alice.UserID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	env.clock.Advance(10 * time.Minute)
	env.redis.FastForward(10 * time.Minute)

	s, err := env.engine.HydrateSession(ctx, created.SessionID)
	if err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	if s == nil || s.UserID != alice.UserID || s.SessionID != created.SessionID {
		t.Fatalf("unexpected session %+v", s)
	}
	if !s.LastActivityAt.After(created.LastActivityAt) {
		t.Fatal("expected last activity to advance")
	}

	// Idle timeout is 30m; the touch above renewed it.
	env.clock.Advance(25 * time.Minute)
	env.redis.FastForward(25 * time.Minute)
	if s, _ := env.engine.HydrateSession(ctx, created.SessionID); s == nil {
		t.Fatal("session expired despite touch")
	}
}

func TestHydrateSessionIdleExpiry(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	created, err := env.engine.StartSession(ctx, alice.UserID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	env.clock.Advance(31 * time.Minute)
	env.redis.FastForward(31 * time.Minute)

	s, err := env.engine.HydrateSession(ctx, created.SessionID)
	if err != nil || s != nil {
		t.Fatalf("expected expired session to hydrate nothing, got %v, %v", s, err)
	}
}

func TestHydrateSessionFailsClosed(t *testing.T) {
	env := newTestEnv(t, nil)
	created, err := env.engine.StartSession(context.Background(), alice.UserID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	env.redis.Close()

	_, err = env.engine.HydrateSession(context.Background(), created.SessionID)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestEndSession(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	created, err := env.engine.StartSession(ctx, alice.UserID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := env.engine.EndSession(ctx, created.SessionID); err != nil {
			t.Fatalf("end #%d: %v", i, err)
		}
	}
	if s, _ := env.engine.HydrateSession(ctx, created.SessionID); s != nil {
		t.Fatal("ended session still hydrates")
	}
}

func TestEndAllSessions(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		s, err := env.engine.StartSession(ctx, alice.UserID)
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		ids = append(ids, s.SessionID)
	}
	other, err := env.engine.StartSession(ctx, root.UserID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	n, err := env.engine.EndAllSessions(ctx, alice.UserID)
	if err != nil {
		t.Fatalf("end all: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 sessions ended, got %d", n)
	}
	for _, id := range ids {
		if s, _ := env.engine.HydrateSession(ctx, id); s != nil {
			t.Fatalf("session %s survived", id)
		}
	}
	if s, _ := env.engine.HydrateSession(ctx, other.SessionID); s == nil {
		t.Fatal("another user's session was ended")
	}
}

func TestStartSessionRequiresUser(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.engine.StartSession(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty user id")
	}
}
