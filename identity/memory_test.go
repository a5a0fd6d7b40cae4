package identity

import (
	"context"
	"testing"

	"github.com/MrEthical07/authgate"
)

func TestMemoryStoreLookups(t *testing.T) {
	store := NewMemoryStore(authgate.UserRecord{
		UserID: "u1", Email: "Bob@example.com", Role: authgate.RoleUser, Status: authgate.StatusActive,
	})
	ctx := context.Background()

	got, err := store.FindByEmail(ctx, "bob@EXAMPLE.com")
	if err != nil || got == nil || got.UserID != "u1" {
		t.Fatalf("find by email: %+v %v", got, err)
	}

	if !store.SetStatus("u1", authgate.StatusDisabled) {
		t.Fatal("expected SetStatus to find user")
	}
	got, _ = store.FindByID(ctx, "u1")
	if got.Status != authgate.StatusDisabled {
		t.Fatalf("expected DISABLED, got %q", got.Status)
	}

	got.Role = authgate.RoleAdmin
	again, _ := store.FindByID(ctx, "u1")
	if again.Role != authgate.RoleUser {
		t.Fatal("returned record must be a copy")
	}

	store.Remove("u1")
	if got, _ := store.FindByID(ctx, "u1"); got != nil {
		t.Fatalf("expected removed user to be nil, got %+v", got)
	}
	if got, _ := store.FindByEmail(ctx, "bob@example.com"); got != nil {
		t.Fatalf("expected email index cleared, got %+v", got)
	}
}
