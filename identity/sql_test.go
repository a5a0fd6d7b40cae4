package identity

import (
	"context"
	"testing"

	"github.com/MrEthical07/authgate"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	ctx := context.Background()
	store, err := Open(ctx, DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestSQLStoreFindByIDAndEmail(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	want := authgate.UserRecord{
		UserID:       "u1",
		Email:        "Alice@Example.com",
		Role:         authgate.RoleAdmin,
		Plan:         "pro",
		Status:       authgate.StatusActive,
		PasswordHash: "$2a$hash",
	}
	if err := store.Put(ctx, want); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.FindByID(ctx, "u1")
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if got == nil || got.Role != authgate.RoleAdmin || got.Status != authgate.StatusActive || got.Email != "alice@example.com" {
		t.Fatalf("unexpected record %+v", got)
	}

	byEmail, err := store.FindByEmail(ctx, "  ALICE@example.com ")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if byEmail == nil || byEmail.UserID != "u1" || byEmail.PasswordHash != "$2a$hash" {
		t.Fatalf("unexpected record %+v", byEmail)
	}
}

func TestSQLStoreMissingUserIsNil(t *testing.T) {
	store := openTestStore(t)

	got, err := store.FindByID(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil record, got %+v", got)
	}
}

func TestSQLStorePutUpdatesStatus(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	u := authgate.UserRecord{UserID: "u1", Email: "a@example.com", Role: authgate.RoleUser, Status: authgate.StatusActive}
	if err := store.Put(ctx, u); err != nil {
		t.Fatalf("put: %v", err)
	}
	u.Status = authgate.StatusSuspended
	if err := store.Put(ctx, u); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.FindByID(ctx, "u1")
	if err != nil || got == nil {
		t.Fatalf("find: %v %+v", err, got)
	}
	if got.Status != authgate.StatusSuspended {
		t.Fatalf("expected SUSPENDED, got %q", got.Status)
	}
}

func TestSQLStoreClosedIsError(t *testing.T) {
	store := openTestStore(t)
	_ = store.Close()

	if _, err := store.FindByID(context.Background(), "u1"); err == nil {
		t.Fatal("expected error from closed store")
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", "dsn"); err == nil {
		t.Fatal("expected unsupported driver error")
	}
	if _, err := Open(context.Background(), DriverSQLite, " "); err == nil {
		t.Fatal("expected empty dsn error")
	}
}

func TestRebindPostgres(t *testing.T) {
	s := &SQLStore{driver: DriverPostgres}
	got := s.rebind("SELECT a FROM t WHERE b = ? AND c = ?")
	if got != "SELECT a FROM t WHERE b = $1 AND c = $2" {
		t.Fatalf("unexpected rebind %q", got)
	}
	s.driver = DriverSQLite
	if got := s.rebind("x = ?"); got != "x = ?" {
		t.Fatalf("sqlite query must be unchanged, got %q", got)
	}
}
