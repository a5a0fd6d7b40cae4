package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/authgate"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
  id            TEXT PRIMARY KEY,
  email         TEXT NOT NULL UNIQUE,
  role          TEXT NOT NULL,
  plan          TEXT NOT NULL DEFAULT '',
  status        TEXT NOT NULL,
  password_hash TEXT NOT NULL DEFAULT ''
)`

// SQLStore reads users from a relational database.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// Open connects with driver ("pgx" or "sqlite") and verifies the connection.
// Caller must call Close when done.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported identity driver %q", driver)
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("identity dsn is required")
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// In-memory sqlite databases are per connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return NewSQLStore(db, driver), nil
}

// NewSQLStore wraps an existing handle.
func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migrate creates the users table if it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

// Put inserts or updates a user row.
func (s *SQLStore) Put(ctx context.Context, u authgate.UserRecord) error {
	if u.UserID == "" || u.Email == "" {
		return errors.New("user id and email are required")
	}
	q := s.rebind(`
INSERT INTO users (id, email, role, plan, status, password_hash)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
  email = excluded.email,
  role = excluded.role,
  plan = excluded.plan,
  status = excluded.status,
  password_hash = excluded.password_hash`)
	_, err := s.db.ExecContext(ctx, q,
		u.UserID, normalizeEmail(u.Email), u.Role, u.Plan, string(u.Status), u.PasswordHash)
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// FindByID implements [authgate.IdentityLookup].
func (s *SQLStore) FindByID(ctx context.Context, userID string) (*authgate.UserRecord, error) {
	return s.findOne(ctx, "id", userID)
}

// FindByEmail implements [authgate.CredentialLookup].
func (s *SQLStore) FindByEmail(ctx context.Context, email string) (*authgate.UserRecord, error) {
	return s.findOne(ctx, "email", normalizeEmail(email))
}

func (s *SQLStore) findOne(ctx context.Context, column, value string) (*authgate.UserRecord, error) {
	q := s.rebind(`SELECT id, email, role, plan, status, password_hash FROM users WHERE ` + column + ` = ?`)

	var (
		u      authgate.UserRecord
		status string
	)
	err := s.db.QueryRowContext(ctx, q, value).Scan(&u.UserID, &u.Email, &u.Role, &u.Plan, &status, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by %s: %w", column, err)
	}
	u.Status = authgate.AccountStatus(status)
	return &u, nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQLStore) rebind(q string) string {
	if s.driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
