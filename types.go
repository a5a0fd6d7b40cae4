package authgate

import (
	"context"
	"time"

	"github.com/MrEthical07/authgate/jwt"
	"github.com/MrEthical07/authgate/session"
)

// AccountStatus is owned by the identity store. Only [StatusActive] may
// authenticate.
type AccountStatus string

const (
	StatusActive    AccountStatus = "ACTIVE"
	StatusSuspended AccountStatus = "SUSPENDED"
	StatusDisabled  AccountStatus = "DISABLED"
	StatusPending   AccountStatus = "PENDING"
)

// Well-known roles.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// Identity is the request-scoped view of an authenticated caller. ID is
// populated from UserID when the identity is attached.
type Identity struct {
	ID     string
	UserID string
	Email  string
	Role   string
	Plan   string
}

// UserRecord is what an identity store returns for a user. PasswordHash is
// only needed by [CredentialLookup].
type UserRecord struct {
	UserID       string
	Email        string
	Role         string
	Plan         string
	Status       AccountStatus
	PasswordHash string
}

// IdentityLookup resolves a user id. A nil record with a nil error means the
// user does not exist; any error is treated as the store being unavailable.
type IdentityLookup interface {
	FindByID(ctx context.Context, userID string) (*UserRecord, error)
}

// CredentialLookup resolves a login email. Same nil-means-absent contract
// as [IdentityLookup].
type CredentialLookup interface {
	FindByEmail(ctx context.Context, email string) (*UserRecord, error)
}

// Payload is the set of claims carried by a credential.
type Payload = jwt.Payload

// Session is the server-side session record.
type Session = session.Session

// IssuedCredential is returned by [Engine.Issue] and [Engine.Login].
type IssuedCredential struct {
	Token     string
	ExpiresAt time.Time
}

// LoginResult carries the credential and session created by [Engine.Login].
type LoginResult struct {
	Credential IssuedCredential
	Session    *Session
	Identity   *Identity
}
