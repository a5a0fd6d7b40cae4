package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authgate/internal/rate"
	"github.com/MrEthical07/authgate/session"
)

// LoginFailure classifies login rejections.
type LoginFailure uint8

const (
	LoginFailureNone LoginFailure = iota
	LoginFailureInvalidCredentials
	LoginFailureInactiveAccount
	LoginFailureRateLimited
	LoginFailureUnavailable
)

// LoginUser is a user record plus its stored password hash.
type LoginUser struct {
	UserInfo
	PasswordHash string
}

// LoginDeps captures login dependencies. The rate functions are optional.
type LoginDeps struct {
	CheckRate     func(ctx context.Context, email, ip string) error
	RecordFailure func(ctx context.Context, email, ip string) error
	ResetRate     func(ctx context.Context, email, ip string) error

	FindByEmail    func(ctx context.Context, email string) (*LoginUser, error)
	VerifyPassword func(password, hash string) (bool, error)
	// DummyHash is verified against when the email is unknown so both
	// failure paths cost one hash comparison.
	DummyHash    string
	ActiveStatus string

	Issue         func(u *UserInfo) (token string, expiresAt time.Time, err error)
	CreateSession func(ctx context.Context, userID string) (*session.Session, error)

	Warn func(msg string, args ...any)
}

// LoginResult holds the issued credential and session, or a failure.
type LoginResult struct {
	Failure   LoginFailure
	Err       error
	User      *UserInfo
	Token     string
	ExpiresAt time.Time
	Session   *session.Session
}

// RunLogin checks the password for email and, on success, issues a
// credential and starts a session.
func RunLogin(ctx context.Context, email, password, ip string, deps LoginDeps) LoginResult {
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}

	if deps.CheckRate != nil {
		if err := deps.CheckRate(ctx, email, ip); err != nil {
			return rateFailure(err)
		}
	}

	fail := func(f LoginFailure, cause error) LoginResult {
		if deps.RecordFailure != nil {
			if err := deps.RecordFailure(ctx, email, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
				deps.Warn("authgate: login failure counter unavailable", "error", err)
			}
		}
		return LoginResult{Failure: f, Err: cause}
	}

	if email == "" || password == "" {
		return fail(LoginFailureInvalidCredentials, errors.New("empty email or password"))
	}

	user, err := deps.FindByEmail(ctx, email)
	if err != nil {
		return LoginResult{Failure: LoginFailureUnavailable, Err: err}
	}
	if user == nil {
		if deps.DummyHash != "" {
			_, _ = deps.VerifyPassword(password, deps.DummyHash)
		}
		return fail(LoginFailureInvalidCredentials, errors.New("unknown email"))
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		if err == nil {
			err = errors.New("password mismatch")
		}
		return fail(LoginFailureInvalidCredentials, err)
	}
	if user.Status != deps.ActiveStatus {
		return LoginResult{Failure: LoginFailureInactiveAccount, User: &user.UserInfo}
	}

	token, exp, err := deps.Issue(&user.UserInfo)
	if err != nil {
		return LoginResult{Failure: LoginFailureUnavailable, Err: err}
	}
	sess, err := deps.CreateSession(ctx, user.UserID)
	if err != nil {
		return LoginResult{Failure: LoginFailureUnavailable, Err: err}
	}

	if deps.ResetRate != nil {
		if err := deps.ResetRate(ctx, email, ip); err != nil {
			deps.Warn("authgate: login failure counter reset failed", "error", err)
		}
	}

	return LoginResult{
		User:      &user.UserInfo,
		Token:     token,
		ExpiresAt: exp,
		Session:   sess,
	}
}

func rateFailure(err error) LoginResult {
	if errors.Is(err, rate.ErrRateLimited) {
		return LoginResult{Failure: LoginFailureRateLimited, Err: err}
	}
	return LoginResult{Failure: LoginFailureUnavailable, Err: err}
}
