package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/authgate/jwt"
)

// AuthState is a step of the authentication state machine.
type AuthState uint8

const (
	AuthStateNoCredential AuthState = iota
	AuthStateVerifying
	AuthStateCheckingRevocation
	AuthStateLookingUpIdentity
	AuthStateCheckingStatus
	AuthStateAuthenticated
	AuthStateRejected
)

func (s AuthState) String() string {
	switch s {
	case AuthStateNoCredential:
		return "no_credential"
	case AuthStateVerifying:
		return "verifying"
	case AuthStateCheckingRevocation:
		return "checking_revocation"
	case AuthStateLookingUpIdentity:
		return "looking_up_identity"
	case AuthStateCheckingStatus:
		return "checking_status"
	case AuthStateAuthenticated:
		return "authenticated"
	case AuthStateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// AuthFailure classifies a rejection for root-level error mapping.
type AuthFailure uint8

const (
	AuthFailureNone AuthFailure = iota
	AuthFailureNoCredential
	AuthFailureMalformed
	AuthFailureExpired
	AuthFailureRevoked
	AuthFailureUserNotFound
	AuthFailureInactiveAccount
	AuthFailureUnavailable
)

// UserInfo is the subset of an identity store record the pipeline reads.
type UserInfo struct {
	UserID string
	Email  string
	Role   string
	Plan   string
	Status string
}

// AuthenticateDeps captures the collaborators of RunAuthenticate. The root
// package adapts its stores into these so flows never imports it.
type AuthenticateDeps struct {
	Verify       func(credential string) (*jwt.Verified, error)
	IsRevoked    func(ctx context.Context, key string) (bool, error)
	FindUser     func(ctx context.Context, userID string) (*UserInfo, error)
	ActiveStatus string
}

// AuthenticateResult is either an authenticated user or a classified failure.
// Path lists every state entered, in order.
type AuthenticateResult struct {
	State    AuthState
	Failure  AuthFailure
	Err      error
	Verified *jwt.Verified
	User     *UserInfo
	Path     []AuthState
}

// RunAuthenticate drives a credential through verify, revocation check,
// identity lookup and status check. Each step runs only if the previous one
// succeeded; the first rejection ends the run.
func RunAuthenticate(ctx context.Context, credential string, present bool, deps AuthenticateDeps) AuthenticateResult {
	res := AuthenticateResult{Path: make([]AuthState, 0, 6)}
	state := AuthStateVerifying
	if !present {
		state = AuthStateNoCredential
	}

	for {
		res.Path = append(res.Path, state)
		switch state {
		case AuthStateNoCredential:
			return res.reject(AuthFailureNoCredential, nil)

		case AuthStateVerifying:
			v, err := deps.Verify(credential)
			if err != nil {
				if errors.Is(err, jwt.ErrExpired) {
					return res.reject(AuthFailureExpired, err)
				}
				return res.reject(AuthFailureMalformed, err)
			}
			res.Verified = v
			state = AuthStateCheckingRevocation

		case AuthStateCheckingRevocation:
			revoked, err := deps.IsRevoked(ctx, res.Verified.RevocationKey())
			if err != nil {
				return res.reject(AuthFailureUnavailable, err)
			}
			if revoked {
				return res.reject(AuthFailureRevoked, nil)
			}
			state = AuthStateLookingUpIdentity

		case AuthStateLookingUpIdentity:
			u, err := deps.FindUser(ctx, res.Verified.Payload.UserID)
			if err != nil {
				return res.reject(AuthFailureUnavailable, err)
			}
			if u == nil {
				return res.reject(AuthFailureUserNotFound, nil)
			}
			res.User = u
			state = AuthStateCheckingStatus

		case AuthStateCheckingStatus:
			if res.User.Status != deps.ActiveStatus {
				return res.reject(AuthFailureInactiveAccount, nil)
			}
			state = AuthStateAuthenticated

		case AuthStateAuthenticated:
			res.State = AuthStateAuthenticated
			return res

		default:
			return res.reject(AuthFailureMalformed, errors.New("invalid authentication state"))
		}
	}
}

func (r AuthenticateResult) reject(f AuthFailure, err error) AuthenticateResult {
	r.State = AuthStateRejected
	r.Path = append(r.Path, AuthStateRejected)
	r.Failure = f
	r.Err = err
	return r
}
