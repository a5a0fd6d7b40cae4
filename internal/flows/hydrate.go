package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/authgate/session"
)

// HydrateSessionStore is the session store surface used by RunHydrateSession.
type HydrateSessionStore interface {
	Touch(ctx context.Context, sessionID string) (*session.Session, error)
}

// HydrateDeps captures hydration dependencies.
type HydrateDeps struct {
	Store HydrateSessionStore
}

// HydrateResult carries the touched session, or nil when there is none.
// Err is set only when the store could not answer.
type HydrateResult struct {
	Session *session.Session
	Err     error
}

// RunHydrateSession loads and touches the session for sessionID. An empty
// id, an unknown id and an expired session all yield a nil session.
func RunHydrateSession(ctx context.Context, sessionID string, deps HydrateDeps) HydrateResult {
	if sessionID == "" {
		return HydrateResult{}
	}
	sess, err := deps.Store.Touch(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return HydrateResult{}
		}
		return HydrateResult{Err: err}
	}
	return HydrateResult{Session: sess}
}
