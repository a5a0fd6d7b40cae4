package authgate

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/MrEthical07/authgate/internal/flows"
	"github.com/MrEthical07/authgate/session"
)

// StartSession creates a session for userID.
func (e *Engine) StartSession(ctx context.Context, userID string) (*Session, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, errors.New("user id required")
	}

	s, err := e.sessions.Create(ctx, userID)
	if err != nil {
		e.logger.WarnContext(ctx, "authgate: session create failed", "error", err)
		return nil, sessionStoreError(err)
	}
	e.metrics.Inc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventSessionCreated, true, userID, s.SessionID, nil, nil)
	return s, nil
}

// HydrateSession loads and touches the session for sessionID. It returns
// nil, nil when the id is empty, unknown or expired, and [ErrUnavailable]
// when the store cannot answer.
func (e *Engine) HydrateSession(ctx context.Context, sessionID string) (*Session, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if sessionID == "" {
		return nil, nil
	}

	ctx, span := e.tracer.Start(ctx, "authgate.HydrateSession")
	defer span.End()

	res := flows.RunHydrateSession(ctx, sessionID, e.flows.Hydrate)
	if res.Err != nil {
		e.logger.WarnContext(ctx, "authgate: session store unavailable", "error", res.Err)
		span.SetStatus(codes.Error, KindUnavailable.Code())
		return nil, sessionStoreError(res.Err)
	}
	if res.Session == nil {
		e.metrics.Inc(MetricSessionMiss)
		span.SetAttributes(attribute.Bool("authgate.session_found", false))
		return nil, nil
	}

	e.metrics.Inc(MetricSessionHydrated)
	span.SetAttributes(attribute.Bool("authgate.session_found", true))
	return res.Session, nil
}

// EndSession deletes one session. Ending an unknown session is not an error.
func (e *Engine) EndSession(ctx context.Context, sessionID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if sessionID == "" {
		return nil
	}
	if err := e.sessions.Delete(ctx, sessionID); err != nil {
		return sessionStoreError(err)
	}
	e.metrics.Inc(MetricSessionEnded)
	e.emitAudit(ctx, auditEventSessionEnded, true, "", sessionID, nil, nil)
	return nil
}

// EndAllSessions deletes every session of userID and reports how many
// were removed.
func (e *Engine) EndAllSessions(ctx context.Context, userID string) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	n, err := e.sessions.DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, sessionStoreError(err)
	}
	e.emitAudit(ctx, auditEventSessionsEndedAll, true, userID, "", nil, func() map[string]string {
		return map[string]string{"count": fmt.Sprint(n)}
	})
	return n, nil
}

func sessionStoreError(err error) error {
	if errors.Is(err, session.ErrRedisUnavailable) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
