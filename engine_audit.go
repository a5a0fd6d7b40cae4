package authgate

import (
	"context"

	internalaudit "github.com/MrEthical07/authgate/internal/audit"
)

const (
	auditEventAuthRejected      = "auth_rejected"
	auditEventLoginSuccess      = "login_success"
	auditEventLoginFailure      = "login_failure"
	auditEventLoginRateLimited  = "login_rate_limited"
	auditEventLogout            = "logout"
	auditEventCredentialRevoked = "credential_revoked"
	auditEventSessionCreated    = "session_created"
	auditEventSessionEnded      = "session_ended"
	auditEventSessionsEndedAll  = "sessions_ended_all"
	auditEventPermissionDenied  = "permission_denied"
)

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, userID, sessionID string, err error, metadata func() map[string]string) {
	if e == nil || e.audit == nil {
		return
	}

	event := internalaudit.Event{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
	}
	if err != nil {
		event.Error = auditErrorCode(err)
	}
	if metadata != nil {
		event.Metadata = metadata()
	}
	e.audit.Emit(ctx, event)
}

// auditErrorCode never carries the raw cause; audit sinks may leave the
// trust boundary.
func auditErrorCode(err error) string {
	return KindOf(err).Code()
}
