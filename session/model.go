package session

import "time"

// Session is a server-side session record.
type Session struct {
	SessionID      string
	UserID         string
	CreatedAt      time.Time
	LastActivityAt time.Time
}
