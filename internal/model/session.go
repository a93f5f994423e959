package model

import "time"

// Session is the authenticated state of the current user. A Session always
// carries a non-empty Token; no token means no Session.
type Session struct {
	UserID        string
	Role          Role
	DisplayName   string
	Token         string
	TokenIssuedAt time.Time

	// TokenExpiry is zero when the token does not advertise an expiry.
	TokenExpiry time.Time

	// User is the full profile the session was built from.
	User User
}

// Expired reports whether the token is past its advertised expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !s.TokenExpiry.IsZero() && !now.Before(s.TokenExpiry)
}

// SessionEventKind names a session lifecycle transition worth auditing.
type SessionEventKind string

const (
	SessionEventLogin          SessionEventKind = "login"
	SessionEventRegister       SessionEventKind = "register"
	SessionEventRestore        SessionEventKind = "restore"
	SessionEventLogout         SessionEventKind = "logout"
	SessionEventExpired        SessionEventKind = "expired"
	SessionEventProfileInvalid SessionEventKind = "profile_invalid"
	SessionEventLoginFailed    SessionEventKind = "login_failed"
)

// SessionEvent is one row of the local session audit log.
type SessionEvent struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Kind      SessionEventKind `json:"kind"`
	Detail    string           `json:"detail"`
	CreatedAt time.Time        `json:"created_at"`
}
