package session

import "time"

// Session is the stored state of one bearer token. ID is the hex SHA-256 of
// the token. Times are unix milliseconds.
type Session struct {
	ID        string
	UserID    string
	CreatedAt int64
	ExpiresAt int64
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt <= now.UnixMilli()
}

// ExpiresTime returns ExpiresAt as a time.Time.
func (s *Session) ExpiresTime() time.Time {
	return time.UnixMilli(s.ExpiresAt)
}
