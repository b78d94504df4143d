package middleware

import (
	"net/http"
	"time"
)

// Cookie names used by the session transport.
const (
	SessionCookie = "session_token"
	PendingCookie = "mfa_pending_token"
)

// Cookies writes the session and pending-MFA cookies. Secure is set in
// production.
type Cookies struct {
	Secure bool
	Domain string
}

func (c Cookies) set(w http.ResponseWriter, name, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c Cookies) clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   c.Domain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetSession stores token until expires.
func (c Cookies) SetSession(w http.ResponseWriter, token string, expires time.Time) {
	c.set(w, SessionCookie, token, expires)
}

// SetPending stores the pending-MFA token until expires.
func (c Cookies) SetPending(w http.ResponseWriter, token string, expires time.Time) {
	c.set(w, PendingCookie, token, expires)
}

// ClearPending removes the pending-MFA cookie.
func (c Cookies) ClearPending(w http.ResponseWriter) {
	c.clear(w, PendingCookie)
}

// ClearAll removes both cookies.
func (c Cookies) ClearAll(w http.ResponseWriter) {
	c.clear(w, SessionCookie)
	c.clear(w, PendingCookie)
}

// SessionToken returns the session token from the cookie, falling back to a
// Bearer Authorization header.
func SessionToken(r *http.Request) (string, bool) {
	if ck, err := r.Cookie(SessionCookie); err == nil && ck.Value != "" {
		return ck.Value, true
	}
	return bearerToken(r.Header.Get("Authorization"))
}

// PendingToken returns the pending-MFA cookie value.
func PendingToken(r *http.Request) (string, bool) {
	ck, err := r.Cookie(PendingCookie)
	if err != nil || ck.Value == "" {
		return "", false
	}
	return ck.Value, true
}
