package session

import (
	"net/http"
	"time"
)

// cookieConfig holds cookie configuration settings
type cookieConfig struct {
	Name   string
	Secure bool // HTTPS only
}

// setSessionCookie sets the session ID in an httpOnly, same-site cookie.
// JavaScript never needs to read it.
func setSessionCookie(w http.ResponseWriter, sessionID string, expires time.Time, ttl time.Duration, config cookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     config.Name,
		Value:    sessionID,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// clearSessionCookie expires the session cookie
func clearSessionCookie(w http.ResponseWriter, config cookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     config.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // Negative MaxAge deletes the cookie
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// sessionIDFromCookie returns the session ID the request carries, if any.
func sessionIDFromCookie(r *http.Request, name string) (string, bool) {
	cookie, err := r.Cookie(name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}
