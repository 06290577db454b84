package httpx

import (
	"net/http"
	"time"
)

// SessionCookie describes how the session token is delivered to browsers.
type SessionCookie struct {
	Name     string
	TTL      time.Duration
	Secure   bool
	SameSite http.SameSite
}

// NewSessionCookie returns the cookie policy for the environment. Production
// deployments serve the SPA from another origin, which needs SameSite=None
// and therefore Secure.
func NewSessionCookie(name string, ttl time.Duration, production bool) SessionCookie {
	c := SessionCookie{Name: name, TTL: ttl, SameSite: http.SameSiteLaxMode}
	if production {
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}

// Set writes the session token.
func (c SessionCookie) Set(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
		MaxAge:   int(c.TTL.Seconds()),
		Expires:  time.Now().Add(c.TTL),
	})
}

// Clear expires the session cookie.
func (c SessionCookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}
