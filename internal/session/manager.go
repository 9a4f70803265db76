package session

import (
	"net/http"

	"github.com/google/uuid"
)

// CookieName is the cookie carrying the visitor's session ID.
const CookieName = "podstore_session"

// Manager assigns session IDs to HTTP requests via a cookie.
type Manager struct {
	secure bool
	maxAge int
}

// NewManager creates a Manager. secure controls the cookie's Secure flag and
// maxAge its lifetime in seconds.
func NewManager(secure bool, maxAge int) *Manager {
	return &Manager{secure: secure, maxAge: maxAge}
}

// SessionID returns the request's session ID, minting a new one (and setting
// the cookie on the response) when the request carries none.
func (m *Manager) SessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}

	id := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   m.maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
