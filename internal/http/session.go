package http

import (
	"net/http"

	"devexpense/internal/services"
)

// SessionCookieName is the cookie carrying the calculator session id.
const SessionCookieName = "devexpense_session"

// sessionID returns the caller's session id, issuing a fresh cookie when
// the request has none or carries a malformed one.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && services.ValidSessionID(c.Value) {
		return c.Value
	}

	id := services.NewSessionID()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.appMetrics.sessionsIssued.Add(1)
	return id
}
