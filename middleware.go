package whispers

import (
	"context"
	"net/http"
)

type accountIDContextKey struct{}

// Middleware restores the authenticated account ID from the request's
// session and exposes it to downstream handlers via the request context.
type Middleware struct {
	Sessions *Sessions

	// Where RequireAccount sends anonymous requests. Defaults to /login.
	LoginURL string
}

func (m *Middleware) loginURL() string {
	if m.LoginURL != "" {
		return m.LoginURL
	}
	return "/login"
}

// ExtractAccount loads the account ID (possibly empty) into the request
// context. It never redirects; use RequireAccount to enforce login.
func (m *Middleware) ExtractAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, m.withAccountID(r, m.Sessions.AccountID(r)))
	})
}

// RequireAccount enforces an authenticated session: anonymous requests
// are redirected to the login page and the protected handler never runs.
func (m *Middleware) RequireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID := m.Sessions.AccountID(r)
		if accountID == "" {
			http.Redirect(w, r, m.loginURL(), http.StatusFound)
			return
		}
		next.ServeHTTP(w, m.withAccountID(r, accountID))
	})
}

// LoggedInAccountID returns the account ID placed in the request context
// by ExtractAccount or RequireAccount, or "" when anonymous.
func LoggedInAccountID(r *http.Request) string {
	if v, ok := r.Context().Value(accountIDContextKey{}).(string); ok {
		return v
	}
	return ""
}

func (m *Middleware) withAccountID(r *http.Request, accountID string) *http.Request {
	ctx := context.WithValue(r.Context(), accountIDContextKey{}, accountID)
	return r.WithContext(ctx)
}
