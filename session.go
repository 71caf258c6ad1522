package whispers

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/golang-jwt/jwt/v5"
)

const accountIDSessionKey = "loggedInAccountId"

// Sessions manages the authenticated session lifecycle. The session
// token itself is an opaque scs token carried in a cookie; server-side
// it maps to nothing but the account ID. On login a signed JWT is also
// set as a secondary bearer cookie so non-browser callers on the same
// host can authenticate without the session store. Logout revokes the
// presented auth token server-side, so neither cookie restores a
// session after logout.
type Sessions struct {
	Manager *scs.SessionManager

	// Name of the cookie carrying the signed auth token.
	AuthTokenCookieName string

	JWTIssuer    string
	JWTSecretKey string

	// How long the auth token cookie is valid for. Defaults to 1 day.
	TimeoutSeconds int

	// Auth tokens revoked by Logout, held until they expire on their own.
	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewSessions builds a session manager with the cookie attributes the
// app relies on: HttpOnly always, Secure when asked for, SameSite=Lax,
// and a session-scoped cookie unless a lifetime is configured.
func NewSessions(jwtSecretKey string, secure bool) *Sessions {
	manager := scs.New()
	manager.Cookie.HttpOnly = true
	manager.Cookie.Secure = secure
	manager.Cookie.SameSite = http.SameSiteLaxMode
	manager.Cookie.Persist = false

	out := &Sessions{
		Manager:      manager,
		JWTSecretKey: jwtSecretKey,
	}
	return out.EnsureDefaults()
}

func (s *Sessions) EnsureDefaults() *Sessions {
	if s.TimeoutSeconds <= 0 {
		s.TimeoutSeconds = 86400
	}
	if s.JWTIssuer == "" {
		s.JWTIssuer = "Whispers-Issuer"
	}
	if s.AuthTokenCookieName == "" {
		s.AuthTokenCookieName = "WhispersAuthToken"
	}
	return s
}

// LoadAndSave is the request middleware that loads the session for the
// incoming token and commits any changes on the way out.
func (s *Sessions) LoadAndSave(next http.Handler) http.Handler {
	return s.Manager.LoadAndSave(next)
}

// Login transitions the request's session to authenticated. The scs
// token is renewed so a pre-login token never survives the privilege
// change, and only the account ID is stored server-side.
func (s *Sessions) Login(w http.ResponseWriter, r *http.Request, account *Account) {
	s.EnsureDefaults()
	if err := s.Manager.RenewToken(r.Context()); err != nil {
		slog.Warn("error renewing session token", "err", err)
	}
	s.Manager.Put(r.Context(), accountIDSessionKey, account.ID)

	tokenString, err := s.mintAuthToken(account.ID)
	if err != nil {
		slog.Warn("error signing auth token", "err", err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.AuthTokenCookieName,
		Value:    tokenString,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.Manager.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(time.Second * time.Duration(s.TimeoutSeconds)),
		MaxAge:   s.TimeoutSeconds,
	})
}

// Logout invalidates the server-side session association, revokes the
// presented auth token and clears its cookie. A captured token replayed
// after logout no longer authenticates. No effect if the session is
// already anonymous.
func (s *Sessions) Logout(w http.ResponseWriter, r *http.Request) {
	s.EnsureDefaults()
	if err := s.Manager.Destroy(r.Context()); err != nil {
		slog.Warn("error destroying session", "err", err)
	}
	for _, cookie := range r.CookiesNamed(s.AuthTokenCookieName) {
		if cookie.Value != "" {
			s.revokeAuthToken(cookie.Value)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.AuthTokenCookieName,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
		Expires:  time.Now(),
	})
}

// AccountID restores the authenticated account ID for the request.
// Checks the session first, then the auth token cookie. Every failure
// degrades to "" (unauthenticated) rather than erroring.
func (s *Sessions) AccountID(r *http.Request) string {
	s.EnsureDefaults()
	if id := s.Manager.GetString(r.Context(), accountIDSessionKey); id != "" {
		return id
	}

	for _, cookie := range r.CookiesNamed(s.AuthTokenCookieName) {
		if cookie.Value == "" {
			continue
		}
		id, err := s.verifyAuthToken(cookie.Value)
		if err != nil {
			slog.Warn("error verifying auth token", "err", err)
			continue
		}
		if id != "" {
			return id
		}
	}
	return ""
}

func (s *Sessions) mintAuthToken(accountID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": accountID,
		"iss": s.JWTIssuer,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Second * time.Duration(s.TimeoutSeconds)).Unix(),
	})
	return token.SignedString([]byte(s.JWTSecretKey))
}

// revokeAuthToken records the token so it no longer restores a session.
// The record is kept for the token's remaining lifetime; older records
// are pruned since an expired token is rejected anyway.
func (s *Sessions) revokeAuthToken(tokenString string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revoked == nil {
		s.revoked = make(map[string]time.Time)
	}
	now := time.Now()
	for token, expiry := range s.revoked {
		if expiry.Before(now) {
			delete(s.revoked, token)
		}
	}
	s.revoked[tokenString] = now.Add(time.Second * time.Duration(s.TimeoutSeconds))
}

func (s *Sessions) tokenRevoked(tokenString string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[tokenString]
	return ok
}

func (s *Sessions) verifyAuthToken(tokenString string) (string, error) {
	if s.tokenRevoked(tokenString) {
		return "", fmt.Errorf("token revoked")
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(s.JWTSecretKey), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims == nil {
		return "", fmt.Errorf("claims is not a map")
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return "", err
	} else if sub == "" {
		return "", fmt.Errorf("subject not found")
	}
	return sub, nil
}
