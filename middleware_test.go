package whispers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/panyam/whispers"
)

func TestRequireAccountRedirectsAnonymous(t *testing.T) {
	sessions := whispers.NewSessions("test-secret-key", false)
	mw := &whispers.Middleware{Sessions: sessions}

	protected := mw.RequireAccount(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("protected handler should not run for anonymous request")
	}))

	req := httptest.NewRequest(http.MethodGet, "/submit", nil)
	rr := httptest.NewRecorder()
	sessions.LoadAndSave(protected).ServeHTTP(rr, req)

	if rr.Code != http.StatusFound {
		t.Fatalf("expected %d, got %d", http.StatusFound, rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/login" {
		t.Errorf("expected redirect to /login, got %q", loc)
	}
}

func TestRequireAccountPassesAuthenticated(t *testing.T) {
	sessions := whispers.NewSessions("test-secret-key", false)
	mw := &whispers.Middleware{Sessions: sessions}
	account := &whispers.Account{ID: "acc-42"}

	// Log in to get cookies.
	loginRR := doSession(t, sessions, nil, func(w http.ResponseWriter, r *http.Request) {
		sessions.Login(w, r, account)
	})

	ran := false
	protected := mw.RequireAccount(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ran = true
		if got := whispers.LoggedInAccountID(r); got != account.ID {
			t.Errorf("expected account %q in context, got %q", account.ID, got)
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/submit", nil)
	for _, c := range loginRR.Result().Cookies() {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	sessions.LoadAndSave(protected).ServeHTTP(rr, req)

	if !ran {
		t.Fatalf("protected handler did not run for authenticated request")
	}
	if rr.Code != http.StatusOK {
		t.Errorf("expected %d, got %d", http.StatusOK, rr.Code)
	}
}

func TestExtractAccountNeverRedirects(t *testing.T) {
	sessions := whispers.NewSessions("test-secret-key", false)
	mw := &whispers.Middleware{Sessions: sessions}

	handler := mw.ExtractAccount(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := whispers.LoggedInAccountID(r); got != "" {
			t.Errorf("expected empty account for anonymous request, got %q", got)
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	sessions.LoadAndSave(handler).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected %d, got %d", http.StatusOK, rr.Code)
	}
}
