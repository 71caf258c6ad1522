package web

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	oauth2lib "golang.org/x/oauth2"

	"github.com/panyam/whispers"
	"github.com/panyam/whispers/stores"
)

func newTestApp(t *testing.T, store whispers.AccountStore) *App {
	t.Helper()
	cfg := &whispers.Config{}
	cfg.LoadDefaults()
	if store == nil {
		store = stores.NewFSAccountStore(t.TempDir())
	}
	sessions := whispers.NewSessions(cfg.SessionSecret, false)
	return New(cfg, store, sessions, nil)
}

// newTestClient returns a client with a cookie jar that reports
// redirects instead of following them.
func newTestClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func postForm(t *testing.T, client *http.Client, url string, form url.Values) *http.Response {
	t.Helper()
	resp, err := client.PostForm(url, form)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	return resp
}

func get(t *testing.T, client *http.Client, url string) *http.Response {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	return resp
}

func getBody(t *testing.T, client *http.Client, url string) (*http.Response, string) {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var sb strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		sb.Write(buf[:n])
		if err != nil {
			break
		}
	}
	return resp, sb.String()
}

func wantRedirect(t *testing.T, resp *http.Response, location string) {
	t.Helper()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Location"); got != location {
		t.Fatalf("expected redirect to %s, got %s", location, got)
	}
}

func TestFullJourney(t *testing.T) {
	app := newTestApp(t, nil)
	server := httptest.NewServer(app.Handler())
	defer server.Close()
	client := newTestClient(t)

	// Register and land on the secrets page.
	resp := postForm(t, client, server.URL+"/register", url.Values{
		"username": {"a@x.com"},
		"name":     {"Alex"},
		"password": {"password-1"},
	})
	wantRedirect(t, resp, "/secrets")

	// The submit form greets the signed-in account.
	resp, body := getBody(t, client, server.URL+"/submit")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /submit, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Alex") {
		t.Errorf("expected the display name on the submit form, got: %s", body)
	}

	// Submit a secret.
	resp = postForm(t, client, server.URL+"/submit", url.Values{"secret": {"i fed the cat twice"}})
	wantRedirect(t, resp, "/secrets")

	// It shows up on the public listing.
	resp, body = getBody(t, client, server.URL+"/secrets")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /secrets, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "i fed the cat twice") {
		t.Errorf("expected the secret on the listing, got: %s", body)
	}

	// Overwrite it.
	postForm(t, client, server.URL+"/submit", url.Values{"secret": {"actually three times"}})
	_, body = getBody(t, client, server.URL+"/secrets")
	if strings.Contains(body, "i fed the cat twice") {
		t.Errorf("expected the old secret to be replaced")
	}
	if !strings.Contains(body, "actually three times") {
		t.Errorf("expected the new secret on the listing, got: %s", body)
	}

	// Logout, then /submit requires login again.
	resp = get(t, client, server.URL+"/logout")
	wantRedirect(t, resp, "/")
	resp = get(t, client, server.URL+"/submit")
	wantRedirect(t, resp, "/login")
}

func TestLoginAfterRegister(t *testing.T) {
	app := newTestApp(t, nil)
	server := httptest.NewServer(app.Handler())
	defer server.Close()

	client := newTestClient(t)
	postForm(t, client, server.URL+"/register", url.Values{
		"username": {"a@x.com"},
		"password": {"password-1"},
	})
	get(t, client, server.URL+"/logout")

	// Fresh client, correct credentials.
	client = newTestClient(t)
	resp := postForm(t, client, server.URL+"/login", url.Values{
		"username": {"a@x.com"},
		"password": {"password-1"},
	})
	wantRedirect(t, resp, "/secrets")

	// Fresh client, wrong password.
	client = newTestClient(t)
	resp = postForm(t, client, server.URL+"/login", url.Values{
		"username": {"a@x.com"},
		"password": {"password-2"},
	})
	wantRedirect(t, resp, "/login")
}

func TestSubmitRequiresLogin(t *testing.T) {
	app := newTestApp(t, nil)
	server := httptest.NewServer(app.Handler())
	defer server.Close()
	client := newTestClient(t)

	resp := get(t, client, server.URL+"/submit")
	wantRedirect(t, resp, "/login")

	resp = postForm(t, client, server.URL+"/submit", url.Values{"secret": {"nope"}})
	wantRedirect(t, resp, "/login")
}

func TestLogoutIsIdempotent(t *testing.T) {
	app := newTestApp(t, nil)
	server := httptest.NewServer(app.Handler())
	defer server.Close()
	client := newTestClient(t)

	for i := 0; i < 2; i++ {
		resp := get(t, client, server.URL+"/logout")
		wantRedirect(t, resp, "/")
	}
}

// failingStore simulates a backend outage on every operation.
type failingStore struct{}

func (failingStore) CreateLocalAccount(ctx context.Context, email, passwordHash, username string) (*whispers.Account, error) {
	return nil, fmt.Errorf("%w: connection refused", whispers.ErrStoreUnavailable)
}
func (failingStore) GetAccountByID(ctx context.Context, id string) (*whispers.Account, error) {
	return nil, fmt.Errorf("%w: connection refused", whispers.ErrStoreUnavailable)
}
func (failingStore) GetAccountByEmail(ctx context.Context, email string) (*whispers.Account, error) {
	return nil, fmt.Errorf("%w: connection refused", whispers.ErrStoreUnavailable)
}
func (failingStore) EnsureFederatedAccount(ctx context.Context, provider whispers.Provider, subjectID string) (*whispers.Account, bool, error) {
	return nil, false, fmt.Errorf("%w: connection refused", whispers.ErrStoreUnavailable)
}
func (failingStore) SetSecret(ctx context.Context, accountID, secret string) error {
	return fmt.Errorf("%w: connection refused", whispers.ErrStoreUnavailable)
}
func (failingStore) AccountsWithSecrets(ctx context.Context) ([]*whispers.Account, error) {
	return nil, fmt.Errorf("%w: connection refused", whispers.ErrStoreUnavailable)
}

func TestSecretsDegradesOnStoreFailure(t *testing.T) {
	app := newTestApp(t, failingStore{})
	server := httptest.NewServer(app.Handler())
	defer server.Close()
	client := newTestClient(t)

	resp, body := getBody(t, client, server.URL+"/secrets")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected the page to render during an outage, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "secrets") {
		t.Errorf("expected the secrets page shell, got: %s", body)
	}

	// Login during an outage fails like bad credentials.
	resp = postForm(t, client, server.URL+"/login", url.Values{
		"username": {"a@x.com"},
		"password": {"password-1"},
	})
	wantRedirect(t, resp, "/login")
}

func TestFederatedRoutesOnlyWhenConfigured(t *testing.T) {
	cfg := &whispers.Config{}
	cfg.LoadDefaults()
	cfg.Google = whispers.ProviderCredentials{ClientID: "id", ClientSecret: "secret", CallbackURL: "http://localhost/auth/google/secrets"}

	store := stores.NewFSAccountStore(t.TempDir())
	app := New(cfg, store, whispers.NewSessions(cfg.SessionSecret, false), nil)
	server := httptest.NewServer(app.Handler())
	defer server.Close()
	client := newTestClient(t)

	resp := get(t, client, server.URL+"/auth/google")
	if resp.StatusCode != http.StatusFound {
		t.Errorf("expected the google begin route to redirect to consent, got %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Location"), "accounts.google.com") {
		t.Errorf("expected consent redirect to google, got %q", resp.Header.Get("Location"))
	}

	resp = get(t, client, server.URL+"/auth/facebook")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected the facebook routes to be unmounted, got %d", resp.StatusCode)
	}
}

func TestFederatedLoginCreatesAndReusesAccount(t *testing.T) {
	store := stores.NewFSAccountStore(t.TempDir())
	app := newTestApp(t, store)

	handle := app.handleFederated(whispers.ProviderFacebook)
	server := httptest.NewServer(app.sessions.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handle(&oauth2lib.Token{AccessToken: "tok"}, map[string]any{"id": "fb-9", "name": "Pat"}, w, r)
	})))
	defer server.Close()

	for i := 0; i < 2; i++ {
		client := newTestClient(t)
		resp := get(t, client, server.URL+"/")
		wantRedirect(t, resp, "/secrets")
	}

	accounts, err := store.AccountsWithSecrets(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 0 {
		t.Errorf("fresh federated accounts must not carry secrets")
	}

	account, created, err := store.EnsureFederatedAccount(context.Background(), whispers.ProviderFacebook, "fb-9")
	if err != nil || created {
		t.Fatalf("expected the account to already exist (err %v, created %v)", err, created)
	}
	if account.FacebookSubjectID == nil || *account.FacebookSubjectID != "fb-9" {
		t.Errorf("expected the facebook subject id to be recorded")
	}
}

func TestFederatedLoginWithoutSubjectFails(t *testing.T) {
	app := newTestApp(t, nil)
	handle := app.handleFederated(whispers.ProviderGoogle)

	server := httptest.NewServer(app.sessions.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handle(&oauth2lib.Token{AccessToken: "tok"}, map[string]any{"name": "no id"}, w, r)
	})))
	defer server.Close()

	resp := get(t, newTestClient(t), server.URL+"/")
	wantRedirect(t, resp, "/login")
}

func TestAuthTokenReplayAfterLogout(t *testing.T) {
	app := newTestApp(t, nil)
	server := httptest.NewServer(app.Handler())
	defer server.Close()
	client := newTestClient(t)

	resp := postForm(t, client, server.URL+"/register", url.Values{
		"username": {"a@x.com"},
		"password": {"password-1"},
	})
	wantRedirect(t, resp, "/secrets")

	// Capture the signed auth token the way an attacker would.
	var authCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == app.sessions.AuthTokenCookieName {
			authCookie = c
		}
	}
	if authCookie == nil {
		t.Fatalf("expected auth token cookie after registration")
	}

	resp = get(t, client, server.URL+"/logout")
	wantRedirect(t, resp, "/")

	// Replay only the captured token; logout must have revoked it.
	req, err := http.NewRequest(http.MethodGet, server.URL+"/submit", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.AddCookie(&http.Cookie{Name: authCookie.Name, Value: authCookie.Value})
	replay, err := newTestClient(t).Do(req)
	if err != nil {
		t.Fatal(err)
	}
	replay.Body.Close()
	wantRedirect(t, replay, "/login")
}
