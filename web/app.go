// Package web maps the HTTP surface onto the whispers components: the
// route table, the page handlers and the glue that turns a successful
// authentication into a session.
package web

import (
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	oauth2lib "golang.org/x/oauth2"

	"github.com/panyam/whispers"
	"github.com/panyam/whispers/oauth2"
)

// Authenticators is the closed table of enabled authentication
// mechanisms, resolved once at construction from the injected Config.
// A nil federated entry means that provider is not configured; its
// routes are simply not mounted.
type Authenticators struct {
	Local    *whispers.LocalAuth
	Google   *oauth2.GoogleOAuth2
	Facebook *oauth2.FacebookOAuth2
}

// App owns the router and the request-scoped wiring. All fields are
// read-only after New returns.
type App struct {
	store    whispers.AccountStore
	sessions *whispers.Sessions
	auth     Authenticators
	mw       *whispers.Middleware
	logger   *slog.Logger
	router   *mux.Router
}

func New(cfg *whispers.Config, store whispers.AccountStore, sessions *whispers.Sessions, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		store:    store,
		sessions: sessions,
		logger:   logger,
		mw:       &whispers.Middleware{Sessions: sessions, LoginURL: "/login"},
	}

	a.auth.Local = &whispers.LocalAuth{
		ValidateCredentials: whispers.NewCredentialsValidator(store),
		CreateAccount:       whispers.NewCreateAccountFunc(store),
		HandleAccount:       a.handleAuthenticated,
		LoginURL:            "/login",
		RegisterURL:         "/register",
		EmailField:          "username", // login and register forms post the email as "username"
	}
	if cfg.Google.Enabled() {
		a.auth.Google = oauth2.NewGoogleOAuth2(
			cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.CallbackURL,
			a.handleFederated(whispers.ProviderGoogle))
	}
	if cfg.Facebook.Enabled() {
		a.auth.Facebook = oauth2.NewFacebookOAuth2(
			cfg.Facebook.ClientID, cfg.Facebook.ClientSecret, cfg.Facebook.CallbackURL,
			a.handleFederated(whispers.ProviderFacebook))
	}

	a.router = a.setupRoutes()
	return a
}

// Handler returns the app's HTTP handler with session loading applied.
func (a *App) Handler() http.Handler {
	return a.sessions.LoadAndSave(a.router)
}

func (a *App) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", a.handleHome).Methods(http.MethodGet)
	r.HandleFunc("/login", a.handleLoginForm).Methods(http.MethodGet)
	r.HandleFunc("/login", a.auth.Local.HandleLogin).Methods(http.MethodPost)
	r.HandleFunc("/register", a.handleRegisterForm).Methods(http.MethodGet)
	r.HandleFunc("/register", a.auth.Local.HandleRegister).Methods(http.MethodPost)
	r.HandleFunc("/secrets", a.handleSecrets).Methods(http.MethodGet)
	r.HandleFunc("/logout", a.handleLogout).Methods(http.MethodGet)

	r.Handle("/submit", a.mw.RequireAccount(http.HandlerFunc(a.handleSubmitForm))).Methods(http.MethodGet)
	r.Handle("/submit", a.mw.RequireAccount(http.HandlerFunc(a.handleSubmit))).Methods(http.MethodPost)

	if a.auth.Google != nil {
		r.HandleFunc("/auth/google", a.auth.Google.HandleBegin).Methods(http.MethodGet)
		r.HandleFunc("/auth/google/secrets", a.auth.Google.HandleCallback).Methods(http.MethodGet)
	}
	if a.auth.Facebook != nil {
		r.HandleFunc("/auth/facebook", a.auth.Facebook.HandleBegin).Methods(http.MethodGet)
		r.HandleFunc("/auth/facebook/secrets", a.auth.Facebook.HandleCallback).Methods(http.MethodGet)
	}

	return r
}

// handleAuthenticated is the success handler shared by every
// authenticator: establish the session and land on the secrets page.
func (a *App) handleAuthenticated(provider whispers.Provider, account *whispers.Account, w http.ResponseWriter, r *http.Request) {
	a.sessions.Login(w, r, account)
	a.logger.Info("session established", "provider", provider.String(), "account", account.ID)
	http.Redirect(w, r, "/secrets", http.StatusFound)
}

// handleFederated adapts a provider callback into the find-or-create +
// login sequence. The subject ID comes from the provider profile; the
// store's atomic upsert guarantees one account per subject.
func (a *App) handleFederated(provider whispers.Provider) oauth2.HandleUserFunc {
	return func(token *oauth2lib.Token, userInfo map[string]any, w http.ResponseWriter, r *http.Request) {
		subjectID, _ := userInfo["id"].(string)
		if subjectID == "" {
			err := fmt.Errorf("%w: profile has no subject id", whispers.ErrProviderAuthFailure)
			a.logger.Info("federated login rejected", "provider", provider.String(), "err", err)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		account, created, err := a.store.EnsureFederatedAccount(r.Context(), provider, subjectID)
		if err != nil {
			a.logger.Error("federated login failed", "provider", provider.String(), "err", err)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		if created {
			a.logger.Info("account created from federated login", "provider", provider.String(), "account", account.ID)
		}
		a.handleAuthenticated(provider, account, w, r)
	}
}

func (a *App) handleHome(w http.ResponseWriter, r *http.Request) {
	renderPage(w, "Whispers", `
<h1>Whispers</h1>
<p>Share a secret. Anonymously.</p>
<p><a href="/login">Login</a> | <a href="/register">Register</a> | <a href="/secrets">Secrets</a></p>`)
}

func (a *App) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	renderPage(w, "Login", `
<h1>Login</h1>
<form method="POST" action="/login">
	<label>Email: <input type="email" name="username" required></label>
	<label>Password: <input type="password" name="password" required></label>
	<button type="submit">Login</button>
</form>`+a.providerLinks())
}

func (a *App) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	renderPage(w, "Register", `
<h1>Register</h1>
<form method="POST" action="/register">
	<label>Email: <input type="email" name="username" required></label>
	<label>Name: <input type="text" name="name"></label>
	<label>Password: <input type="password" name="password" required minlength="8"></label>
	<button type="submit">Register</button>
</form>`+a.providerLinks())
}

func (a *App) providerLinks() string {
	out := ""
	if a.auth.Google != nil {
		out += `<p><a href="/auth/google">Sign in with Google</a></p>`
	}
	if a.auth.Facebook != nil {
		out += `<p><a href="/auth/facebook">Sign in with Facebook</a></p>`
	}
	return out
}

// handleSecrets lists every account with a submitted secret. A store
// failure degrades to an empty list; the page always renders.
func (a *App) handleSecrets(w http.ResponseWriter, r *http.Request) {
	accounts, err := a.store.AccountsWithSecrets(r.Context())
	if err != nil {
		if errors.Is(err, whispers.ErrStoreUnavailable) {
			a.logger.Error("secrets listing degraded", "err", err)
			accounts = nil
		} else {
			a.logger.Error("error listing secrets", "err", err)
			accounts = nil
		}
	}

	body := "<h1>You've discovered the secrets</h1>\n<ul>"
	for _, account := range accounts {
		body += fmt.Sprintf("\n<li>%s</li>", html.EscapeString(*account.Secret))
	}
	body += "\n</ul>"
	if a.sessions.AccountID(r) == "" {
		body += `<p><a href="/login">Login</a> to share your own.</p>`
	} else {
		body += `<p><a href="/submit">Submit a secret</a> | <a href="/logout">Logout</a></p>`
	}
	renderPage(w, "Secrets", body)
}

func (a *App) handleSubmitForm(w http.ResponseWriter, r *http.Request) {
	greeting := ""
	if account, err := a.store.GetAccountByID(r.Context(), whispers.LoggedInAccountID(r)); err == nil {
		greeting = fmt.Sprintf("<p>Signed in as %s. Submissions stay anonymous.</p>", html.EscapeString(account.DisplayName()))
	}
	renderPage(w, "Submit", `
<h1>Share a secret with the world</h1>`+greeting+`
<form method="POST" action="/submit">
	<label>Secret: <input type="text" name="secret" required></label>
	<button type="submit">Submit</button>
</form>`)
}

// handleSubmit overwrites the caller's secret; each submission replaces
// the previous one.
func (a *App) handleSubmit(w http.ResponseWriter, r *http.Request) {
	accountID := whispers.LoggedInAccountID(r)

	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/submit", http.StatusFound)
		return
	}
	secret := r.FormValue("secret")
	if secret == "" {
		http.Redirect(w, r, "/submit", http.StatusFound)
		return
	}

	if err := a.store.SetSecret(r.Context(), accountID, secret); err != nil {
		a.logger.Error("error saving secret", "account", accountID, "err", err)
	}
	http.Redirect(w, r, "/secrets", http.StatusFound)
}

// handleLogout invalidates the session server-side. Idempotent for
// anonymous callers.
func (a *App) handleLogout(w http.ResponseWriter, r *http.Request) {
	a.sessions.Logout(w, r)
	http.Redirect(w, r, "/", http.StatusFound)
}

func renderPage(w http.ResponseWriter, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>%s</title></head>
<body>
%s
</body>
</html>`, html.EscapeString(title), body)
}
