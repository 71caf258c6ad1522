package whispers

import (
	"fmt"
	"log/slog"
	"net/http"
)

// HandleAccountFunc is called after any authenticator (local or
// federated) establishes an account. The app uses it to create the
// session and redirect.
type HandleAccountFunc func(provider Provider, account *Account, w http.ResponseWriter, r *http.Request)

// LocalAuth handles email/password login and registration. All inputs
// arrive as url-encoded forms; every failure funnels into a redirect
// back to the relevant form rather than a rendered error page.
type LocalAuth struct {
	// Validates credentials during login
	ValidateCredentials CredentialsValidator

	// Validates credentials during signup
	ValidateSignup SignupValidator

	// Creates a new account (for signup)
	CreateAccount CreateAccountFunc

	// Handler called after successful authentication
	HandleAccount HandleAccountFunc

	// Redirect targets on failure
	LoginURL    string
	RegisterURL string

	// Form field names
	EmailField    string
	UsernameField string
	PasswordField string
}

// HandleLogin processes a login form submission.
func (a *LocalAuth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if a.ValidateCredentials == nil {
		http.Error(w, "Login not configured", http.StatusInternalServerError)
		return
	}

	email, password, err := a.parseLoginForm(r)
	if err != nil {
		a.redirectLogin(w, r)
		return
	}

	account, err := a.ValidateCredentials(r.Context(), email, password)
	if err != nil || account == nil {
		if err != nil {
			slog.Info("login failed", "err", err)
		}
		a.redirectLogin(w, r)
		return
	}

	a.HandleAccount(ProviderLocal, account, w, r)
}

// HandleRegister processes a registration form submission. On success
// the new account is logged in immediately.
func (a *LocalAuth) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if a.CreateAccount == nil {
		http.Error(w, "Signup not configured", http.StatusInternalServerError)
		return
	}

	creds, err := a.parseRegisterForm(r)
	if err != nil {
		a.redirectRegister(w, r)
		return
	}

	validator := a.ValidateSignup
	if validator == nil {
		validator = DefaultSignupValidator
	}
	if err := validator(creds); err != nil {
		slog.Info("signup rejected", "err", err)
		a.redirectRegister(w, r)
		return
	}

	account, err := a.CreateAccount(r.Context(), creds)
	if err != nil {
		slog.Info("error creating account", "err", err)
		a.redirectRegister(w, r)
		return
	}

	a.HandleAccount(ProviderLocal, account, w, r)
}

func (a *LocalAuth) parseLoginForm(r *http.Request) (email, password string, err error) {
	if err = r.ParseForm(); err != nil {
		return "", "", fmt.Errorf("error parsing form")
	}
	email = r.FormValue(a.getEmailField())
	password = r.FormValue(a.getPasswordField())
	if email == "" || password == "" {
		return "", "", fmt.Errorf("email and password required")
	}
	return email, password, nil
}

func (a *LocalAuth) parseRegisterForm(r *http.Request) (*Credentials, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("error parsing form")
	}
	return &Credentials{
		Email:    r.FormValue(a.getEmailField()),
		Username: r.FormValue(a.getUsernameField()),
		Password: r.FormValue(a.getPasswordField()),
	}, nil
}

func (a *LocalAuth) redirectLogin(w http.ResponseWriter, r *http.Request) {
	url := a.LoginURL
	if url == "" {
		url = "/login"
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func (a *LocalAuth) redirectRegister(w http.ResponseWriter, r *http.Request) {
	url := a.RegisterURL
	if url == "" {
		url = "/register"
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func (a *LocalAuth) getEmailField() string {
	if a.EmailField != "" {
		return a.EmailField
	}
	return "username" // the login form posts the email as "username"
}

func (a *LocalAuth) getUsernameField() string {
	if a.UsernameField != "" {
		return a.UsernameField
	}
	return "name"
}

func (a *LocalAuth) getPasswordField() string {
	if a.PasswordField != "" {
		return a.PasswordField
	}
	return "password"
}
