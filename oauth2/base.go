// Package oauth2 drives the authorization-code flow for the federated
// identity providers. Each provider exposes a begin handler that
// redirects the user agent to the provider's consent endpoint and a
// callback handler that verifies state, exchanges the code, fetches the
// minimal profile and hands it to the configured HandleUser callback.
// Failures anywhere in the flow classify as
// whispers.ErrProviderAuthFailure and never surface an error page; they
// redirect to the auth failure URL (the login form).
package oauth2

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/panyam/whispers"
)

// HandleUserFunc is invoked after a successful code exchange and profile
// fetch. userInfo carries at least an "id" key holding the provider's
// subject identifier.
type HandleUserFunc func(token *oauth2.Token, userInfo map[string]any, w http.ResponseWriter, r *http.Request)

// BaseOAuth2 holds the pieces shared by all providers. The zero
// AuthFailureURL falls back to /login.
type BaseOAuth2 struct {
	Config oauth2.Config

	// Called with the provider profile on success.
	HandleUser HandleUserFunc

	// Where to send the user agent when the provider flow fails.
	AuthFailureURL string

	// Injectable client for the exchange and profile fetch. Defaults to
	// http.DefaultClient. Used by tests to stub the provider.
	HTTPClient *http.Client
}

func NewBaseOAuth2(clientID, clientSecret, callbackURL string, endpoint oauth2.Endpoint, scopes []string) *BaseOAuth2 {
	return &BaseOAuth2{
		Config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		AuthFailureURL: "/login",
	}
}

// HandleBegin starts the flow: mints the state cookie and redirects to
// the provider's consent endpoint.
func (b *BaseOAuth2) HandleBegin(w http.ResponseWriter, r *http.Request) {
	state := generateStateOauthCookie(w)
	http.Redirect(w, r, b.Config.AuthCodeURL(state), http.StatusFound)
}

// verifyCallbackState checks the returned state against the state
// cookie and returns the authorization code. A user denying consent
// arrives here with no code, which fails the same way a forged state
// does.
func (b *BaseOAuth2) verifyCallbackState(w http.ResponseWriter, r *http.Request) (string, error) {
	oauthState, _ := r.Cookie(oauthStateCookieName)
	if oauthState == nil {
		return "", fmt.Errorf("%w: state cookie missing", whispers.ErrProviderAuthFailure)
	}
	if r.FormValue("state") != oauthState.Value {
		clearStateCookie(w)
		return "", fmt.Errorf("%w: state mismatch", whispers.ErrProviderAuthFailure)
	}
	code := r.FormValue("code")
	if code == "" {
		return "", fmt.Errorf("%w: authorization code missing", whispers.ErrProviderAuthFailure)
	}
	return code, nil
}

// exchangeContext returns the context used for the token exchange, with
// the injectable HTTP client applied when set.
func (b *BaseOAuth2) exchangeContext(r *http.Request) context.Context {
	ctx := r.Context()
	if b.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, b.HTTPClient)
	}
	return ctx
}

func (b *BaseOAuth2) httpClient() *http.Client {
	if b.HTTPClient != nil {
		return b.HTTPClient
	}
	return http.DefaultClient
}

func (b *BaseOAuth2) redirectFailure(w http.ResponseWriter, r *http.Request) {
	url := b.AuthFailureURL
	if url == "" {
		url = "/login"
	}
	http.Redirect(w, r, url, http.StatusFound)
}
