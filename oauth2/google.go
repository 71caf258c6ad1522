package oauth2

import (
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	goauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/panyam/whispers"
)

// GoogleOAuth2 drives the Google authorization-code flow. The profile is
// fetched through the Google oauth2/v2 Userinfo service.
type GoogleOAuth2 struct {
	*BaseOAuth2
}

func NewGoogleOAuth2(clientID, clientSecret, callbackURL string, handleUser HandleUserFunc) *GoogleOAuth2 {
	out := &GoogleOAuth2{
		BaseOAuth2: NewBaseOAuth2(clientID, clientSecret, callbackURL, google.Endpoint, []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		}),
	}
	out.HandleUser = handleUser
	return out
}

// HandleCallback completes the flow on the provider's redirect back.
func (g *GoogleOAuth2) HandleCallback(w http.ResponseWriter, r *http.Request) {
	code, err := g.verifyCallbackState(w, r)
	if err != nil {
		slog.Info("google callback rejected", "err", err)
		g.redirectFailure(w, r)
		return
	}

	token, err := g.Config.Exchange(g.exchangeContext(r), code)
	if err != nil {
		slog.Info("google code exchange failed", "err", fmt.Errorf("%w: %v", whispers.ErrProviderAuthFailure, err))
		g.redirectFailure(w, r)
		return
	}

	userInfo, err := g.fetchUserInfo(r, token)
	if err != nil {
		slog.Info("google userinfo fetch failed", "err", err)
		g.redirectFailure(w, r)
		return
	}

	g.HandleUser(token, userInfo, w, r)
}

func (g *GoogleOAuth2) fetchUserInfo(r *http.Request, token *oauth2.Token) (map[string]any, error) {
	ctx := r.Context()
	opts := []option.ClientOption{option.WithTokenSource(g.Config.TokenSource(ctx, token))}
	if g.HTTPClient != nil {
		opts = []option.ClientOption{option.WithHTTPClient(g.HTTPClient)}
	}
	service, err := goauth2.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: building userinfo service: %v", whispers.ErrProviderAuthFailure, err)
	}

	ui, err := service.Userinfo.Get().Do()
	if err != nil {
		return nil, fmt.Errorf("%w: fetching google profile: %v", whispers.ErrProviderAuthFailure, err)
	}
	return map[string]any{
		"id":      ui.Id,
		"email":   ui.Email,
		"name":    ui.Name,
		"picture": ui.Picture,
	}, nil
}
