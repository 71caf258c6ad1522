package oauth2

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"

	"github.com/panyam/whispers"
)

// FacebookOAuth2 drives the Facebook authorization-code flow. The
// profile is fetched from the Graph API /me edge.
type FacebookOAuth2 struct {
	*BaseOAuth2

	// UserInfoURL is the profile endpoint. Defaults to the Graph API;
	// overridable for testing.
	UserInfoURL string
}

func NewFacebookOAuth2(clientID, clientSecret, callbackURL string, handleUser HandleUserFunc) *FacebookOAuth2 {
	out := &FacebookOAuth2{
		BaseOAuth2:  NewBaseOAuth2(clientID, clientSecret, callbackURL, facebook.Endpoint, []string{"public_profile"}),
		UserInfoURL: "https://graph.facebook.com/me?fields=id,name,email",
	}
	out.HandleUser = handleUser
	return out
}

// HandleCallback completes the flow on the provider's redirect back.
func (f *FacebookOAuth2) HandleCallback(w http.ResponseWriter, r *http.Request) {
	code, err := f.verifyCallbackState(w, r)
	if err != nil {
		slog.Info("facebook callback rejected", "err", err)
		f.redirectFailure(w, r)
		return
	}

	token, err := f.Config.Exchange(f.exchangeContext(r), code)
	if err != nil {
		slog.Info("facebook code exchange failed", "err", fmt.Errorf("%w: %v", whispers.ErrProviderAuthFailure, err))
		f.redirectFailure(w, r)
		return
	}

	userInfo, err := f.fetchUserInfo(token)
	if err != nil {
		slog.Info("facebook profile fetch failed", "err", err)
		f.redirectFailure(w, r)
		return
	}

	f.HandleUser(token, userInfo, w, r)
}

func (f *FacebookOAuth2) fetchUserInfo(token *oauth2.Token) (map[string]any, error) {
	req, err := http.NewRequest(http.MethodGet, f.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	response, err := f.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching facebook profile: %v", whispers.ErrProviderAuthFailure, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: facebook profile fetch returned %d", whispers.ErrProviderAuthFailure, response.StatusCode)
	}

	contents, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading facebook profile: %v", whispers.ErrProviderAuthFailure, err)
	}

	var userInfo map[string]any
	if err := json.Unmarshal(contents, &userInfo); err != nil {
		return nil, fmt.Errorf("%w: decoding facebook profile: %v", whispers.ErrProviderAuthFailure, err)
	}
	return userInfo, nil
}
