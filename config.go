package whispers

import (
	"os"
	"strconv"
)

// ProviderCredentials is the injected client configuration for one OAuth2
// provider. Providers are only enabled when their credentials are set;
// there is no process-wide strategy registry.
type ProviderCredentials struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

func (p ProviderCredentials) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

// Config holds runtime settings for the whispers server.
type Config struct {
	// Bind address for the HTTP listener.
	ListenAddr string

	// Externally visible base URL, used to build provider callbacks.
	BaseURL string

	// Postgres DSN. When empty the server falls back to the filesystem
	// store under DataDir (development mode).
	DatabaseDSN string
	DataDir     string

	// HMAC secret for signing the auth token cookie (HS256). Do not use
	// the test default in prod.
	SessionSecret string

	// Lifetime in seconds of the auth token cookie.
	SessionTimeoutSeconds int

	// Whether session cookies require encrypted transport.
	SecureCookies bool

	Google   ProviderCredentials
	Facebook ProviderCredentials
}

// LoadDefaults populates Config with development defaults.
// NOTE: insecure for production; override via environment.
func (c *Config) LoadDefaults() {
	c.ListenAddr = ":3000"
	c.BaseURL = "http://localhost:3000"
	c.DataDir = "./data"
	c.SessionSecret = "MyTestJWTSecretKey123456"
	c.SessionTimeoutSeconds = 86400
	c.SecureCookies = false
}

// LoadConfig builds a Config by applying defaults and then overlaying
// values from the process environment.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	cfg.loadEnv()
	return cfg
}

func (c *Config) loadEnv() {
	setString(&c.ListenAddr, "WHISPERS_LISTEN_ADDR")
	setString(&c.BaseURL, "WHISPERS_BASE_URL")
	setString(&c.DatabaseDSN, "WHISPERS_DATABASE_DSN")
	setString(&c.DataDir, "WHISPERS_DATA_DIR")
	setString(&c.SessionSecret, "WHISPERS_SESSION_SECRET")
	if v, err := strconv.Atoi(os.Getenv("WHISPERS_SESSION_TIMEOUT_SECONDS")); err == nil && v > 0 {
		c.SessionTimeoutSeconds = v
	}
	if v, err := strconv.ParseBool(os.Getenv("WHISPERS_SECURE_COOKIES")); err == nil {
		c.SecureCookies = v
	}

	setString(&c.Google.ClientID, "GOOGLE_CLIENT_ID")
	setString(&c.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	setString(&c.Google.CallbackURL, "GOOGLE_CALLBACK_URL")
	if c.Google.CallbackURL == "" {
		c.Google.CallbackURL = c.BaseURL + "/auth/google/secrets"
	}

	setString(&c.Facebook.ClientID, "FACEBOOK_APP_ID")
	setString(&c.Facebook.ClientSecret, "FACEBOOK_APP_SECRET")
	setString(&c.Facebook.CallbackURL, "FACEBOOK_CALLBACK_URL")
	if c.Facebook.CallbackURL == "" {
		c.Facebook.CallbackURL = c.BaseURL + "/auth/facebook/secrets"
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
