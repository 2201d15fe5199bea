package session

import "time"

// SimpleConfig is a plain struct implementation of Config. Zero values fall
// back to the product defaults.
type SimpleConfig struct {
	APIBaseURL     string
	AuthBaseURL    string
	RequestTimeout time.Duration
	CredentialKey  string
	IdentityKey    string
	SignInRoute    string
	HomeRoute      string
	RedirectParam  string
}

const (
	defaultAPIBasePath    = "/wp-json/pc/v1"
	defaultRequestTimeout = 10 * time.Second
	defaultCredentialKey  = "pusher_coin_auth_token"
	defaultIdentityKey    = "pusher_coin_user_data"
	defaultSignInRoute    = "/sign-in"
	defaultHomeRoute      = "/"
	defaultRedirectParam  = "redirect"
)

func (c SimpleConfig) GetAPIBaseURL() string {
	if c.APIBaseURL == "" {
		return defaultAPIBasePath
	}
	return c.APIBaseURL
}

func (c SimpleConfig) GetAuthBaseURL() string {
	if c.AuthBaseURL == "" {
		return c.GetAPIBaseURL()
	}
	return c.AuthBaseURL
}

func (c SimpleConfig) GetRequestTimeout() time.Duration {
	if c.RequestTimeout <= 0 {
		return defaultRequestTimeout
	}
	return c.RequestTimeout
}

func (c SimpleConfig) GetCredentialKey() string {
	if c.CredentialKey == "" {
		return defaultCredentialKey
	}
	return c.CredentialKey
}

func (c SimpleConfig) GetIdentityKey() string {
	if c.IdentityKey == "" {
		return defaultIdentityKey
	}
	return c.IdentityKey
}

func (c SimpleConfig) GetSignInRoute() string {
	if c.SignInRoute == "" {
		return defaultSignInRoute
	}
	return c.SignInRoute
}

func (c SimpleConfig) GetHomeRoute() string {
	if c.HomeRoute == "" {
		return defaultHomeRoute
	}
	return c.HomeRoute
}

func (c SimpleConfig) GetRedirectParam() string {
	if c.RedirectParam == "" {
		return defaultRedirectParam
	}
	return c.RedirectParam
}
