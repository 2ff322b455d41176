// Package providers knows the configured OAuth2 identity providers: their
// endpoints, scopes and the outbound calls against them.
package providers

import (
	"fmt"
	"net/url"
)

const (
	Google    = "google"
	GitHub    = "github"
	Microsoft = "microsoft"
)

// Endpoints are the fixed URLs of one identity provider.
type Endpoints struct {
	AuthorizeURL string
	TokenURL     string
	UserInfoURL  string
	Scope        string
}

// Credentials are the per-deployment client settings of one provider. A
// provider with empty credentials is registered but disabled.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

var defaultEndpoints = map[string]Endpoints{
	Google: {
		AuthorizeURL: "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:     "https://oauth2.googleapis.com/token",
		UserInfoURL:  "https://www.googleapis.com/oauth2/v2/userinfo",
		Scope:        "openid email profile",
	},
	GitHub: {
		AuthorizeURL: "https://github.com/login/oauth/authorize",
		TokenURL:     "https://github.com/login/oauth/access_token",
		UserInfoURL:  "https://api.github.com/user",
		Scope:        "user:email",
	},
	Microsoft: {
		AuthorizeURL: "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
		TokenURL:     "https://login.microsoftonline.com/common/oauth2/v2.0/token",
		UserInfoURL:  "https://graph.microsoft.com/v1.0/me",
		Scope:        "openid email profile",
	},
}

// displayNames maps provider keys to the labels shown to users.
var displayNames = map[string]string{
	Google:    "Google",
	GitHub:    "GitHub",
	Microsoft: "Microsoft",
}

// Registry resolves provider endpoints and deployment credentials.
type Registry struct {
	creds     map[string]Credentials
	endpoints map[string]Endpoints
}

func NewRegistry(creds map[string]Credentials) *Registry {
	if creds == nil {
		creds = map[string]Credentials{}
	}
	eps := make(map[string]Endpoints, len(defaultEndpoints))
	for k, v := range defaultEndpoints {
		eps[k] = v
	}
	return &Registry{creds: creds, endpoints: eps}
}

// Names lists all known providers in a stable order.
func (r *Registry) Names() []string {
	return []string{Google, GitHub, Microsoft}
}

// DisplayName returns the user-facing label of a provider.
func (r *Registry) DisplayName(name string) string {
	return displayNames[name]
}

// Enabled reports whether the provider has credentials configured.
func (r *Registry) Enabled(name string) bool {
	c, ok := r.creds[name]
	return ok && c.ClientID != "" && c.ClientSecret != ""
}

// Lookup returns endpoints and credentials for an enabled provider.
func (r *Registry) Lookup(name string) (Endpoints, Credentials, error) {
	ep, ok := r.endpoints[name]
	if !ok {
		return Endpoints{}, Credentials{}, fmt.Errorf("unsupported oauth2 provider: %s", name)
	}
	if !r.Enabled(name) {
		return Endpoints{}, Credentials{}, fmt.Errorf("oauth2 credentials not configured for %s", name)
	}
	return ep, r.creds[name], nil
}

// AuthorizationURL builds the provider's authorization URL for the given
// state and redirect URI.
func (r *Registry) AuthorizationURL(name, state, redirectURI string) (string, error) {
	ep, creds, err := r.Lookup(name)
	if err != nil {
		return "", err
	}
	if redirectURI == "" {
		redirectURI = creds.RedirectURI
	}

	params := url.Values{}
	params.Set("client_id", creds.ClientID)
	params.Set("redirect_uri", redirectURI)
	params.Set("response_type", "code")
	params.Set("scope", ep.Scope)
	params.Set("state", state)
	if name == Microsoft {
		params.Set("response_mode", "query")
	}

	return ep.AuthorizeURL + "?" + params.Encode(), nil
}
