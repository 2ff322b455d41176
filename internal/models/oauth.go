package models

// ProviderInfo describes a single configured OAuth2 provider.
type ProviderInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Enabled     bool   `json:"enabled"`
}

// ProviderList is the body of GET /oauth/providers.
type ProviderList struct {
	OAuth2Enabled bool           `json:"oauth2_enabled"`
	Providers     []ProviderInfo `json:"providers"`
}

// AuthorizeRequest is the body of POST /oauth/authorize.
type AuthorizeRequest struct {
	Provider    string `json:"provider"`
	RedirectURI string `json:"redirect_uri,omitempty"`
}

// AuthorizeResponse carries the provider URL to redirect the user to and the
// CSRF state bound to this handshake.
type AuthorizeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}

// CallbackRequest is the body of POST /oauth/callback.
type CallbackRequest struct {
	Code     string `json:"code"`
	State    string `json:"state"`
	Provider string `json:"provider"`
}

// LinkRequest is the body of POST /oauth/link.
type LinkRequest struct {
	Provider string `json:"provider"`
	Code     string `json:"code"`
	State    string `json:"state"`
}

// UnlinkRequest is the body of POST /oauth/unlink.
type UnlinkRequest struct {
	Provider string `json:"provider"`
}
