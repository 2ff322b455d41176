package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// UserInfo is the provider-independent profile extracted from a userinfo
// response.
type UserInfo struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
}

// Client performs the outbound calls of the authorization-code flow.
type Client interface {
	ExchangeCode(ctx context.Context, provider, code, redirectURI string) (string, error)
	FetchUserInfo(ctx context.Context, provider, accessToken string) (*UserInfo, error)
}

// HTTPClient is the default Client.
type HTTPClient struct {
	registry *Registry
	http     *http.Client
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(registry *Registry, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPClient{registry: registry, http: httpClient}
}

// ExchangeCode trades an authorization code for the provider access token.
func (c *HTTPClient) ExchangeCode(ctx context.Context, provider, code, redirectURI string) (string, error) {
	ep, creds, err := c.registry.Lookup(provider)
	if err != nil {
		return "", err
	}
	if redirectURI == "" {
		redirectURI = creds.RedirectURI
	}

	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", redirectURI)
	data.Set("client_id", creds.ClientID)
	data.Set("client_secret", creds.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	raw, err := c.doJSON(req)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}

	token, _ := raw["access_token"].(string)
	if token == "" {
		return "", fmt.Errorf("token exchange: no access_token in response")
	}
	return token, nil
}

// FetchUserInfo loads the userinfo endpoint and normalizes the profile per
// provider. GitHub hides private email addresses behind a second endpoint.
func (c *HTTPClient) FetchUserInfo(ctx context.Context, provider, accessToken string) (*UserInfo, error) {
	ep, _, err := c.registry.Lookup(provider)
	if err != nil {
		return nil, err
	}

	raw, err := c.getJSON(ctx, ep.UserInfoURL, accessToken)
	if err != nil {
		return nil, fmt.Errorf("userinfo: %w", err)
	}

	switch provider {
	case Google:
		return &UserInfo{
			ID:        stringField(raw, "id"),
			Email:     stringField(raw, "email"),
			Name:      stringField(raw, "name"),
			AvatarURL: stringField(raw, "picture"),
		}, nil

	case GitHub:
		email := stringField(raw, "email")
		if email == "" {
			email, err = c.fetchGitHubPrimaryEmail(ctx, accessToken)
			if err != nil {
				return nil, err
			}
		}
		return &UserInfo{
			ID:        stringField(raw, "id"),
			Email:     email,
			Name:      stringField(raw, "name"),
			AvatarURL: stringField(raw, "avatar_url"),
		}, nil

	case Microsoft:
		email := stringField(raw, "mail")
		if email == "" {
			email = stringField(raw, "userPrincipalName")
		}
		return &UserInfo{
			ID:    stringField(raw, "id"),
			Email: email,
			Name:  stringField(raw, "displayName"),
		}, nil

	default:
		return nil, fmt.Errorf("unsupported oauth2 provider: %s", provider)
	}
}

// fetchGitHubPrimaryEmail resolves the primary address from the dedicated
// emails endpoint.
func (c *HTTPClient) fetchGitHubPrimaryEmail(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.github.com/user/emails", nil)
	if err != nil {
		return "", fmt.Errorf("build emails request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("emails request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read emails response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("emails request failed: status=%d", resp.StatusCode)
	}

	var emails []struct {
		Email   string `json:"email"`
		Primary bool   `json:"primary"`
	}
	if err := json.Unmarshal(body, &emails); err != nil {
		return "", fmt.Errorf("decode emails response: %w", err)
	}
	for _, e := range emails {
		if e.Primary {
			return e.Email, nil
		}
	}
	if len(emails) > 0 {
		return emails[0].Email, nil
	}
	return "", nil
}

func (c *HTTPClient) getJSON(ctx context.Context, endpoint, accessToken string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	return c.doJSON(req)
}

func (c *HTTPClient) doJSON(req *http.Request) (map[string]any, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status=%d", resp.StatusCode)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return raw, nil
}

// stringField reads a field that providers serve as either a string or a
// number (GitHub's numeric user ID).
func stringField(raw map[string]any, key string) string {
	switch v := raw[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	default:
		return ""
	}
}
