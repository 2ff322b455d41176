// Package config handles configuration for the server component,
// including defaults, JSON overlay, and command-line flags.
package config

import "time"

// ProviderCredentials holds the OAuth2 client credentials for one provider.
// A provider with an empty ClientID or ClientSecret stays disabled.
type ProviderCredentials struct {
	ClientID     string
	ClientSecret string
}

// Config holds runtime settings for the TaskDeck server.
//
// Fields:
//   - EndpointAddr: bind address for the HTTP API.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty switches to the in-memory repository.
//   - RedisAddr: Redis address for OAuth state. Empty switches to the in-memory store.
//   - SecretKey: HMAC secret for signing JWTs (HS256). Do not use test defaults in prod.
//   - AccessTokenValidityDuration: access token lifetime.
//   - OAuthRedirectURI: the callback URL registered with the providers.
//   - Google / GitHub / Microsoft: per-provider OAuth2 client credentials.
type Config struct {
	EndpointAddr                string
	DatabaseDSN                 string
	RedisAddr                   string
	SecretKey                   string
	AccessTokenValidityDuration time.Duration
	OAuthRedirectURI            string
	Google                      ProviderCredentials
	GitHub                      ProviderCredentials
	Microsoft                   ProviderCredentials
}

// LoadDefaults populates Config with sensible development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddr = ":8080"
	c.DatabaseDSN = ""
	c.RedisAddr = ""
	c.SecretKey = "secretKey"
	c.AccessTokenValidityDuration = 30 * time.Minute
	c.OAuthRedirectURI = "http://127.0.0.1:8080/oauth/callback"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment, and finally command-line
// flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
