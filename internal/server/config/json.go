package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/avolkov/taskdeck/internal/flagx"
	"github.com/avolkov/taskdeck/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "30m" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, its fields are copied into the runtime Config
// struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddr                string         `json:"endpoint_addr"`
	DatabaseDSN                 string         `json:"database_dsn"`
	RedisAddr                   string         `json:"redis_addr"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	OAuthRedirectURI            string         `json:"oauth_redirect_uri"`
	GoogleClientID              string         `json:"google_client_id"`
	GoogleClientSecret          string         `json:"google_client_secret"`
	GitHubClientID              string         `json:"github_client_id"`
	GitHubClientSecret          string         `json:"github_client_secret"`
	MicrosoftClientID           string         `json:"microsoft_client_id"`
	MicrosoftClientSecret       string         `json:"microsoft_client_secret"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path is taken from the -c or -config command-line flags. If
// neither is set, no JSON file is loaded. If the file cannot be read or
// contains invalid JSON, the function panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.EndpointAddr = c.EndpointAddr
	config.DatabaseDSN = c.DatabaseDSN
	config.RedisAddr = c.RedisAddr
	config.SecretKey = c.SecretKey
	config.AccessTokenValidityDuration = time.Duration(c.AccessTokenValidityDuration.Duration)
	config.OAuthRedirectURI = c.OAuthRedirectURI
	config.Google = ProviderCredentials{ClientID: c.GoogleClientID, ClientSecret: c.GoogleClientSecret}
	config.GitHub = ProviderCredentials{ClientID: c.GitHubClientID, ClientSecret: c.GitHubClientSecret}
	config.Microsoft = ProviderCredentials{ClientID: c.MicrosoftClientID, ClientSecret: c.MicrosoftClientSecret}
}
