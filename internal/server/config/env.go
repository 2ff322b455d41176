package config

import "os"

// parseEnv overlays secret-bearing settings from environment variables so
// deployments can keep credentials out of files and argv. Flags still win
// over the environment.
func parseEnv(config *Config) {
	setIfPresent("DATABASE_DSN", &config.DatabaseDSN)
	setIfPresent("REDIS_ADDR", &config.RedisAddr)
	setIfPresent("JWT_SECRET", &config.SecretKey)
	setIfPresent("OAUTH_REDIRECT_URI", &config.OAuthRedirectURI)

	setIfPresent("GOOGLE_CLIENT_ID", &config.Google.ClientID)
	setIfPresent("GOOGLE_CLIENT_SECRET", &config.Google.ClientSecret)
	setIfPresent("GITHUB_CLIENT_ID", &config.GitHub.ClientID)
	setIfPresent("GITHUB_CLIENT_SECRET", &config.GitHub.ClientSecret)
	setIfPresent("MICROSOFT_CLIENT_ID", &config.Microsoft.ClientID)
	setIfPresent("MICROSOFT_CLIENT_SECRET", &config.Microsoft.ClientSecret)
}

func setIfPresent(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}
