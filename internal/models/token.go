package models

// Token is the credential issued on login, registration via OAuth, or token
// refresh. The client never inspects ExpiresIn; expiry is discovered through
// a 401 response.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// LoginResponse is the body returned by POST /auth/login and
// POST /oauth/callback.
type LoginResponse struct {
	Token
	User User `json:"user"`
}
