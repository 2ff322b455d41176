package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avolkov/taskdeck/internal/models"
)

func staticToken(token string) TokenSource {
	return TokenSourceFunc(func(context.Context) string { return token })
}

func TestAuthorizer_AttachesBearerWhenTokenPresent(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(models.User{Email: "a@b.com"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, staticToken("tok1"))
	_, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok1", gotAuth)
}

func TestAuthorizer_NoHeaderWhenAnonymous(t *testing.T) {
	var gotAuth string
	var hasHeader bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, hasHeader = r.Header["Authorization"]
		_ = json.NewEncoder(w).Encode(models.ProviderList{})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, staticToken(""))
	_, err := c.Providers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
	assert.False(t, hasHeader, "anonymous request must not carry any Authorization header")
}

func TestAuthorizer_DoesNotMutateOriginalRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rt := newAuthRoundTripper(http.DefaultTransport, staticToken("tok1"))

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()

	_, mutated := req.Header["Authorization"]
	assert.False(t, mutated, "original request must stay pristine")
}

func TestTransport_RequestShape(t *testing.T) {
	var gotMethod, gotPath, gotContentType string
	var gotBody models.LoginRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(models.LoginResponse{
			Token: models.Token{AccessToken: "tok1", TokenType: "bearer", ExpiresIn: 1800},
			User:  models.User{Email: "a@b.com"},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	resp, err := c.Login(context.Background(), models.LoginRequest{Email: "a@b.com", Password: "pw123456"})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/v1/auth/login", gotPath)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "a@b.com", gotBody.Email)
	assert.Equal(t, "tok1", resp.AccessToken)
	assert.Equal(t, "a@b.com", resp.User.Email)
}

func TestTransport_FaultNormalization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"Email already registered"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	_, err := c.Register(context.Background(), models.RegisterRequest{Email: "a@b.com", Password: "pw123456"})
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, KindValidation, apiErr.Kind)
	assert.Equal(t, "Email already registered", apiErr.Message)
	assert.Equal(t, "Email already registered", apiErr.Detail)
}

func TestTransport_AuthExpiredHookFiresOn401(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Could not validate credentials"}`))
	}))
	defer srv.Close()

	fired := 0
	c := NewHTTPClient(srv.URL, staticToken("stale"), WithAuthExpiredHook(func() { fired++ }))

	_, err := c.Me(context.Background())
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, KindAuthExpired, apiErr.Kind)
	assert.Equal(t, MsgSessionExpired, apiErr.Message)
	assert.Equal(t, 1, fired, "hook must run exactly once, before propagation")
}

func TestTransport_HookSilentOnOtherFaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	fired := 0
	c := NewHTTPClient(srv.URL, nil, WithAuthExpiredHook(func() { fired++ }))

	_, err := c.Me(context.Background())
	require.Error(t, err)
	assert.Zero(t, fired)
}

func TestTransport_NetworkFault(t *testing.T) {
	// point at a server that is already closed
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	_, err := c.Providers(context.Background())
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, KindNetwork, apiErr.Kind)
	assert.Zero(t, apiErr.Status)
	assert.Contains(t, apiErr.Message, "Error: ")
}
