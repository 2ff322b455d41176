package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avolkov/taskdeck/internal/logging"
	"github.com/avolkov/taskdeck/internal/models"
)

const (
	basePath        = "/api/v1"
	maxResponseBody = 1 << 20
	defaultTimeout  = 15 * time.Second
)

// HTTPClient is the concrete Client. Every request flows through the
// authorizer round tripper on the way out and the fault interceptor on the
// way back.
type HTTPClient struct {
	baseURL       string
	http          *http.Client
	logger        logging.Logger
	onAuthExpired func()
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithLogger sets the transport logger used for fault reporting.
func WithLogger(l logging.Logger) Option {
	return func(c *HTTPClient) { c.logger = l }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.http.Timeout = d }
}

// WithAuthExpiredHook registers the callback the fault interceptor invokes
// on a 401 response, before the error is propagated. The session service
// registers its forced-logout handler here.
func WithAuthExpiredHook(fn func()) Option {
	return func(c *HTTPClient) { c.onAuthExpired = fn }
}

// NewHTTPClient builds a transport for the server at baseURL. The tokens
// source supplies bearer credentials for the authorizer stage; pass nil for
// an always-anonymous client.
func NewHTTPClient(baseURL string, tokens TokenSource, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logging.NewNop(),
		http: &http.Client{
			Timeout:   defaultTimeout,
			Transport: newAuthRoundTripper(nil, tokens),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetAuthExpiredHook is the post-construction variant of
// WithAuthExpiredHook, for wiring cycles where the session is built after
// the transport.
func (c *HTTPClient) SetAuthExpiredHook(fn func()) { c.onAuthExpired = fn }

func (c *HTTPClient) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *HTTPClient) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *HTTPClient) Refresh(ctx context.Context) (*models.Token, error) {
	var token models.Token
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

func (c *HTTPClient) Providers(ctx context.Context) (*models.ProviderList, error) {
	var list models.ProviderList
	if err := c.do(ctx, http.MethodGet, "/oauth/providers", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *HTTPClient) Authorize(ctx context.Context, req models.AuthorizeRequest) (*models.AuthorizeResponse, error) {
	var resp models.AuthorizeResponse
	if err := c.do(ctx, http.MethodPost, "/oauth/authorize", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Callback(ctx context.Context, req models.CallbackRequest) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/oauth/callback", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Link(ctx context.Context, req models.LinkRequest) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodPost, "/oauth/link", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *HTTPClient) Unlink(ctx context.Context, req models.UnlinkRequest) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodPost, "/oauth/unlink", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// do runs one request through the pipeline: JSON encode, authorize, send,
// then either decode the success body into out or normalize the fault.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return normalizeNetwork(fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+basePath+path, reader)
	if err != nil {
		return normalizeNetwork(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		apiErr := normalizeNetwork(err)
		c.logger.Error(ctx, "request failed",
			"method", method, "path", path, "message", apiErr.Message, "error", err)
		return apiErr
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		apiErr := normalizeNetwork(err)
		c.logger.Error(ctx, "request failed",
			"method", method, "path", path, "message", apiErr.Message, "error", err)
		return apiErr
	}

	if resp.StatusCode >= 400 {
		return c.intercept(ctx, method, path, resp.StatusCode, data)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return normalizeNetwork(fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}

// intercept is the response fault stage: normalize, log, and on 401 trigger
// the forced-logout hook before propagating.
func (c *HTTPClient) intercept(ctx context.Context, method, path string, status int, body []byte) error {
	apiErr := normalizeStatus(status, body)
	c.logger.Error(ctx, "request failed",
		"method", method, "path", path,
		"status", status, "message", apiErr.Message, "error", string(body))

	if apiErr.Kind == KindAuthExpired && c.onAuthExpired != nil {
		c.onAuthExpired()
	}
	return apiErr
}
