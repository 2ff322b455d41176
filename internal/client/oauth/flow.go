// Package oauth drives the client side of the OAuth2 authorization-code
// flow: request an authorization URL, hand the user off to the provider, and
// process the callback with a CSRF check against the locally stored
// handshake.
package oauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/avolkov/taskdeck/internal/client/api"
	"github.com/avolkov/taskdeck/internal/client/session"
	"github.com/avolkov/taskdeck/internal/client/storage"
	"github.com/avolkov/taskdeck/internal/logging"
	"github.com/avolkov/taskdeck/internal/models"
)

var (
	// ErrStateMismatch means the callback's state did not match the stored
	// handshake byte for byte. The flow fails closed: no backend call is made.
	ErrStateMismatch = errors.New("oauth state mismatch")

	// ErrNoPendingHandshake means the callback arrived with no handshake in
	// the store, either because none was started or because one was already
	// consumed.
	ErrNoPendingHandshake = errors.New("no pending oauth handshake")

	// ErrCallbackInvalid covers callbacks missing the code or state
	// parameter, or carrying a provider error.
	ErrCallbackInvalid = errors.New("invalid oauth callback")

	// ErrNotLoggedIn is returned when a link-account flow is attempted
	// without an authenticated session.
	ErrNotLoggedIn = errors.New("not logged in")
)

// Status is the externally visible phase of the flow.
type Status int

const (
	StatusIdle Status = iota
	StatusAuthorizing
	StatusRedirected
	StatusProcessing
	StatusSucceeded
	StatusFailed
)

// CallbackInput carries the query parameters the provider redirect delivered.
// ErrorParam is the provider's "error" parameter, set when the user denied
// the authorization.
type CallbackInput struct {
	Code       string
	State      string
	ErrorParam string
}

// Flow is the OAuth2 flow controller. It owns the handshake lifecycle and
// delegates session establishment to the session service.
type Flow struct {
	api      api.Client
	store    storage.Store
	session  *session.Service
	logger   logging.Logger
	redirect func(url string) error

	status Status
}

// Option configures a Flow.
type Option func(*Flow)

// WithRedirect sets the function that sends the user to the provider's
// authorization URL (opening a browser, printing the URL). The default
// records the URL and does nothing.
func WithRedirect(fn func(url string) error) Option {
	return func(f *Flow) { f.redirect = fn }
}

func New(apiClient api.Client, store storage.Store, sess *session.Service, logger logging.Logger, opts ...Option) *Flow {
	if logger == nil {
		logger = logging.NewNop()
	}
	f := &Flow{
		api:      apiClient,
		store:    store,
		session:  sess,
		logger:   logger,
		redirect: func(string) error { return nil },
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Status returns the current flow phase.
func (f *Flow) Status() Status { return f.status }

// Providers lists the providers the backend has configured.
func (f *Flow) Providers(ctx context.Context) (*models.ProviderList, error) {
	return f.api.Providers(ctx)
}

// BeginLogin starts an authorization round trip that will establish a new
// session on callback.
func (f *Flow) BeginLogin(ctx context.Context, provider string) error {
	return f.begin(ctx, provider, storage.IntentLogin)
}

// BeginLink starts an authorization round trip that will attach the provider
// to the already authenticated account on callback.
func (f *Flow) BeginLink(ctx context.Context, provider string) error {
	if !f.session.IsLoggedIn() {
		return ErrNotLoggedIn
	}
	return f.begin(ctx, provider, storage.IntentLinkAccount)
}

func (f *Flow) begin(ctx context.Context, provider string, intent storage.Intent) error {
	f.status = StatusAuthorizing

	resp, err := f.api.Authorize(ctx, models.AuthorizeRequest{Provider: provider})
	if err != nil {
		f.status = StatusFailed
		return err
	}

	// The handshake has to be in the store before the user leaves for the
	// provider, so the callback can be matched against it.
	hs := storage.Handshake{CSRFState: resp.State, Intent: intent, Provider: provider}
	if err := f.store.SaveHandshake(ctx, hs); err != nil {
		f.status = StatusFailed
		return fmt.Errorf("save handshake: %w", err)
	}

	f.logger.Info(ctx, "oauth authorization started", "provider", provider, "intent", string(intent))

	if err := f.redirect(resp.AuthorizationURL); err != nil {
		f.status = StatusFailed
		return fmt.Errorf("redirect: %w", err)
	}
	f.status = StatusRedirected
	return nil
}

// HandleCallback consumes the pending handshake and completes the flow. The
// handshake is single use: whatever the outcome, a second callback finds
// nothing to match against. The CSRF comparison is byte for byte and any
// failure aborts before a backend call is made.
func (f *Flow) HandleCallback(ctx context.Context, in CallbackInput) error {
	f.status = StatusProcessing

	if in.ErrorParam != "" {
		f.abandon(ctx)
		return fmt.Errorf("%w: provider error %q", ErrCallbackInvalid, in.ErrorParam)
	}
	if in.Code == "" || in.State == "" {
		f.abandon(ctx)
		return fmt.Errorf("%w: missing code or state", ErrCallbackInvalid)
	}

	hs, err := f.store.TakeHandshake(ctx)
	if err != nil {
		f.status = StatusFailed
		return fmt.Errorf("take handshake: %w", err)
	}
	if hs == nil {
		f.status = StatusFailed
		return ErrNoPendingHandshake
	}

	if subtle.ConstantTimeCompare([]byte(in.State), []byte(hs.CSRFState)) != 1 {
		f.status = StatusFailed
		f.logger.Warn(ctx, "oauth state mismatch", "provider", hs.Provider)
		return ErrStateMismatch
	}

	switch hs.Intent {
	case storage.IntentLinkAccount:
		err = f.completeLink(ctx, hs.Provider, in)
	default:
		err = f.completeLogin(ctx, hs.Provider, in)
	}
	if err != nil {
		f.status = StatusFailed
		return err
	}
	f.status = StatusSucceeded
	return nil
}

func (f *Flow) completeLogin(ctx context.Context, provider string, in CallbackInput) error {
	resp, err := f.api.Callback(ctx, models.CallbackRequest{
		Code:     in.Code,
		State:    in.State,
		Provider: provider,
	})
	if err != nil {
		return err
	}
	if err := f.session.AdoptSession(ctx, resp); err != nil {
		return err
	}
	f.logger.Info(ctx, "oauth login completed", "provider", provider, "email", resp.User.Email)
	return nil
}

func (f *Flow) completeLink(ctx context.Context, provider string, in CallbackInput) error {
	if !f.session.IsLoggedIn() {
		return ErrNotLoggedIn
	}
	user, err := f.api.Link(ctx, models.LinkRequest{
		Code:     in.Code,
		State:    in.State,
		Provider: provider,
	})
	if err != nil {
		return err
	}
	f.session.ReplaceUser(ctx, *user)
	f.logger.Info(ctx, "oauth provider linked", "provider", provider)
	return nil
}

// Unlink detaches a provider from the current account and replaces the
// cached profile with the backend's updated copy.
func (f *Flow) Unlink(ctx context.Context, provider string) error {
	if !f.session.IsLoggedIn() {
		return ErrNotLoggedIn
	}
	user, err := f.api.Unlink(ctx, models.UnlinkRequest{Provider: provider})
	if err != nil {
		return err
	}
	f.session.ReplaceUser(ctx, *user)
	f.logger.Info(ctx, "oauth provider unlinked", "provider", provider)
	return nil
}

// abandon discards the handshake after a callback that failed before the
// CSRF check, so a poisoned round trip cannot be retried against it.
func (f *Flow) abandon(ctx context.Context) {
	if err := f.store.ClearHandshake(ctx); err != nil {
		f.logger.Warn(ctx, "failed to clear oauth handshake", "error", err)
	}
	f.status = StatusFailed
}
