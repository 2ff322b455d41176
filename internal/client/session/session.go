// Package session owns the client's authentication state machine. It is the
// sole writer of the credential store and the only component that decides
// whether the client is ANONYMOUS or AUTHENTICATED.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/avolkov/taskdeck/internal/client/api"
	"github.com/avolkov/taskdeck/internal/client/storage"
	"github.com/avolkov/taskdeck/internal/logging"
	"github.com/avolkov/taskdeck/internal/models"
)

// ErrOperationInFlight is returned when a login or registration is started
// while a previous one has not resolved yet.
var ErrOperationInFlight = errors.New("operation already in flight")

// State is the observable session snapshot. IsAuthenticated is true exactly
// when CurrentUser is non-nil.
type State struct {
	CurrentUser     *models.User
	IsAuthenticated bool
	IsLoading       bool
	LastError       string
}

// Service is the session state machine.
//
// All state transitions and credential-store writes happen under one mutex,
// so the three writes of a successful login (persist pair, set user, set
// authenticated) form a single critical section that no other transition can
// interleave. Network calls are made with the mutex released.
type Service struct {
	api    api.Client
	store  storage.Store
	logger logging.Logger

	mu       sync.Mutex
	state    State
	inFlight bool
	subs     []func(State)
	navigate func()
}

// New constructs a session service. Call Initialize once at startup to
// restore a persisted session.
func New(apiClient api.Client, store storage.Store, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{api: apiClient, store: store, logger: logger}
}

// Subscribe registers fn to run after every state change, with the new
// snapshot. Subscribers are invoked synchronously, outside the state lock.
func (s *Service) Subscribe(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// OnNavigateToLogin registers the UI hook invoked after logout.
func (s *Service) OnNavigateToLogin(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigate = fn
}

// Initialize restores a persisted session: when the store holds both the
// token and the user, the session becomes authenticated without contacting
// the backend. A stale token surfaces later as a 401 on the first
// authorized call.
func (s *Service) Initialize(ctx context.Context) error {
	token, err := s.store.Credentials(ctx)
	if err != nil {
		return fmt.Errorf("restore credentials: %w", err)
	}
	user, err := s.store.User(ctx)
	if err != nil {
		return fmt.Errorf("restore user: %w", err)
	}
	if token == nil || user == nil {
		return nil
	}

	s.mu.Lock()
	s.state.CurrentUser = user
	s.state.IsAuthenticated = true
	st := s.state
	s.mu.Unlock()
	s.notify(st)

	s.logger.Info(ctx, "session restored", "email", user.Email)
	return nil
}

// Register creates an account. It does not log the user in; session state is
// untouched apart from the loading flag and LastError.
func (s *Service) Register(ctx context.Context, email, password string, fullName *string) (*models.User, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}

	user, err := s.api.Register(ctx, models.RegisterRequest{
		Email:    email,
		Password: password,
		FullName: fullName,
	})
	if err != nil {
		s.finish(errorMessage(err))
		return nil, err
	}

	s.finish("")
	return user, nil
}

// Login authenticates and, on success, atomically persists the credential
// pair and flips the session to authenticated. On failure the session is
// unchanged except for LastError.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}

	resp, err := s.api.Login(ctx, models.LoginRequest{Email: email, Password: password})
	if err != nil {
		s.finish(errorMessage(err))
		return nil, err
	}

	s.mu.Lock()
	if err := s.store.SaveCredentials(ctx, resp.Token, resp.User); err != nil {
		s.inFlight = false
		s.state.IsLoading = false
		s.state.LastError = errorMessage(err)
		st := s.state
		s.mu.Unlock()
		s.logger.Error(ctx, "failed to persist credentials", "error", err)
		s.notify(st)
		return nil, err
	}

	user := resp.User
	s.inFlight = false
	s.state.IsLoading = false
	s.state.LastError = ""
	s.state.CurrentUser = &user
	s.state.IsAuthenticated = true
	st := s.state
	s.mu.Unlock()
	s.notify(st)

	return &user, nil
}

// Logout clears the credential store (token, user, and any pending OAuth
// handshake) and resets the session to anonymous. It never fails: storage
// errors are logged and the in-memory transition proceeds regardless.
func (s *Service) Logout(ctx context.Context) {
	s.mu.Lock()
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Warn(ctx, "failed to clear credential store on logout", "error", err)
	}
	s.state = State{}
	st := s.state
	nav := s.navigate
	s.mu.Unlock()
	s.notify(st)

	if nav != nil {
		nav()
	}
}

// HandleAuthExpired is the forced-logout path wired into the transport's
// 401 interceptor: log out, then surface the session-expiry message.
func (s *Service) HandleAuthExpired() {
	ctx := context.Background()
	s.logger.Warn(ctx, "session expired, forcing logout")
	s.Logout(ctx)

	s.mu.Lock()
	s.state.LastError = api.MsgSessionExpired
	st := s.state
	s.mu.Unlock()
	s.notify(st)
}

// RefreshProfile re-fetches the profile and replaces the cached copy. It is
// a no-op when anonymous. A refresh failure is logged and swallowed; only an
// explicit 401 (handled by the transport hook) ends the session.
func (s *Service) RefreshProfile(ctx context.Context) {
	if !s.IsLoggedIn() {
		return
	}

	user, err := s.api.Me(ctx)
	if err != nil {
		s.logger.Warn(ctx, "profile refresh failed", "error", err)
		return
	}

	s.mu.Lock()
	if s.state.IsAuthenticated {
		if err := s.store.SaveUser(ctx, *user); err != nil {
			s.logger.Warn(ctx, "failed to persist refreshed profile", "error", err)
		}
		s.state.CurrentUser = user
	}
	st := s.state
	s.mu.Unlock()
	s.notify(st)
}

// AdoptSession installs a login-shaped response obtained outside the
// password flow (the OAuth callback): write-through to the store, then
// transition to authenticated.
func (s *Service) AdoptSession(ctx context.Context, resp *models.LoginResponse) error {
	s.mu.Lock()
	if err := s.store.SaveCredentials(ctx, resp.Token, resp.User); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("persist credentials: %w", err)
	}

	user := resp.User
	s.state.LastError = ""
	s.state.CurrentUser = &user
	s.state.IsAuthenticated = true
	st := s.state
	s.mu.Unlock()
	s.notify(st)
	return nil
}

// ReplaceUser swaps the cached profile (account link/unlink). No credential
// changes hands.
func (s *Service) ReplaceUser(ctx context.Context, user models.User) {
	s.mu.Lock()
	if s.state.IsAuthenticated {
		if err := s.store.SaveUser(ctx, user); err != nil {
			s.logger.Warn(ctx, "failed to persist updated profile", "error", err)
		}
		u := user
		s.state.CurrentUser = &u
	}
	st := s.state
	s.mu.Unlock()
	s.notify(st)
}

// CurrentUser returns a copy of the cached profile, nil when anonymous.
// Mutating the returned value does not touch session state.
func (s *Service) CurrentUser() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CurrentUser.Clone()
}

// IsLoggedIn reports whether the session is authenticated. Pure read.
func (s *Service) IsLoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsAuthenticated
}

// Snapshot returns a copy of the current state, with the profile cloned so
// the caller cannot mutate session state through it.
func (s *Service) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.CurrentUser = st.CurrentUser.Clone()
	return st
}

// ClearError resets LastError.
func (s *Service) ClearError() {
	s.mu.Lock()
	s.state.LastError = ""
	st := s.state
	s.mu.Unlock()
	s.notify(st)
}

func (s *Service) begin() error {
	s.mu.Lock()
	defer func() {
		st := s.state
		s.mu.Unlock()
		s.notify(st)
	}()
	if s.inFlight {
		return ErrOperationInFlight
	}
	s.inFlight = true
	s.state.IsLoading = true
	s.state.LastError = ""
	return nil
}

func (s *Service) finish(errMsg string) {
	s.mu.Lock()
	s.inFlight = false
	s.state.IsLoading = false
	s.state.LastError = errMsg
	st := s.state
	s.mu.Unlock()
	s.notify(st)
}

func (s *Service) notify(st State) {
	s.mu.Lock()
	subs := make([]func(State), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	st.CurrentUser = st.CurrentUser.Clone()
	for _, fn := range subs {
		fn(st)
	}
}

// errorMessage extracts the normalized message from a transport fault, or
// falls back to the raw error text.
func errorMessage(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
