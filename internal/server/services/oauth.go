package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avolkov/taskdeck/internal/logging"
	api "github.com/avolkov/taskdeck/internal/models"
	"github.com/avolkov/taskdeck/internal/server/auth"
	"github.com/avolkov/taskdeck/internal/server/models"
	"github.com/avolkov/taskdeck/internal/server/oauthstate"
	"github.com/avolkov/taskdeck/internal/server/providers"
	"github.com/avolkov/taskdeck/internal/server/repositories/users"
)

var (
	// ErrInvalidState means the callback's state was never issued, expired,
	// or was already consumed.
	ErrInvalidState = errors.New("invalid or expired oauth state")

	// ErrAlreadyLinked means the provider identity belongs to another account.
	ErrAlreadyLinked = errors.New("oauth account already linked to another user")

	// ErrNotLinked means an unlink was requested for a provider the account
	// does not have.
	ErrNotLinked = errors.New("oauth provider not linked to this account")

	// ErrUnlinkWithoutPassword refuses to remove the only sign-in method of
	// an OAuth-only account.
	ErrUnlinkWithoutPassword = errors.New("cannot unlink oauth account without setting a password first")

	// ErrNoEmail means the provider did not disclose an email address, which
	// this backend requires as the account key.
	ErrNoEmail = errors.New("oauth provider did not supply an email address")
)

const defaultStateTTL = 10 * time.Minute

// OAuthService drives the server half of the authorization-code flow.
type OAuthService interface {
	Providers(ctx context.Context) *api.ProviderList
	Authorize(ctx context.Context, userID *uuid.UUID, req api.AuthorizeRequest) (*api.AuthorizeResponse, error)
	Callback(ctx context.Context, req api.CallbackRequest) (*models.User, *api.Token, error)
	Link(ctx context.Context, userID uuid.UUID, req api.LinkRequest) (*models.User, error)
	Unlink(ctx context.Context, userID uuid.UUID, req api.UnlinkRequest) (*models.User, error)
}

type oauthService struct {
	repo     users.Repository
	states   oauthstate.Store
	registry *providers.Registry
	client   providers.Client
	tokens   *auth.Manager
	logger   logging.Logger
	stateTTL time.Duration
}

func NewOAuthService(
	repo users.Repository,
	states oauthstate.Store,
	registry *providers.Registry,
	client providers.Client,
	tokens *auth.Manager,
	logger logging.Logger,
) OAuthService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &oauthService{
		repo:     repo,
		states:   states,
		registry: registry,
		client:   client,
		tokens:   tokens,
		logger:   logger,
		stateTTL: defaultStateTTL,
	}
}

func (s *oauthService) Providers(ctx context.Context) *api.ProviderList {
	list := &api.ProviderList{}
	for _, name := range s.registry.Names() {
		enabled := s.registry.Enabled(name)
		list.Providers = append(list.Providers, api.ProviderInfo{
			Name:        name,
			DisplayName: s.registry.DisplayName(name),
			Enabled:     enabled,
		})
		if enabled {
			list.OAuth2Enabled = true
		}
	}
	return list
}

// Authorize issues a fresh CSRF state, records the pending handshake and
// returns the provider URL to redirect the user to. userID is non-nil for
// link flows and binds the handshake to that account.
func (s *oauthService) Authorize(ctx context.Context, userID *uuid.UUID, req api.AuthorizeRequest) (*api.AuthorizeResponse, error) {
	state, err := newState()
	if err != nil {
		return nil, err
	}

	authURL, err := s.registry.AuthorizationURL(req.Provider, state, req.RedirectURI)
	if err != nil {
		return nil, err
	}

	st := oauthstate.State{
		Provider:    req.Provider,
		RedirectURI: req.RedirectURI,
		UserID:      userID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.states.Save(ctx, state, st, s.stateTTL); err != nil {
		return nil, fmt.Errorf("save oauth state: %w", err)
	}

	s.logger.Info(ctx, "oauth authorization issued", "provider", req.Provider, "link", userID != nil)
	return &api.AuthorizeResponse{AuthorizationURL: authURL, State: state}, nil
}

// Callback consumes the state and signs the user in, creating or linking the
// account as needed: match by provider identity first, then by email, then
// create.
func (s *oauthService) Callback(ctx context.Context, req api.CallbackRequest) (*models.User, *api.Token, error) {
	info, err := s.consume(ctx, req.Provider, req.State, req.Code, nil)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.repo.GetByOAuth(ctx, req.Provider, info.ID)
	if errors.Is(err, users.ErrNotFound) && info.Email != "" {
		user, err = s.linkByEmail(ctx, req.Provider, info)
	}
	if errors.Is(err, users.ErrNotFound) {
		user, err = s.createFromProvider(ctx, req.Provider, info)
	}
	if err != nil {
		return nil, nil, err
	}

	signed, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, nil, err
	}
	token := &api.Token{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.tokens.Validity().Seconds()),
	}

	s.logger.Info(ctx, "oauth login", "provider", req.Provider, "email", user.Email)
	return user, token, nil
}

// Link attaches a provider identity to the authenticated account. The
// handshake must have been issued for the same account.
func (s *oauthService) Link(ctx context.Context, userID uuid.UUID, req api.LinkRequest) (*models.User, error) {
	info, err := s.consume(ctx, req.Provider, req.State, req.Code, &userID)
	if err != nil {
		return nil, err
	}

	if existing, err := s.repo.GetByOAuth(ctx, req.Provider, info.ID); err == nil && existing.ID != userID {
		return nil, ErrAlreadyLinked
	} else if err != nil && !errors.Is(err, users.ErrNotFound) {
		return nil, err
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	provider, oid := req.Provider, info.ID
	user.OAuthProvider = &provider
	user.OAuthID = &oid
	if info.AvatarURL != "" {
		avatar := info.AvatarURL
		user.AvatarURL = &avatar
	}
	user.UpdatedAt = time.Now().UTC()

	return s.repo.Update(ctx, user)
}

// Unlink detaches the provider. An account whose only sign-in method is the
// provider keeps it until a password is set.
func (s *oauthService) Unlink(ctx context.Context, userID uuid.UUID, req api.UnlinkRequest) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.HasOAuth() || *user.OAuthProvider != req.Provider {
		return nil, ErrNotLinked
	}
	if !user.HasPassword() {
		return nil, ErrUnlinkWithoutPassword
	}

	user.OAuthProvider = nil
	user.OAuthID = nil
	user.UpdatedAt = time.Now().UTC()

	return s.repo.Update(ctx, user)
}

// consume validates and burns the state, then completes the provider round
// trip. wantUser, when set, requires a handshake bound to that account.
func (s *oauthService) consume(ctx context.Context, provider, state, code string, wantUser *uuid.UUID) (*providers.UserInfo, error) {
	st, err := s.states.Take(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("load oauth state: %w", err)
	}
	if st == nil || st.Provider != provider {
		return nil, ErrInvalidState
	}
	if wantUser != nil && (st.UserID == nil || *st.UserID != *wantUser) {
		return nil, ErrInvalidState
	}

	accessToken, err := s.client.ExchangeCode(ctx, provider, code, st.RedirectURI)
	if err != nil {
		return nil, err
	}
	return s.client.FetchUserInfo(ctx, provider, accessToken)
}

// linkByEmail attaches the provider identity to an existing account that
// registered with the same address.
func (s *oauthService) linkByEmail(ctx context.Context, provider string, info *providers.UserInfo) (*models.User, error) {
	user, err := s.repo.GetByEmail(ctx, info.Email)
	if err != nil {
		return nil, err
	}

	p, oid := provider, info.ID
	user.OAuthProvider = &p
	user.OAuthID = &oid
	if info.AvatarURL != "" {
		avatar := info.AvatarURL
		user.AvatarURL = &avatar
	}
	user.UpdatedAt = time.Now().UTC()
	return s.repo.Update(ctx, user)
}

func (s *oauthService) createFromProvider(ctx context.Context, provider string, info *providers.UserInfo) (*models.User, error) {
	if info.Email == "" {
		return nil, ErrNoEmail
	}

	now := time.Now().UTC()
	p, oid := provider, info.ID
	user := &models.User{
		ID:            uuid.New(),
		Email:         info.Email,
		IsActive:      true,
		OAuthProvider: &p,
		OAuthID:       &oid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if info.Name != "" {
		name := info.Name
		user.FullName = &name
	}
	if info.AvatarURL != "" {
		avatar := info.AvatarURL
		user.AvatarURL = &avatar
	}
	return s.repo.Create(ctx, user)
}

// newState mints a 32-byte URL-safe random state value.
func newState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
