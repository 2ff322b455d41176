package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	api "github.com/avolkov/taskdeck/internal/models"
	"github.com/avolkov/taskdeck/internal/server/auth"
	"github.com/avolkov/taskdeck/internal/server/models"
	"github.com/avolkov/taskdeck/internal/server/oauthstate"
	"github.com/avolkov/taskdeck/internal/server/providers"
	"github.com/avolkov/taskdeck/internal/server/repositories/users"
)

// fakeProviderClient returns canned provider responses and records the code
// it was asked to exchange.
type fakeProviderClient struct {
	info     providers.UserInfo
	lastCode string
}

func (f *fakeProviderClient) ExchangeCode(_ context.Context, _, code, _ string) (string, error) {
	f.lastCode = code
	return "provider-token", nil
}

func (f *fakeProviderClient) FetchUserInfo(context.Context, string, string) (*providers.UserInfo, error) {
	info := f.info
	return &info, nil
}

type oauthFixture struct {
	svc    OAuthService
	repo   *users.InMemoryRepository
	states *oauthstate.MemoryStore
	client *fakeProviderClient
	tokens *auth.Manager
}

func newOAuthFixture(t *testing.T, info providers.UserInfo) *oauthFixture {
	t.Helper()
	repo := users.NewInMemoryRepository()
	states := oauthstate.NewMemoryStore()
	registry := providers.NewRegistry(map[string]providers.Credentials{
		providers.Google: {ClientID: "cid", ClientSecret: "cs", RedirectURI: "http://app/callback"},
		providers.GitHub: {ClientID: "cid2", ClientSecret: "cs2", RedirectURI: "http://app/callback"},
	})
	client := &fakeProviderClient{info: info}
	tokens := auth.NewManager([]byte("test-secret"), 30*time.Minute)
	svc := NewOAuthService(repo, states, registry, client, tokens, nil)
	return &oauthFixture{svc: svc, repo: repo, states: states, client: client, tokens: tokens}
}

type serverUser = models.User

func mustCreate(t *testing.T, repo *users.InMemoryRepository, u *models.User) *models.User {
	t.Helper()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.IsActive = true
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	created, err := repo.Create(context.Background(), u)
	require.NoError(t, err)
	return created
}

func googleInfo() providers.UserInfo {
	return providers.UserInfo{ID: "gid-1", Email: "a@b.com", Name: "Ada", AvatarURL: "http://img/a.png"}
}

func TestProviders_ListsConfigured(t *testing.T) {
	f := newOAuthFixture(t, googleInfo())

	list := f.svc.Providers(context.Background())
	assert.True(t, list.OAuth2Enabled)
	require.Len(t, list.Providers, 3)

	byName := map[string]api.ProviderInfo{}
	for _, p := range list.Providers {
		byName[p.Name] = p
	}
	assert.True(t, byName["google"].Enabled)
	assert.True(t, byName["github"].Enabled)
	assert.False(t, byName["microsoft"].Enabled)
	assert.Equal(t, "Google", byName["google"].DisplayName)
}

func TestAuthorize_IssuesStateAndURL(t *testing.T) {
	ctx := context.Background()
	f := newOAuthFixture(t, googleInfo())

	resp, err := f.svc.Authorize(ctx, nil, api.AuthorizeRequest{Provider: "google"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.State)
	assert.Contains(t, resp.AuthorizationURL, "accounts.google.com")
	assert.Contains(t, resp.AuthorizationURL, resp.State)

	st, err := f.states.Take(ctx, resp.State)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, "google", st.Provider)
	assert.Nil(t, st.UserID)
}

func TestAuthorize_UnconfiguredProvider(t *testing.T) {
	f := newOAuthFixture(t, googleInfo())
	_, err := f.svc.Authorize(context.Background(), nil, api.AuthorizeRequest{Provider: "microsoft"})
	assert.Error(t, err)
}

func TestCallback_CreatesNewUser(t *testing.T) {
	ctx := context.Background()
	f := newOAuthFixture(t, googleInfo())

	resp, err := f.svc.Authorize(ctx, nil, api.AuthorizeRequest{Provider: "google"})
	require.NoError(t, err)

	user, token, err := f.svc.Callback(ctx, api.CallbackRequest{
		Code: "code1", State: resp.State, Provider: "google",
	})
	require.NoError(t, err)

	assert.Equal(t, "a@b.com", user.Email)
	require.NotNil(t, user.OAuthProvider)
	assert.Equal(t, "google", *user.OAuthProvider)
	require.NotNil(t, user.OAuthID)
	assert.Equal(t, "gid-1", *user.OAuthID)
	assert.Equal(t, "code1", f.client.lastCode)

	gotID, err := f.tokens.Validate(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, gotID)
}

func TestCallback_LinksExistingByEmail(t *testing.T) {
	ctx := context.Background()
	f := newOAuthFixture(t, googleInfo())

	hash := "bcrypt-hash"
	existing := &serverUser{Email: "a@b.com", HashedPassword: &hash}
	created := mustCreate(t, f.repo, existing)

	resp, err := f.svc.Authorize(ctx, nil, api.AuthorizeRequest{Provider: "google"})
	require.NoError(t, err)

	user, _, err := f.svc.Callback(ctx, api.CallbackRequest{Code: "code1", State: resp.State, Provider: "google"})
	require.NoError(t, err)

	assert.Equal(t, created.ID, user.ID, "must attach to the existing account, not create a new one")
	require.NotNil(t, user.OAuthID)
	assert.Equal(t, "gid-1", *user.OAuthID)
}

func TestCallback_StateIsSingleUse(t *testing.T) {
	ctx := context.Background()
	f := newOAuthFixture(t, googleInfo())

	resp, err := f.svc.Authorize(ctx, nil, api.AuthorizeRequest{Provider: "google"})
	require.NoError(t, err)

	_, _, err = f.svc.Callback(ctx, api.CallbackRequest{Code: "code1", State: resp.State, Provider: "google"})
	require.NoError(t, err)

	_, _, err = f.svc.Callback(ctx, api.CallbackRequest{Code: "code1", State: resp.State, Provider: "google"})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCallback_UnknownOrMismatchedState(t *testing.T) {
	ctx := context.Background()
	f := newOAuthFixture(t, googleInfo())

	_, _, err := f.svc.Callback(ctx, api.CallbackRequest{Code: "code1", State: "forged", Provider: "google"})
	assert.ErrorIs(t, err, ErrInvalidState)

	// state issued for another provider must not pass
	resp, err := f.svc.Authorize(ctx, nil, api.AuthorizeRequest{Provider: "github"})
	require.NoError(t, err)
	_, _, err = f.svc.Callback(ctx, api.CallbackRequest{Code: "code1", State: resp.State, Provider: "google"})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestLink_AttachesProvider(t *testing.T) {
	ctx := context.Background()
	f := newOAuthFixture(t, googleInfo())

	hash := "bcrypt-hash"
	account := mustCreate(t, f.repo, &serverUser{Email: "a@b.com", HashedPassword: &hash})

	resp, err := f.svc.Authorize(ctx, &account.ID, api.AuthorizeRequest{Provider: "google"})
	require.NoError(t, err)

	user, err := f.svc.Link(ctx, account.ID, api.LinkRequest{Provider: "google", Code: "code1", State: resp.State})
	require.NoError(t, err)
	require.NotNil(t, user.OAuthProvider)
	assert.Equal(t, "google", *user.OAuthProvider)
}

func TestLink_RejectsForeignHandshake(t *testing.T) {
	ctx := context.Background()
	f := newOAuthFixture(t, googleInfo())

	hash := "bcrypt-hash"
	account := mustCreate(t, f.repo, &serverUser{Email: "a@b.com", HashedPassword: &hash})

	// handshake issued as a login flow, not bound to the account
	resp, err := f.svc.Authorize(ctx, nil, api.AuthorizeRequest{Provider: "google"})
	require.NoError(t, err)

	_, err = f.svc.Link(ctx, account.ID, api.LinkRequest{Provider: "google", Code: "code1", State: resp.State})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestLink_RejectsIdentityOwnedByOther(t *testing.T) {
	ctx := context.Background()
	f := newOAuthFixture(t, googleInfo())

	p, oid := "google", "gid-1"
	mustCreate(t, f.repo, &serverUser{Email: "owner@b.com", OAuthProvider: &p, OAuthID: &oid})

	hash := "bcrypt-hash"
	account := mustCreate(t, f.repo, &serverUser{Email: "a@b.com", HashedPassword: &hash})

	resp, err := f.svc.Authorize(ctx, &account.ID, api.AuthorizeRequest{Provider: "google"})
	require.NoError(t, err)

	_, err = f.svc.Link(ctx, account.ID, api.LinkRequest{Provider: "google", Code: "code1", State: resp.State})
	assert.ErrorIs(t, err, ErrAlreadyLinked)
}

func TestUnlink(t *testing.T) {
	ctx := context.Background()
	f := newOAuthFixture(t, googleInfo())

	hash := "bcrypt-hash"
	p, oid := "google", "gid-1"

	t.Run("success with password set", func(t *testing.T) {
		account := mustCreate(t, f.repo, &serverUser{
			Email: "a@b.com", HashedPassword: &hash, OAuthProvider: &p, OAuthID: &oid,
		})

		user, err := f.svc.Unlink(ctx, account.ID, api.UnlinkRequest{Provider: "google"})
		require.NoError(t, err)
		assert.Nil(t, user.OAuthProvider)
		assert.Nil(t, user.OAuthID)
	})

	t.Run("refused without password", func(t *testing.T) {
		account := mustCreate(t, f.repo, &serverUser{
			Email: "only-oauth@b.com", OAuthProvider: &p, OAuthID: &oid,
		})

		_, err := f.svc.Unlink(ctx, account.ID, api.UnlinkRequest{Provider: "google"})
		assert.ErrorIs(t, err, ErrUnlinkWithoutPassword)
	})

	t.Run("refused when not linked", func(t *testing.T) {
		account := mustCreate(t, f.repo, &serverUser{Email: "plain@b.com", HashedPassword: &hash})

		_, err := f.svc.Unlink(ctx, account.ID, api.UnlinkRequest{Provider: "google"})
		assert.ErrorIs(t, err, ErrNotLinked)
	})
}
