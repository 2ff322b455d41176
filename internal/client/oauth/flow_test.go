package oauth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avolkov/taskdeck/internal/client/session"
	"github.com/avolkov/taskdeck/internal/client/storage"
	"github.com/avolkov/taskdeck/internal/models"
)

type fakeClient struct {
	authorizeResp *models.AuthorizeResponse
	authorizeErr  error

	callbackResp  *models.LoginResponse
	callbackErr   error
	callbackCalls int
	lastCallback  models.CallbackRequest

	linkUser *models.User
	linkErr  error
	lastLink models.LinkRequest

	unlinkUser *models.User
	unlinkErr  error

	providers *models.ProviderList
}

func (f *fakeClient) Register(context.Context, models.RegisterRequest) (*models.User, error) {
	panic("unexpected")
}

func (f *fakeClient) Login(context.Context, models.LoginRequest) (*models.LoginResponse, error) {
	panic("unexpected")
}

func (f *fakeClient) Me(context.Context) (*models.User, error) { panic("unexpected") }

func (f *fakeClient) Refresh(context.Context) (*models.Token, error) { panic("unexpected") }

func (f *fakeClient) Providers(context.Context) (*models.ProviderList, error) {
	return f.providers, nil
}

func (f *fakeClient) Authorize(_ context.Context, req models.AuthorizeRequest) (*models.AuthorizeResponse, error) {
	return f.authorizeResp, f.authorizeErr
}

func (f *fakeClient) Callback(_ context.Context, req models.CallbackRequest) (*models.LoginResponse, error) {
	f.callbackCalls++
	f.lastCallback = req
	return f.callbackResp, f.callbackErr
}

func (f *fakeClient) Link(_ context.Context, req models.LinkRequest) (*models.User, error) {
	f.lastLink = req
	return f.linkUser, f.linkErr
}

func (f *fakeClient) Unlink(_ context.Context, req models.UnlinkRequest) (*models.User, error) {
	return f.unlinkUser, f.unlinkErr
}

func loginResponse(email string) *models.LoginResponse {
	return &models.LoginResponse{
		Token: models.Token{AccessToken: "tok1", TokenType: "bearer", ExpiresIn: 1800},
		User:  models.User{Email: email, IsActive: true},
	}
}

func newFlow(t *testing.T, fake *fakeClient) (*Flow, *storage.MemoryStore, *session.Service) {
	t.Helper()
	store := storage.NewMemoryStore()
	sess := session.New(fake, store, nil)
	return New(fake, store, sess, nil), store, sess
}

func TestBeginLogin_SavesHandshakeAndRedirects(t *testing.T) {
	ctx := context.Background()
	fake := &fakeClient{authorizeResp: &models.AuthorizeResponse{
		AuthorizationURL: "https://provider.example/authorize?state=st1",
		State:            "st1",
	}}

	var redirected string
	store := storage.NewMemoryStore()
	sess := session.New(fake, store, nil)
	f := New(fake, store, sess, nil, WithRedirect(func(url string) error {
		redirected = url
		return nil
	}))

	require.NoError(t, f.BeginLogin(ctx, "google"))
	assert.Equal(t, "https://provider.example/authorize?state=st1", redirected)
	assert.Equal(t, StatusRedirected, f.Status())

	hs, err := store.TakeHandshake(ctx)
	require.NoError(t, err)
	require.NotNil(t, hs)
	assert.Equal(t, "st1", hs.CSRFState)
	assert.Equal(t, storage.IntentLogin, hs.Intent)
	assert.Equal(t, "google", hs.Provider)
}

func TestBeginLink_RequiresSession(t *testing.T) {
	f, _, _ := newFlow(t, &fakeClient{})
	err := f.BeginLink(context.Background(), "github")
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestHandleCallback_LoginEstablishesSession(t *testing.T) {
	ctx := context.Background()
	fake := &fakeClient{callbackResp: loginResponse("oauth@b.com")}
	f, store, sess := newFlow(t, fake)
	require.NoError(t, store.SaveHandshake(ctx, storage.Handshake{
		CSRFState: "st1", Intent: storage.IntentLogin, Provider: "google",
	}))

	err := f.HandleCallback(ctx, CallbackInput{Code: "code1", State: "st1"})
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, f.Status())
	assert.True(t, sess.IsLoggedIn())
	assert.Equal(t, "oauth@b.com", sess.CurrentUser().Email)
	assert.Equal(t, "google", fake.lastCallback.Provider)
	assert.Equal(t, "code1", fake.lastCallback.Code)

	token, err := store.Credentials(ctx)
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, "tok1", token.AccessToken)
}

func TestHandleCallback_StateMismatchFailsClosed(t *testing.T) {
	ctx := context.Background()
	fake := &fakeClient{callbackResp: loginResponse("oauth@b.com")}
	f, store, sess := newFlow(t, fake)
	require.NoError(t, store.SaveHandshake(ctx, storage.Handshake{
		CSRFState: "st1", Intent: storage.IntentLogin, Provider: "google",
	}))

	err := f.HandleCallback(ctx, CallbackInput{Code: "code1", State: "forged"})
	assert.ErrorIs(t, err, ErrStateMismatch)
	assert.Equal(t, StatusFailed, f.Status())
	assert.Zero(t, fake.callbackCalls, "no backend call after a failed CSRF check")
	assert.False(t, sess.IsLoggedIn())
}

func TestHandleCallback_HandshakeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	fake := &fakeClient{callbackResp: loginResponse("oauth@b.com")}
	f, store, _ := newFlow(t, fake)
	require.NoError(t, store.SaveHandshake(ctx, storage.Handshake{
		CSRFState: "st1", Intent: storage.IntentLogin, Provider: "google",
	}))

	require.NoError(t, f.HandleCallback(ctx, CallbackInput{Code: "code1", State: "st1"}))

	// replaying the exact same callback finds no handshake
	err := f.HandleCallback(ctx, CallbackInput{Code: "code1", State: "st1"})
	assert.ErrorIs(t, err, ErrNoPendingHandshake)
	assert.Equal(t, 1, fake.callbackCalls)
}

func TestHandleCallback_MissingParamsDiscardHandshake(t *testing.T) {
	ctx := context.Background()
	f, store, _ := newFlow(t, &fakeClient{})
	require.NoError(t, store.SaveHandshake(ctx, storage.Handshake{
		CSRFState: "st1", Intent: storage.IntentLogin, Provider: "google",
	}))

	err := f.HandleCallback(ctx, CallbackInput{State: "st1"})
	assert.ErrorIs(t, err, ErrCallbackInvalid)

	hs, err := store.TakeHandshake(ctx)
	require.NoError(t, err)
	assert.Nil(t, hs, "an invalid callback burns the handshake")
}

func TestHandleCallback_ProviderDenial(t *testing.T) {
	ctx := context.Background()
	f, store, _ := newFlow(t, &fakeClient{})
	require.NoError(t, store.SaveHandshake(ctx, storage.Handshake{
		CSRFState: "st1", Intent: storage.IntentLogin, Provider: "google",
	}))

	err := f.HandleCallback(ctx, CallbackInput{Code: "code1", State: "st1", ErrorParam: "access_denied"})
	assert.ErrorIs(t, err, ErrCallbackInvalid)
	assert.Equal(t, StatusFailed, f.Status())
}

func TestHandleCallback_NoHandshake(t *testing.T) {
	f, _, _ := newFlow(t, &fakeClient{})
	err := f.HandleCallback(context.Background(), CallbackInput{Code: "code1", State: "st1"})
	assert.ErrorIs(t, err, ErrNoPendingHandshake)
}

func TestHandleCallback_LinkReplacesProfile(t *testing.T) {
	ctx := context.Background()
	provider := "github"
	linked := models.User{Email: "a@b.com", IsActive: true, OAuthProvider: &provider}
	fake := &fakeClient{linkUser: &linked}
	f, store, sess := newFlow(t, fake)

	require.NoError(t, sess.AdoptSession(ctx, loginResponse("a@b.com")))
	require.NoError(t, store.SaveHandshake(ctx, storage.Handshake{
		CSRFState: "st2", Intent: storage.IntentLinkAccount, Provider: "github",
	}))

	require.NoError(t, f.HandleCallback(ctx, CallbackInput{Code: "code2", State: "st2"}))

	assert.Equal(t, "github", fake.lastLink.Provider)
	require.NotNil(t, sess.CurrentUser().OAuthProvider)
	assert.Equal(t, "github", *sess.CurrentUser().OAuthProvider)

	// the credential from the original login survives the link
	token, err := store.Credentials(ctx)
	require.NoError(t, err)
	require.NotNil(t, token)
}

func TestHandleCallback_LinkWithoutSessionFails(t *testing.T) {
	ctx := context.Background()
	f, store, _ := newFlow(t, &fakeClient{})
	require.NoError(t, store.SaveHandshake(ctx, storage.Handshake{
		CSRFState: "st2", Intent: storage.IntentLinkAccount, Provider: "github",
	}))

	err := f.HandleCallback(ctx, CallbackInput{Code: "code2", State: "st2"})
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestUnlink_ReplacesProfile(t *testing.T) {
	ctx := context.Background()
	unlinked := models.User{Email: "a@b.com", IsActive: true}
	fake := &fakeClient{unlinkUser: &unlinked}
	f, _, sess := newFlow(t, fake)
	require.NoError(t, sess.AdoptSession(ctx, loginResponse("a@b.com")))

	require.NoError(t, f.Unlink(ctx, "github"))
	assert.Nil(t, sess.CurrentUser().OAuthProvider)
}

func TestUnlink_RequiresSession(t *testing.T) {
	f, _, _ := newFlow(t, &fakeClient{})
	err := f.Unlink(context.Background(), "github")
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestProviders_PassesThrough(t *testing.T) {
	fake := &fakeClient{providers: &models.ProviderList{
		OAuth2Enabled: true,
		Providers:     []models.ProviderInfo{{Name: "google", DisplayName: "Google", Enabled: true}},
	}}
	f, _, _ := newFlow(t, fake)

	list, err := f.Providers(context.Background())
	require.NoError(t, err)
	assert.True(t, list.OAuth2Enabled)
	require.Len(t, list.Providers, 1)
	assert.Equal(t, "google", list.Providers[0].Name)
}
