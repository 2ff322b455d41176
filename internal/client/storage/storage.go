// Package storage implements the client's credential store: the persisted
// token+user pair that survives restarts, and the transient OAuth handshake
// state that only has to survive the round trip through the provider.
package storage

import (
	"context"
	"errors"

	"github.com/avolkov/taskdeck/internal/models"
)

// Intent records why an OAuth handshake was started, so the callback knows
// whether to establish a session or to link a provider to the current one.
type Intent string

const (
	IntentLogin       Intent = "login"
	IntentLinkAccount Intent = "link-account"
)

// Handshake is the transient state of one OAuth authorization round trip.
// It is written when the flow starts and consumed exactly once at callback
// time.
type Handshake struct {
	CSRFState string `json:"csrf_state"`
	Intent    Intent `json:"intent"`
	Provider  string `json:"provider"`
}

// ErrCredentialPairIncomplete is returned by SaveUser when no credential is
// stored: the store never holds a user without a token or vice versa.
var ErrCredentialPairIncomplete = errors.New("credential pair incomplete")

// Store persists client-side auth state.
//
// Contract:
//   - SaveCredentials writes token and user atomically; after a successful
//     call the store holds both or (on failure) its previous content.
//   - Credentials/User return nil without error when nothing is stored.
//   - SaveUser replaces only the cached profile and fails with
//     ErrCredentialPairIncomplete when no token is present.
//   - TakeHandshake returns the pending handshake and deletes it in the same
//     operation; a second call returns nil.
//   - Clear removes the credential pair and any pending handshake.
type Store interface {
	SaveCredentials(ctx context.Context, token models.Token, user models.User) error
	Credentials(ctx context.Context) (*models.Token, error)
	User(ctx context.Context) (*models.User, error)
	SaveUser(ctx context.Context, user models.User) error
	Clear(ctx context.Context) error

	SaveHandshake(ctx context.Context, hs Handshake) error
	TakeHandshake(ctx context.Context) (*Handshake, error)
	ClearHandshake(ctx context.Context) error
}
