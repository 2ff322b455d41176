// Package oauthstate keeps the server-side half of an OAuth2 handshake: the
// state value issued by /oauth/authorize, held until the callback consumes
// it. Entries expire on their own so abandoned flows do not pile up.
package oauthstate

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// State is what the authorize step records about a pending handshake.
// UserID is set for link flows, nil for logins.
type State struct {
	Provider    string     `json:"provider"`
	RedirectURI string     `json:"redirect_uri,omitempty"`
	UserID      *uuid.UUID `json:"user_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Store persists pending handshakes keyed by the state value.
//
// Take returns the state and removes it in the same operation; a second Take
// of the same key returns nil. A nil result with nil error means the key was
// never stored or already consumed.
type Store interface {
	Save(ctx context.Context, key string, st State, ttl time.Duration) error
	Take(ctx context.Context, key string) (*State, error)
}
