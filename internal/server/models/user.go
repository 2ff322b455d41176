// Package models holds the server-side entities backing the REST surface.
package models

import (
	"time"

	"github.com/google/uuid"

	api "github.com/avolkov/taskdeck/internal/models"
)

// User is the persisted account row. HashedPassword is nil for accounts
// created through an OAuth provider that never set a password.
type User struct {
	ID             uuid.UUID
	Email          string
	HashedPassword *string
	FullName       *string
	IsActive       bool
	IsSuperuser    bool
	OAuthProvider  *string
	OAuthID        *string
	AvatarURL      *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasPassword reports whether the account can sign in with a password.
func (u *User) HasPassword() bool {
	return u.HashedPassword != nil && *u.HashedPassword != ""
}

// HasOAuth reports whether an OAuth provider is linked.
func (u *User) HasOAuth() bool {
	return u.OAuthProvider != nil && *u.OAuthProvider != ""
}

// ToAPI strips the credential fields and returns the wire profile.
func (u *User) ToAPI() api.User {
	return api.User{
		ID:            u.ID,
		Email:         u.Email,
		FullName:      u.FullName,
		IsActive:      u.IsActive,
		IsSuperuser:   u.IsSuperuser,
		OAuthProvider: u.OAuthProvider,
		OAuthID:       u.OAuthID,
		AvatarURL:     u.AvatarURL,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}
