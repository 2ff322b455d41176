// Package models holds the wire types shared by the Taskdeck client and
// server: the user profile, token payloads, and the auth/OAuth request and
// response bodies of the /api/v1 surface.
package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the profile returned by the backend. Optional fields are pointers
// so that null survives a store-and-reload round trip unchanged.
type User struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	FullName      *string   `json:"full_name"`
	IsActive      bool      `json:"is_active"`
	IsSuperuser   bool      `json:"is_superuser"`
	OAuthProvider *string   `json:"oauth_provider"`
	OAuthID       *string   `json:"oauth_id"`
	AvatarURL     *string   `json:"avatar_url"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Clone returns a deep copy, so callers can hand the profile out without
// sharing the optional-field pointers.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.FullName = cloneStr(u.FullName)
	c.OAuthProvider = cloneStr(u.OAuthProvider)
	c.OAuthID = cloneStr(u.OAuthID)
	c.AvatarURL = cloneStr(u.AvatarURL)
	return &c
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName *string `json:"full_name,omitempty"`
}

// PasswordChangeRequest is the body of PUT /users/me/password. An account
// that signed up through an OAuth provider and never had a password sets its
// first one here; CurrentPassword is ignored in that case.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
