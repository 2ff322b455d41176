package users

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avolkov/taskdeck/internal/server/models"
)

func newUser(email string) *models.User {
	now := time.Now().UTC()
	return &models.User{
		ID:        uuid.New(),
		Email:     email,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestInMemory_CreateAndLookups(t *testing.T) {
	ctx := context.Background()
	r := NewInMemoryRepository()

	u := newUser("a@b.com")
	provider, oid := "google", "gid-1"
	u.OAuthProvider, u.OAuthID = &provider, &oid

	created, err := r.Create(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, u.ID, created.ID)

	byID, err := r.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", byID.Email)

	byEmail, err := r.GetByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	byOAuth, err := r.GetByOAuth(ctx, "google", "gid-1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byOAuth.ID)
}

func TestInMemory_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	r := NewInMemoryRepository()

	_, err := r.Create(ctx, newUser("a@b.com"))
	require.NoError(t, err)

	_, err = r.Create(ctx, newUser("a@b.com"))
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestInMemory_NotFound(t *testing.T) {
	ctx := context.Background()
	r := NewInMemoryRepository()

	_, err := r.GetByEmail(ctx, "missing@b.com")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Update(ctx, newUser("missing@b.com"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemory_UpdateIsolation(t *testing.T) {
	ctx := context.Background()
	r := NewInMemoryRepository()

	u := newUser("a@b.com")
	_, err := r.Create(ctx, u)
	require.NoError(t, err)

	provider := "github"
	u.OAuthProvider = &provider
	updated, err := r.Update(ctx, u)
	require.NoError(t, err)
	require.NotNil(t, updated.OAuthProvider)

	// mutating the caller's copy must not leak into the store
	*u.OAuthProvider = "mutated"
	stored, err := r.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "github", *stored.OAuthProvider)
}
