// Package users persists accounts.
package users

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/avolkov/taskdeck/internal/server/models"
)

var (
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("email already registered")
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByOAuth(ctx context.Context, provider, oauthID string) (*models.User, error)
	Update(ctx context.Context, user *models.User) (*models.User, error)
}
