package users

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/avolkov/taskdeck/internal/server/models"
)

// InMemoryRepository is a map-backed Repository used by tests and by the
// server when no database DSN is configured.
type InMemoryRepository struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]*models.User
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{byID: make(map[uuid.UUID]*models.User)}
}

// clone deep-copies a user so pointer fields never alias between the store
// and its callers.
func clone(u *models.User) *models.User {
	cp := *u
	cp.HashedPassword = cloneStr(u.HashedPassword)
	cp.FullName = cloneStr(u.FullName)
	cp.OAuthProvider = cloneStr(u.OAuthProvider)
	cp.OAuthID = cloneStr(u.OAuthID)
	cp.AvatarURL = cloneStr(u.AvatarURL)
	return &cp
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func (r *InMemoryRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == user.Email {
			return nil, ErrEmailExists
		}
	}
	r.byID[user.ID] = clone(user)
	return clone(user), nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(u), nil
}

func (r *InMemoryRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.byID {
		if u.Email == email {
			return clone(u), nil
		}
	}
	return nil, ErrNotFound
}

func (r *InMemoryRepository) GetByOAuth(_ context.Context, provider, oauthID string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.byID {
		if u.OAuthProvider != nil && *u.OAuthProvider == provider &&
			u.OAuthID != nil && *u.OAuthID == oauthID {
			return clone(u), nil
		}
	}
	return nil, ErrNotFound
}

func (r *InMemoryRepository) Update(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[user.ID]; !ok {
		return nil, ErrNotFound
	}
	for id, u := range r.byID {
		if id != user.ID && u.Email == user.Email {
			return nil, ErrEmailExists
		}
	}
	r.byID[user.ID] = clone(user)
	return clone(user), nil
}
