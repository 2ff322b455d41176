package storage

import (
	"context"
	"sync"

	"github.com/avolkov/taskdeck/internal/models"
)

// MemoryStore is an in-memory Store used by tests and by the session tests'
// fakes. It honors the same pair and single-use contracts as the SQLite
// implementation.
type MemoryStore struct {
	mu        sync.Mutex
	token     *models.Token
	user      *models.User
	handshake *Handshake
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) SaveCredentials(ctx context.Context, token models.Token, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, u := token, user
	m.token, m.user = &t, &u
	return nil
}

func (m *MemoryStore) Credentials(ctx context.Context) (*models.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == nil {
		return nil, nil
	}
	t := *m.token
	return &t, nil
}

func (m *MemoryStore) User(ctx context.Context) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil, nil
	}
	u := *m.user
	return &u, nil
}

func (m *MemoryStore) SaveUser(ctx context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == nil {
		return ErrCredentialPairIncomplete
	}
	u := user
	m.user = &u
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token, m.user, m.handshake = nil, nil, nil
	return nil
}

func (m *MemoryStore) SaveHandshake(ctx context.Context, hs Handshake) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := hs
	m.handshake = &h
	return nil
}

func (m *MemoryStore) TakeHandshake(ctx context.Context) (*Handshake, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hs := m.handshake
	m.handshake = nil
	return hs, nil
}

func (m *MemoryStore) ClearHandshake(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handshake = nil
	return nil
}
