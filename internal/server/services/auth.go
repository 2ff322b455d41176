// Package services implements the business logic behind the REST handlers.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	api "github.com/avolkov/taskdeck/internal/models"
	"github.com/avolkov/taskdeck/internal/server/auth"
	"github.com/avolkov/taskdeck/internal/server/models"
	"github.com/avolkov/taskdeck/internal/server/password"
	"github.com/avolkov/taskdeck/internal/server/repositories/users"
)

// ErrInvalidCredentials is returned on a failed password login. It stays
// deliberately vague: the handler maps it to a single message regardless of
// whether the email or the password was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrIncorrectPassword is returned when a password change presents a wrong
// current password.
var ErrIncorrectPassword = errors.New("current password is incorrect")

// AuthService covers password registration, login, token refresh and
// password changes.
type AuthService interface {
	Register(ctx context.Context, req api.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, req api.LoginRequest) (*models.User, *api.Token, error)
	Refresh(ctx context.Context, userID uuid.UUID) (*api.Token, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, req api.PasswordChangeRequest) error
}

type authService struct {
	repo   users.Repository
	tokens *auth.Manager
}

func NewAuthService(repo users.Repository, tokens *auth.Manager) AuthService {
	return &authService{repo: repo, tokens: tokens}
}

func (s *authService) Register(ctx context.Context, req api.RegisterRequest) (*models.User, error) {
	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:             uuid.New(),
		Email:          req.Email,
		HashedPassword: &hash,
		FullName:       req.FullName,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return s.repo.Create(ctx, user)
}

func (s *authService) Login(ctx context.Context, req api.LoginRequest) (*models.User, *api.Token, error) {
	user, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if !user.IsActive || !user.HasPassword() || !password.Verify(*user.HashedPassword, req.Password) {
		return nil, nil, ErrInvalidCredentials
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, token, nil
}

func (s *authService) Refresh(ctx context.Context, userID uuid.UUID) (*api.Token, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	return s.issueToken(user.ID)
}

func (s *authService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.repo.GetByID(ctx, userID)
}

// ChangePassword verifies the current password and replaces it. An account
// without a password (OAuth-only sign-up) sets its first one without a
// current-password check; that is also what makes such an account eligible
// to unlink its provider later.
func (s *authService) ChangePassword(ctx context.Context, userID uuid.UUID, req api.PasswordChangeRequest) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.HasPassword() && !password.Verify(*user.HashedPassword, req.CurrentPassword) {
		return ErrIncorrectPassword
	}

	hash, err := password.Hash(req.NewPassword)
	if err != nil {
		return err
	}
	user.HashedPassword = &hash
	user.UpdatedAt = time.Now().UTC()

	_, err = s.repo.Update(ctx, user)
	return err
}

func (s *authService) issueToken(userID uuid.UUID) (*api.Token, error) {
	signed, err := s.tokens.Generate(userID)
	if err != nil {
		return nil, err
	}
	return &api.Token{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.tokens.Validity().Seconds()),
	}, nil
}
