// Package api implements the client's HTTP transport for the /api/v1
// surface, together with the two pipeline stages every request passes
// through: the request authorizer (bearer attachment) and the response fault
// interceptor (status-to-message normalization, forced logout on 401).
package api

import (
	"context"

	"github.com/avolkov/taskdeck/internal/models"
)

// Client is the typed API surface consumed by the session and OAuth
// services. All methods honor context cancellation and return *Error for any
// backend or transport fault.
type Client interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	Me(ctx context.Context) (*models.User, error)
	Refresh(ctx context.Context) (*models.Token, error)

	Providers(ctx context.Context) (*models.ProviderList, error)
	Authorize(ctx context.Context, req models.AuthorizeRequest) (*models.AuthorizeResponse, error)
	Callback(ctx context.Context, req models.CallbackRequest) (*models.LoginResponse, error)
	Link(ctx context.Context, req models.LinkRequest) (*models.User, error)
	Unlink(ctx context.Context, req models.UnlinkRequest) (*models.User, error)
}
