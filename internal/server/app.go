// Package server initializes and runs the backend application. It picks the
// storage backends from the configuration, wires the services into the HTTP
// API and handles graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/avolkov/taskdeck/internal/logging"
	"github.com/avolkov/taskdeck/internal/server/auth"
	"github.com/avolkov/taskdeck/internal/server/config"
	"github.com/avolkov/taskdeck/internal/server/httpapi"
	"github.com/avolkov/taskdeck/internal/server/oauthstate"
	"github.com/avolkov/taskdeck/internal/server/providers"
	"github.com/avolkov/taskdeck/internal/server/repositories/users"
	"github.com/avolkov/taskdeck/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	server *httpapi.Server
	pool   *pgxpool.Pool
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	repo, pool, err := newUserRepository(ctx, c, logger)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	states := newStateStore(ctx, c, logger)

	registry := providers.NewRegistry(map[string]providers.Credentials{
		providers.Google: {
			ClientID:     c.Google.ClientID,
			ClientSecret: c.Google.ClientSecret,
			RedirectURI:  c.OAuthRedirectURI,
		},
		providers.GitHub: {
			ClientID:     c.GitHub.ClientID,
			ClientSecret: c.GitHub.ClientSecret,
			RedirectURI:  c.OAuthRedirectURI,
		},
		providers.Microsoft: {
			ClientID:     c.Microsoft.ClientID,
			ClientSecret: c.Microsoft.ClientSecret,
			RedirectURI:  c.OAuthRedirectURI,
		},
	})
	providerClient := providers.NewHTTPClient(registry, nil)

	tokens := auth.NewManager([]byte(c.SecretKey), c.AccessTokenValidityDuration)

	authSvc := services.NewAuthService(repo, tokens)
	oauthSvc := services.NewOAuthService(repo, states, registry, providerClient, tokens, logger)

	srv := httpapi.NewServer(authSvc, oauthSvc, tokens, logger, httpapi.Options{
		Addr: c.EndpointAddr,
	})

	return &App{config: c, logger: logger, server: srv, pool: pool}, nil
}

// newUserRepository returns the PostgreSQL repository when a DSN is
// configured, and the in-memory one otherwise. The pool is returned so the
// app can close it on shutdown.
func newUserRepository(ctx context.Context, c *config.Config, logger logging.Logger) (users.Repository, *pgxpool.Pool, error) {
	if c.DatabaseDSN == "" {
		logger.Warn(ctx, "no database DSN configured, using in-memory user repository")
		return users.NewInMemoryRepository(), nil, nil
	}

	pool, err := users.NewPool(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := users.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return users.NewPostgresRepository(pool), pool, nil
}

func newStateStore(ctx context.Context, c *config.Config, logger logging.Logger) oauthstate.Store {
	if c.RedisAddr == "" {
		logger.Warn(ctx, "no redis address configured, using in-memory oauth state store")
		return oauthstate.NewMemoryStore()
	}
	client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
	return oauthstate.NewRedisStore(client)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Start(); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, err.Error())
	}

	wg.Wait()

	if app.pool != nil {
		app.pool.Close()
	}
}
