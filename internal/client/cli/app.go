// Package cli implements the interactive Taskdeck client: a small REPL over
// the session and OAuth services.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/avolkov/taskdeck/internal/client/api"
	"github.com/avolkov/taskdeck/internal/client/config"
	"github.com/avolkov/taskdeck/internal/client/oauth"
	"github.com/avolkov/taskdeck/internal/client/session"
	"github.com/avolkov/taskdeck/internal/client/storage"
	"github.com/avolkov/taskdeck/internal/logging"
)

// App wires storage, transport, session and the OAuth flow together behind
// the REPL.
type App struct {
	config  *config.Config
	store   *storage.SQLiteStore
	session *session.Service
	flow    *oauth.Flow
	reader  *bufio.Reader
	logger  logging.Logger
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	store, err := storage.Open(ctx, c.StoragePath)
	if err != nil {
		return nil, err
	}

	// The transport pulls the token from the store on every request, so a
	// login in this process is visible to the next call without rewiring.
	transport := api.NewHTTPClient(c.ServerURL,
		api.TokenSourceFunc(func(ctx context.Context) string {
			token, err := store.Credentials(ctx)
			if err != nil || token == nil {
				return ""
			}
			return token.AccessToken
		}),
		api.WithLogger(logger),
		api.WithTimeout(c.RequestTimeout),
	)

	sess := session.New(transport, store, logger)
	transport.SetAuthExpiredHook(sess.HandleAuthExpired)
	sess.OnNavigateToLogin(func() {
		printlnFn("You have been logged out. Use 'login' to sign in again.")
	})

	flow := oauth.New(transport, store, sess, logger, oauth.WithRedirect(func(url string) error {
		printlnFn("Open the following URL in your browser to continue:")
		printlnFn(url)
		return nil
	}))

	if err := sess.Initialize(ctx); err != nil {
		logger.Warn(ctx, "failed to restore session", "error", err)
	}

	return &App{
		config:  c,
		store:   store,
		session: sess,
		flow:    flow,
		reader:  bufio.NewReader(os.Stdin),
		logger:  logger,
	}, nil
}

// Run enters the REPL and blocks until the user exits or stdin closes.
func (a *App) Run(ctx context.Context) {
	defer a.store.Close()
	printlnFn("Welcome to Taskdeck CLI (type 'help' for commands)")
	runREPL(ctx, a, a.status, bufio.NewScanner(os.Stdin))
}

func (a *App) isLoggedIn() bool {
	return a.session.IsLoggedIn()
}

// status renders the prompt suffix: the signed-in email plus the last error,
// if any.
func (a *App) status() string {
	st := a.session.Snapshot()
	s := ""
	if st.CurrentUser != nil {
		s = st.CurrentUser.Email
	}
	if st.LastError != "" {
		if s != "" {
			s += " "
		}
		s += "[" + st.LastError + "]"
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}
