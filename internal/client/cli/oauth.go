package cli

import (
	"context"
	"errors"
	"net/url"
	"os"

	"github.com/avolkov/taskdeck/internal/client/oauth"
)

// Providers lists the OAuth providers the backend has configured.
func (a *App) Providers(ctx context.Context) error {
	list, err := a.flow.Providers(ctx)
	if err != nil {
		printlnFn(errorLine(err))
		return err
	}

	if !list.OAuth2Enabled || len(list.Providers) == 0 {
		printlnFn("OAuth sign-in is not available.")
		return nil
	}
	printlnFn("Available providers:")
	for _, p := range list.Providers {
		line := "  " + p.Name + " (" + p.DisplayName + ")"
		if !p.Enabled {
			line += " [disabled]"
		}
		printlnFn(line)
	}
	return nil
}

// OAuthLogin starts a provider sign-in: the flow prints the authorization
// URL and the user finishes with the 'callback' command.
func (a *App) OAuthLogin(ctx context.Context, provider string) error {
	if err := a.flow.BeginLogin(ctx, provider); err != nil {
		printlnFn(errorLine(err))
		return err
	}
	printlnFn("After authorizing, paste the redirect URL with the 'callback' command.")
	return nil
}

// OAuthLink starts attaching a provider to the signed-in account.
func (a *App) OAuthLink(ctx context.Context, provider string) error {
	if err := a.flow.BeginLink(ctx, provider); err != nil {
		printlnFn(errorLine(err))
		return err
	}
	printlnFn("After authorizing, paste the redirect URL with the 'callback' command.")
	return nil
}

// OAuthCallback reads the pasted redirect URL, extracts the code/state/error
// parameters and completes the pending flow.
func (a *App) OAuthCallback(ctx context.Context) error {
	raw, err := getSimpleText(a.reader, "Paste the redirect URL", os.Stdout)
	if err != nil {
		return err
	}

	in, err := parseCallbackURL(raw)
	if err != nil {
		printlnFn(errorLine(err))
		return err
	}

	if err := a.flow.HandleCallback(ctx, in); err != nil {
		printlnFn(errorLine(err))
		return err
	}

	if user := a.session.CurrentUser(); user != nil {
		printlnFn("Signed in as " + user.Email)
	}
	return nil
}

// parseCallbackURL pulls code, state and error out of a pasted redirect URL.
// A bare query string ("code=...&state=...") is accepted too.
func parseCallbackURL(raw string) (oauth.CallbackInput, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return oauth.CallbackInput{}, errors.New("could not parse the redirect URL")
	}

	q := u.Query()
	if len(q) == 0 {
		if q, err = url.ParseQuery(raw); err != nil {
			return oauth.CallbackInput{}, errors.New("could not parse the redirect URL")
		}
	}

	return oauth.CallbackInput{
		Code:       q.Get("code"),
		State:      q.Get("state"),
		ErrorParam: q.Get("error"),
	}, nil
}

// OAuthUnlink detaches a provider from the account.
func (a *App) OAuthUnlink(ctx context.Context, provider string) error {
	if err := a.flow.Unlink(ctx, provider); err != nil {
		printlnFn(errorLine(err))
		return err
	}
	printlnFn("Provider unlinked.")
	return nil
}
