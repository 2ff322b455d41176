package cli

import (
	"context"
	"fmt"
	"os"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for an email, an optional full name and a password, and
// creates an account. Registration does not sign the user in; the "Success!"
// line tells them to log in next.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}

	name, err := getSimpleText(a.reader, "Enter full name (optional)", os.Stdout)
	if err != nil {
		return err
	}
	var fullName *string
	if name != "" {
		fullName = &name
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer WipeByteArray(password)

	if _, err := a.session.Register(ctx, email, string(password), fullName); err != nil {
		printlnFn(errorLine(err))
		return err
	}

	printlnFn("Success! Use 'login' to sign in.")
	return nil
}

// Login prompts for credentials and authenticates. On success the prompt
// picks up the signed-in email from the session status.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer WipeByteArray(password)

	user, err := a.session.Login(ctx, email, string(password))
	if err != nil {
		printlnFn(errorLine(err))
		return err
	}

	printlnFn("Logged in as " + user.Email)
	return nil
}

// Logout ends the session and wipes the local store.
func (a *App) Logout(ctx context.Context) error {
	a.session.Logout(ctx)
	return nil
}

// Whoami prints the cached profile.
func (a *App) Whoami(ctx context.Context) error {
	user := a.session.CurrentUser()
	if user == nil {
		printlnFn("Not logged in.")
		return nil
	}

	printlnFn("Email: " + user.Email)
	if user.FullName != nil {
		printlnFn("Name:  " + *user.FullName)
	}
	if user.OAuthProvider != nil {
		printlnFn("OAuth: " + *user.OAuthProvider)
	}
	return nil
}

// Refresh re-fetches the profile from the backend.
func (a *App) Refresh(ctx context.Context) error {
	a.session.RefreshProfile(ctx)
	return a.Whoami(ctx)
}

func errorLine(err error) string {
	return fmt.Sprintf("Failed: %s", err.Error())
}
