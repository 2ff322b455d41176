package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Whoami(ctx context.Context) error
	Refresh(ctx context.Context) error
	Providers(ctx context.Context) error
	OAuthLogin(ctx context.Context, provider string) error
	OAuthLink(ctx context.Context, provider string) error
	OAuthCallback(ctx context.Context) error
	OAuthUnlink(ctx context.Context, provider string) error
}

// runREPL starts a simple read–eval–print loop for the Taskdeck CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Commands
//
//	Not logged in:
//	  - help                — show available commands
//	  - register            — create an account
//	  - login               — authenticate with email and password
//	  - providers           — list OAuth providers
//	  - oauth <provider>    — sign in via a provider
//	  - callback            — finish a pending OAuth flow
//	  - exit | quit         — leave the program
//
//	Logged in:
//	  - whoami              — show the signed-in profile
//	  - refresh             — re-fetch the profile from the server
//	  - link <provider>     — attach a provider to the account
//	  - unlink <provider>   — detach a provider
//	  - callback            — finish a pending link flow
//	  - logout              — log out
//	  - exit | quit         — leave the program
//
// Any errors returned by command handlers are ignored here; handlers print
// their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("td %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: whoami, refresh, link <provider>, unlink <provider>, callback, logout, exit")
			} else {
				printlnFn("Available commands: register, login, providers, oauth <provider>, callback, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "whoami":
			_ = a.Whoami(ctx)

		case "refresh":
			_ = a.Refresh(ctx)

		case "providers":
			_ = a.Providers(ctx)

		case "oauth":
			if len(args) == 0 {
				printlnFn("Usage: oauth <provider>")
				continue
			}
			_ = a.OAuthLogin(ctx, args[0])

		case "link":
			if len(args) == 0 {
				printlnFn("Usage: link <provider>")
				continue
			}
			_ = a.OAuthLink(ctx, args[0])

		case "unlink":
			if len(args) == 0 {
				printlnFn("Usage: unlink <provider>")
				continue
			}
			_ = a.OAuthUnlink(ctx, args[0])

		case "callback":
			_ = a.OAuthCallback(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
