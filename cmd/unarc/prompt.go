package main

import (
	"context"
	"fmt"
	"os"

	"github.com/unarc/unarc/internal/password"
	"golang.org/x/term"
)

type interactiveCtxKeyType struct{}

var interactiveCtxKey = interactiveCtxKeyType{}

func isInteractiveEnvironment() bool {
	if os.Getenv("CI") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func withInteractive(ctx context.Context, interactive bool) context.Context {
	return context.WithValue(ctx, interactiveCtxKey, interactive)
}

func isInteractive(ctx context.Context) bool {
	interactive, ok := ctx.Value(interactiveCtxKey).(bool)
	if !ok {
		return false
	}
	return interactive
}

// buildPrompter picks the password source for the run. Outside a terminal
// every prompt declines, so encrypted archives are skipped instead of
// hanging a CI job.
func buildPrompter(ctx context.Context) password.Prompter {
	if isInteractive(ctx) {
		return terminalPrompter{}
	}
	return declinePrompter{}
}

// terminalPrompter reads a password from the controlling terminal without
// echoing it.
type terminalPrompter struct{}

func (terminalPrompter) ReadSecret(ctx context.Context, archive string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	fmt.Fprintf(os.Stderr, "Password for %s (empty to skip): ", archive)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", false, fmt.Errorf("read password: %w", err)
	}
	return string(secret), len(secret) > 0, nil
}

// declinePrompter always skips.
type declinePrompter struct{}

func (declinePrompter) ReadSecret(context.Context, string) (string, bool, error) {
	return "", false, nil
}
