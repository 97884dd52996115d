// Package credential resolves account secrets by running user-configured
// shell commands, so passwords can live in a password manager or an OAuth
// token-refresh script instead of the config file.
package credential

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Error reports a credential command that could not be spawned or exited
// non-zero.
type Error struct {
	Cmd string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("credential command %q: %v", e.Cmd, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Resolver runs credential commands through a shell.
type Resolver struct {
	shell string
}

// NewResolver creates a resolver using /bin/sh.
func NewResolver() *Resolver {
	return &Resolver{shell: "sh"}
}

// Resolve runs command and returns its trimmed stdout as the secret. The
// result is never cached: accounts may rotate credentials between connection
// attempts.
func (r *Resolver) Resolve(ctx context.Context, command string) (string, error) {
	cmd := exec.CommandContext(ctx, r.shell, "-c", command)
	out, err := cmd.Output()
	if err != nil {
		return "", &Error{Cmd: command, Err: err}
	}
	return strings.TrimSpace(string(out)), nil
}
