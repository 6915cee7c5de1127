// Package system provides abstractions for OS operations to enable testing.
package system

import (
	"context"
)

// CommandExecutor abstracts command execution for testability.
type CommandExecutor interface {
	// Execute runs a command and returns its combined output.
	Execute(ctx context.Context, name string, args ...string) ([]byte, error)

	// ExecuteWithStdin runs a command with the given stdin and returns its
	// combined output.
	ExecuteWithStdin(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)

	// LookPath searches PATH for an executable.
	LookPath(name string) (string, error)
}

var defaultExecutor CommandExecutor = &osExecutor{}

// DefaultExecutor returns the default CommandExecutor implementation.
func DefaultExecutor() CommandExecutor {
	return defaultExecutor
}

// SetDefaultExecutor sets the default CommandExecutor (useful for testing).
func SetDefaultExecutor(exec CommandExecutor) {
	defaultExecutor = exec
}

// ResetDefaults restores the default OS implementations.
func ResetDefaults() {
	defaultExecutor = &osExecutor{}
}
