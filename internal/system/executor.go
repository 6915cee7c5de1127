package system

import (
	"bytes"
	"context"
	"os/exec"
	"syscall"
	"time"
)

// killGrace bounds how long a cancelled command may take to exit after
// SIGTERM before it is killed.
const killGrace = 10 * time.Second

// osExecutor implements CommandExecutor using real OS operations.
type osExecutor struct{}

func (e *osExecutor) command(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = killGrace
	return cmd
}

func (e *osExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	return e.command(ctx, name, args...).CombinedOutput()
}

func (e *osExecutor) ExecuteWithStdin(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := e.command(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	return cmd.CombinedOutput()
}

func (e *osExecutor) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
