package cmd

import (
	"context"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/app"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/config"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/health"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/lifecycle"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/logging"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/runtime"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/ssh"
)

// probeHost is where the published guest ports are dialed from this host.
const probeHost = "localhost"

// hostConfig returns the loaded host configuration.
func hostConfig() *config.HostConfig {
	return app.Default.HostConfig
}

// manager returns the lifecycle manager of the default app.
func manager() (*lifecycle.Manager, error) {
	return app.Default.Manager()
}

// getRuntime returns the application runtime.
func getRuntime() (runtime.Runtime, error) {
	return app.Default.GetRuntime()
}

// out is where command results are printed.
func out() io.Writer {
	return logging.Stdout()
}

// stdinIsTerminal reports whether an operator can answer prompts.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// stdoutIsTerminal reports whether the interactive picker can run.
var stdoutIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// connectOptions returns the ssh options a guest uses to reach rec.
func connectOptions(rec *config.AllocationRecord, host string) ssh.Options {
	if host == "" {
		host = hostConfig().DefaultHost
	}
	return ssh.DefaultOptions(rec.Username, host, rec.Port)
}

// healthOf combines the runtime view of an entry with an SSH probe.
func healthOf(ctx context.Context, e lifecycle.Entry) health.Status {
	result := &health.CheckResult{ContainerStatus: e.Container.Status}
	if e.Container.Status == runtime.StatusRunning {
		result.SSHReachable = health.CheckSSH(ctx, probeHost, e.Record.Port)
	}
	return result.Status()
}

// timeNow is the clock used for uptime display.
var timeNow = time.Now
