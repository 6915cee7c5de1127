package generator

import (
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"
)

// LaunchOptions describes the helper scripts placed in a build context.
type LaunchOptions struct {
	// Command is the runtime executable, e.g. docker or podman.
	Command string

	// RunArgs are the arguments of the run invocation, without Command.
	RunArgs []string

	ContainerName    string
	Port             int
	ReverseProxyHost string
}

// AddLaunchScripts adds run_container.sh, stop_container.sh and, when a
// reverse proxy host is set, .ssh_reverse_tunnel.sh.
func (c *BuildContext) AddLaunchScripts(opts LaunchOptions) {
	run := append([]string{opts.Command}, opts.RunArgs...)
	c.add(RunScriptName, script(
		shellquote.Join(run...),
		`echo "Container started"`,
	), 0755)

	c.add(StopScriptName, script(
		fmt.Sprintf("%s || %s",
			shellquote.Join(opts.Command, "stop", opts.ContainerName),
			shellquote.Join(opts.Command, "kill", opts.ContainerName)),
		`echo "Container stopped"`,
	), 0755)

	if opts.ReverseProxyHost != "" {
		forward := fmt.Sprintf("0.0.0.0:%d:localhost:%d", opts.Port, opts.Port)
		c.add(TunnelScriptName, script(
			shellquote.Join("ssh", "-N", "-R", forward, opts.ReverseProxyHost),
		), 0755)
	}
}

func script(lines ...string) []byte {
	var b strings.Builder
	b.WriteString("#!/usr/bin/env bash\nset -u\n")
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}
