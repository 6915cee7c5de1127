// Package ssh builds the ssh invocations operators hand to guests.
package ssh

import (
	"fmt"

	"github.com/kballard/go-shellquote"
)

// DefaultConnectTimeout is the connect timeout in seconds.
const DefaultConnectTimeout = 10

// Options configures SSH connection parameters.
type Options struct {
	Port               int
	User               string
	Host               string
	StrictHostKeyCheck bool
	KnownHostsFile     string
	ConnectTimeout     int
	BatchMode          bool
	RequestTTY         bool
}

// DefaultOptions returns Options for reaching a guest container. Every
// container gets a fresh host key, so host key checking is off.
func DefaultOptions(user, host string, port int) Options {
	return Options{
		Port:           port,
		User:           user,
		Host:           host,
		KnownHostsFile: "/dev/null",
		ConnectTimeout: DefaultConnectTimeout,
	}
}

// WithBatchMode returns a copy with batch mode enabled.
func (o Options) WithBatchMode() Options {
	o.BatchMode = true
	return o
}

// WithTTY returns a copy with TTY requested.
func (o Options) WithTTY() Options {
	o.RequestTTY = true
	return o
}

// WithTimeout returns a copy with the specified connect timeout.
func (o Options) WithTimeout(seconds int) Options {
	o.ConnectTimeout = seconds
	return o
}

// BaseArgs returns the common SSH arguments (options only, no user@host).
func (o Options) BaseArgs() []string {
	args := []string{
		"-p", fmt.Sprintf("%d", o.Port),
	}

	if !o.StrictHostKeyCheck {
		args = append(args, "-o", "StrictHostKeyChecking=no")
	}

	if o.KnownHostsFile != "" {
		args = append(args, "-o", fmt.Sprintf("UserKnownHostsFile=%s", o.KnownHostsFile))
	}

	if o.BatchMode {
		args = append(args, "-o", "BatchMode=yes")
	}

	if o.ConnectTimeout > 0 {
		args = append(args, "-o", fmt.Sprintf("ConnectTimeout=%d", o.ConnectTimeout))
	}

	if o.RequestTTY {
		args = append(args, "-t")
	}

	return args
}

// Destination returns the user@host string.
func (o Options) Destination() string {
	return fmt.Sprintf("%s@%s", o.User, o.Host)
}

// BuildArgs returns complete SSH arguments for executing a command.
func (o Options) BuildArgs(command ...string) []string {
	args := o.BaseArgs()
	args = append(args, o.Destination())
	args = append(args, command...)
	return args
}

// Command returns the shell command line a guest runs to connect.
func (o Options) Command() string {
	return shellquote.Join(append([]string{"ssh"}, o.BuildArgs()...)...)
}

// ShortCommand returns a minimal connect line without the client options.
func (o Options) ShortCommand() string {
	return shellquote.Join("ssh", "-p", fmt.Sprint(o.Port), o.Destination())
}
