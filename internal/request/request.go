package request

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/config"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/errors"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/sshkey"
)

// NoPort marks a request without a desired port. Zero is accepted as well.
const NoPort = -1

// Raw is an unvalidated provisioning request as assembled by the CLI from
// flags and the request file.
type Raw struct {
	Username         string
	Port             int
	PublicKey        string
	ContainerImage   string
	GPUs             string
	DryRun           bool
	ReverseProxyHost string
	ExtraRunArgs     string
	Force            bool
}

// Request is a validated provisioning request. It is passed by value; use
// RunArgs to read the extra run arguments.
type Request struct {
	Username         string
	DesiredPort      int
	PublicKey        string
	Fingerprint      string
	ContainerImage   string
	GPUs             string
	DryRun           bool
	ReverseProxyHost string
	Force            bool

	extraRunArgs []string
}

// HasDesiredPort reports whether the request names a port.
func (r Request) HasDesiredPort() bool {
	return r.DesiredPort > 0
}

// RunArgs returns a copy of the extra run arguments, or nil.
func (r Request) RunArgs() []string {
	return slices.Clone(r.extraRunArgs)
}

// Mutates reports whether executing the request may change the host.
func (r Request) Mutates() bool {
	return !r.DryRun
}

// WithForce returns a copy of the request with force set.
func (r Request) WithForce() Request {
	r.Force = true
	r.extraRunArgs = slices.Clone(r.extraRunArgs)
	return r
}

func (r Request) String() string {
	port := "any"
	if r.HasDesiredPort() {
		port = fmt.Sprint(r.DesiredPort)
	}
	return fmt.Sprintf("%s port=%s image=%s key=%s", r.Username, port, r.ContainerImage, r.Fingerprint)
}

// Validate checks raw against the allocatable range and returns the
// normalized request.
func Validate(raw Raw, ports config.PortRange) (Request, error) {
	username := strings.TrimSpace(raw.Username)
	if username == "" {
		return Request{}, errors.MissingUsername()
	}
	if err := config.ValidateUsername(username); err != nil {
		return Request{}, errors.InvalidUsername(username, err)
	}

	desired := raw.Port
	switch {
	case desired == 0 || desired == NoPort:
		desired = 0
	case !ports.Contains(desired):
		return Request{}, errors.InvalidPort(desired, ports.From, ports.To)
	}

	key, err := sshkey.Parse(raw.PublicKey)
	if err != nil {
		return Request{}, errors.InvalidKey(err)
	}

	image := strings.TrimSpace(raw.ContainerImage)
	if image == "" {
		return Request{}, errors.MissingImage()
	}

	args, err := splitRunArgs(raw.ExtraRunArgs)
	if err != nil {
		return Request{}, errors.InvalidRunArgs(err)
	}

	return Request{
		Username:         username,
		DesiredPort:      desired,
		PublicKey:        key.Line(),
		Fingerprint:      key.Fingerprint,
		ContainerImage:   image,
		GPUs:             strings.TrimSpace(raw.GPUs),
		DryRun:           raw.DryRun,
		ReverseProxyHost: strings.TrimSpace(raw.ReverseProxyHost),
		Force:            raw.Force,
		extraRunArgs:     args,
	}, nil
}

// splitRunArgs tokenizes shell-style arguments. Blank input means none.
func splitRunArgs(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	args, err := shellquote.Split(s)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, nil
	}
	return args, nil
}
