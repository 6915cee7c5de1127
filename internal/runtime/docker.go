package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	gerrors "github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/errors"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/logging"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/system"
)

// Runtime steps reported in errors.
const (
	StepBuild   = "build"
	StepRun     = "run"
	StepStart   = "start"
	StepStop    = "stop"
	StepRemove  = "remove"
	StepInspect = "inspect"
)

// DockerRuntime implements the Runtime interface using Docker or Podman.
type DockerRuntime struct {
	// Command is the container command to use (docker or podman)
	Command string

	// Executor runs Command. Nil uses system.DefaultExecutor().
	Executor system.CommandExecutor

	// Timeout bounds each invocation. Zero means no bound.
	Timeout time.Duration
}

// NewDockerRuntime creates a runtime for an explicit command.
func NewDockerRuntime(command string, exec system.CommandExecutor, timeout time.Duration) *DockerRuntime {
	return &DockerRuntime{Command: command, Executor: exec, Timeout: timeout}
}

// Name returns the runtime identifier
func (r *DockerRuntime) Name() string {
	return r.Command
}

func (r *DockerRuntime) executor() system.CommandExecutor {
	if r.Executor != nil {
		return r.Executor
	}
	return system.DefaultExecutor()
}

// runCmd executes a docker/podman command and classifies any failure.
func (r *DockerRuntime) runCmd(ctx context.Context, step string, stdin []byte, args ...string) (string, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	logging.Debug("running container command", "runtime", r.Command, "step", step, "args", args)

	var out []byte
	var err error
	if stdin != nil {
		out, err = r.executor().ExecuteWithStdin(ctx, stdin, r.Command, args...)
	} else {
		out, err = r.executor().Execute(ctx, r.Command, args...)
	}
	if err != nil {
		return string(out), r.classify(ctx, step, string(out), err)
	}
	return string(out), nil
}

func (r *DockerRuntime) classify(ctx context.Context, step, output string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return gerrors.RuntimeTimeout(step, r.Timeout, output)
	}

	var exitErr interface{ ExitCode() int }
	if errors.As(err, &exitErr) {
		return gerrors.ProvisioningFailed(step, exitErr.ExitCode(), output, err)
	}
	return gerrors.ProvisioningFailed(step, -1, output, err)
}

// Provision builds the image and starts the container.
func (r *DockerRuntime) Provision(ctx context.Context, spec RunSpec) (*RunResult, error) {
	logging.Debug("provisioning container", "name", spec.Name, "image", spec.Image, "port", spec.HostPort)

	buildOut, err := r.runCmd(ctx, StepBuild, spec.ContextArchive, BuildArgs(spec)...)
	if err != nil {
		return nil, err
	}

	runOut, err := r.runCmd(ctx, StepRun, nil, RunArgs(spec)...)
	if err != nil {
		// A failed run may leave a created container holding the name.
		_, _ = r.runCmd(context.WithoutCancel(ctx), StepRemove, nil, "rm", "-f", spec.Name)
		return nil, err
	}

	return &RunResult{
		ContainerID: lastLine(runOut),
		ImageTag:    spec.Name,
		BuildOutput: buildOut,
		RunOutput:   runOut,
	}, nil
}

// Start starts an existing container
func (r *DockerRuntime) Start(ctx context.Context, name string) error {
	logging.Debug("starting container", "container", name)

	_, err := r.runCmd(ctx, StepStart, nil, "start", name)
	return err
}

// Stop stops a running container, killing it if stop fails.
func (r *DockerRuntime) Stop(ctx context.Context, name string) error {
	logging.Debug("stopping container", "container", name)

	if _, err := r.runCmd(ctx, StepStop, nil, "stop", name); err != nil {
		if _, killErr := r.runCmd(ctx, StepStop, nil, "kill", name); killErr != nil {
			return err
		}
	}
	return nil
}

// Destroy stops and removes a container and its image
func (r *DockerRuntime) Destroy(ctx context.Context, name string) error {
	logging.Debug("destroying container", "container", name)

	out, err := r.runCmd(ctx, StepRemove, nil, "rm", "-f", name)
	if err != nil && !isNoSuchObject(out) {
		return err
	}

	// The image tag shares the container name; leftover images are harmless.
	if out, err := r.runCmd(ctx, StepRemove, nil, "rmi", "-f", name); err != nil && !isNoSuchObject(out) {
		logging.Warn("failed to remove image", "image", name, "error", err)
	}
	return nil
}

// IsRunning checks if a container is currently running
func (r *DockerRuntime) IsRunning(ctx context.Context, name string) (bool, error) {
	info, err := r.Status(ctx, name)
	if err != nil {
		return false, err
	}
	return info.Status == StatusRunning, nil
}

// dockerInspect holds the relevant fields from docker inspect
type dockerInspect struct {
	Config struct {
		Image string `json:"Image"`
	} `json:"Config"`
	State struct {
		Status    string `json:"Status"`
		Running   bool   `json:"Running"`
		StartedAt string `json:"StartedAt"`
	} `json:"State"`
	NetworkSettings struct {
		IPAddress string `json:"IPAddress"`
	} `json:"NetworkSettings"`
}

// Status returns detailed status of a container
func (r *DockerRuntime) Status(ctx context.Context, name string) (*ContainerInfo, error) {
	info := &ContainerInfo{
		Name:   name,
		Status: StatusNotFound,
	}

	output, err := r.runCmd(ctx, StepInspect, nil, "container", "inspect", name)
	if err != nil {
		if isNoSuchObject(output) {
			return info, nil
		}
		return nil, err
	}

	return parseInspect(name, []byte(output))
}

func parseInspect(name string, data []byte) (*ContainerInfo, error) {
	info := &ContainerInfo{
		Name:   name,
		Status: StatusNotFound,
	}

	var inspects []dockerInspect
	if err := json.Unmarshal(data, &inspects); err != nil {
		return nil, gerrors.ProvisioningFailed(StepInspect, -1, string(data), err)
	}

	if len(inspects) == 0 {
		return info, nil
	}

	inspect := inspects[0]
	switch inspect.State.Status {
	case "running":
		info.Status = StatusRunning
	case "exited", "stopped", "created", "paused", "dead":
		info.Status = StatusStopped
	default:
		info.Status = StatusUnknown
	}

	info.Image = inspect.Config.Image
	info.IPAddress = inspect.NetworkSettings.IPAddress
	if t, err := time.Parse(time.RFC3339Nano, inspect.State.StartedAt); err == nil {
		info.StartedAt = t
	}

	return info, nil
}

func isNoSuchObject(output string) bool {
	lower := strings.ToLower(output)
	return strings.Contains(lower, "no such container") ||
		strings.Contains(lower, "no such object") ||
		strings.Contains(lower, "no such image") ||
		strings.Contains(lower, "no container with name")
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// Ensure DockerRuntime implements Runtime
var _ Runtime = (*DockerRuntime)(nil)
