package runtime

import (
	"context"
	"fmt"
	"time"
)

// ContainerStatus represents the state of a container
type ContainerStatus string

const (
	StatusRunning  ContainerStatus = "running"
	StatusStopped  ContainerStatus = "stopped"
	StatusNotFound ContainerStatus = "not-found"
	StatusUnknown  ContainerStatus = "unknown"
)

// ContainerInfo holds information about a container
type ContainerInfo struct {
	Name      string
	Status    ContainerStatus
	Image     string
	StartedAt time.Time
	IPAddress string
}

// RunSpec describes one image build plus container start.
type RunSpec struct {
	// Name is both the image tag and the container name.
	Name     string
	Image    string
	Username string

	// ContextDir is the build context on disk. When ContextArchive is set
	// it is streamed on stdin instead.
	ContextDir     string
	ContextArchive []byte

	HostPort      int
	ContainerPort int
	GPUs          string

	// ExtraArgs are appended to the run invocation verbatim.
	ExtraArgs []string
}

// RunResult reports a successful Provision.
type RunResult struct {
	ContainerID string
	ImageTag    string
	BuildOutput string
	RunOutput   string
}

// BuildArgs returns the image build arguments for spec.
func BuildArgs(spec RunSpec) []string {
	src := spec.ContextDir
	if spec.ContextArchive != nil {
		src = "-"
	}
	return []string{
		"build",
		"--build-arg", "USERNAME=" + spec.Username,
		"--build-arg", "CONTAINER_VERSION=" + spec.Image,
		"-t", spec.Name,
		src,
	}
}

// RunArgs returns the container run arguments for spec.
func RunArgs(spec RunSpec) []string {
	args := []string{"run", "-d", "-p", fmt.Sprintf("%d:%d", spec.HostPort, spec.ContainerPort)}
	if spec.GPUs != "" {
		args = append(args, "--gpus", spec.GPUs)
	}
	args = append(args, spec.ExtraArgs...)
	args = append(args, "--name", spec.Name, spec.Name)
	return args
}

// Runtime is the interface that container backends must implement.
// All methods should be safe for concurrent use.
type Runtime interface {
	// Name returns the runtime identifier, which is also its executable.
	Name() string

	// Provision builds the image and starts the container described by spec.
	// It returns only after the engine has reported the container running.
	Provision(ctx context.Context, spec RunSpec) (*RunResult, error)

	// Start starts an existing container
	Start(ctx context.Context, name string) error

	// Stop stops a running container
	Stop(ctx context.Context, name string) error

	// Destroy stops and removes a container and its image. A missing
	// container is not an error.
	Destroy(ctx context.Context, name string) error

	// IsRunning checks if a container is currently running
	IsRunning(ctx context.Context, name string) (bool, error)

	// Status returns detailed status of a container
	Status(ctx context.Context, name string) (*ContainerInfo, error)
}
