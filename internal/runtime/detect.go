package runtime

import (
	"fmt"
	"time"

	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/logging"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/system"
)

// RuntimeType identifies which container runtime to use
type RuntimeType string

const (
	RuntimeDocker RuntimeType = "docker"
	RuntimePodman RuntimeType = "podman"
	RuntimeAuto   RuntimeType = "auto"
)

// Config holds runtime configuration
type Config struct {
	// Type specifies which runtime to use (or "auto" for auto-detection).
	// Any other value is taken as the engine executable.
	Type RuntimeType

	// Timeout bounds each engine invocation.
	Timeout time.Duration

	// Executor runs the engine. Nil uses system.DefaultExecutor().
	Executor system.CommandExecutor
}

// DefaultConfig returns the default runtime configuration
func DefaultConfig() *Config {
	return &Config{
		Type:    RuntimeDocker,
		Timeout: 30 * time.Minute,
	}
}

// Detect determines which container engine is available, preferring
// podman.
func Detect(exec system.CommandExecutor) (RuntimeType, error) {
	if exec == nil {
		exec = system.DefaultExecutor()
	}

	for _, rt := range []RuntimeType{RuntimePodman, RuntimeDocker} {
		if _, err := exec.LookPath(string(rt)); err == nil {
			logging.Debug("detected container runtime", "runtime", rt)
			return rt, nil
		}
	}

	return "", fmt.Errorf("no supported container runtime found (tried: podman, docker)")
}

// New creates a new Runtime based on the configuration.
// If Type is RuntimeAuto, it auto-detects the engine.
func New(cfg *Config) (Runtime, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	runtimeType := cfg.Type
	if runtimeType == "" {
		runtimeType = RuntimeDocker
	}
	if runtimeType == RuntimeAuto {
		detected, err := Detect(cfg.Executor)
		if err != nil {
			return nil, err
		}
		runtimeType = detected
	}

	logging.Debug("creating runtime", "type", runtimeType)

	return NewDockerRuntime(string(runtimeType), cfg.Executor, cfg.Timeout), nil
}
