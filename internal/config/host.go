package config

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Store backends
const (
	StoreBackendJSON   = "json"
	StoreBackendSQLite = "sqlite"
)

func defaultStoreFile(backend string) string {
	if backend == StoreBackendSQLite {
		return "allocations.db"
	}
	return "allocations.json"
}

// Duration is a time.Duration that decodes from strings like "30m".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// PortRange is the inclusive range of host ports handed out to guests.
type PortRange struct {
	From int `toml:"from" json:"from"`
	To   int `toml:"to" json:"to"`
}

// Contains reports whether port lies in the range.
func (r PortRange) Contains(port int) bool {
	return port >= r.From && port <= r.To
}

// Size returns the number of ports in the range.
func (r PortRange) Size() int {
	if r.To < r.From {
		return 0
	}
	return r.To - r.From + 1
}

func (r PortRange) String() string {
	return fmt.Sprintf("%d-%d", r.From, r.To)
}

// Validate checks that the PortRange is usable.
func (r PortRange) Validate() error {
	if r.From < 1 || r.To > 65535 {
		return fmt.Errorf("port range %s must lie within 1-65535", r)
	}
	if r.From > r.To {
		return fmt.Errorf("port range %s is empty", r)
	}
	return nil
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path,omitempty"`
}

// Validate checks that the StoreConfig is valid.
func (s *StoreConfig) Validate() error {
	switch s.Backend {
	case StoreBackendJSON, StoreBackendSQLite:
		return nil
	default:
		return fmt.Errorf("invalid store backend %q (must be %s or %s)", s.Backend, StoreBackendJSON, StoreBackendSQLite)
	}
}

// RuntimeConfig describes the external container runtime.
type RuntimeConfig struct {
	// Command is docker, podman, or auto
	Command string   `toml:"command"`
	Timeout Duration `toml:"timeout"`
	SSHPort int      `toml:"ssh_port"`

	// StreamContext sends the build context as a tar.gz on stdin.
	StreamContext bool `toml:"stream_context"`
}

// Validate checks that the RuntimeConfig is valid.
func (r *RuntimeConfig) Validate() error {
	if r.Command == "" {
		return fmt.Errorf("runtime command is required")
	}
	if r.Timeout <= 0 {
		return fmt.Errorf("runtime timeout must be positive")
	}
	if r.SSHPort < 1 || r.SSHPort > 65535 {
		return fmt.Errorf("invalid container ssh port %d", r.SSHPort)
	}
	return nil
}

// TemplateConfig points at an optional Dockerfile template.
type TemplateConfig struct {
	Path string `toml:"path,omitempty"`
}

// HostConfig represents the host configuration from config.toml
type HostConfig struct {
	StateDir     string         `toml:"state_dir"`
	DefaultHost  string         `toml:"default_host"`
	DefaultImage string         `toml:"default_image"`
	ProbePorts   bool           `toml:"probe_ports"`
	PortRange    PortRange      `toml:"port_range"`
	Store        StoreConfig    `toml:"store"`
	Runtime      RuntimeConfig  `toml:"runtime"`
	Template     TemplateConfig `toml:"template"`
}

// DefaultHostConfig returns the configuration used when no file exists.
func DefaultHostConfig() *HostConfig {
	c := &HostConfig{}
	c.applyDefaults()
	return c
}

func (c *HostConfig) applyDefaults() {
	if c.StateDir == "" {
		c.StateDir = DefaultStateDir
	}
	if c.DefaultHost == "" {
		c.DefaultHost = DefaultHost
	}
	if c.DefaultImage == "" {
		c.DefaultImage = DefaultContainerImage
	}
	if c.PortRange == (PortRange{}) {
		c.PortRange = PortRange{From: DefaultPortFrom, To: DefaultPortTo}
	}
	if c.Store.Backend == "" {
		c.Store.Backend = StoreBackendJSON
	}
	if c.Runtime.Command == "" {
		c.Runtime.Command = DefaultRuntimeCommand
	}
	if c.Runtime.Timeout == 0 {
		c.Runtime.Timeout = Duration(30 * time.Minute)
	}
	if c.Runtime.SSHPort == 0 {
		c.Runtime.SSHPort = DefaultSSHPort
	}
}

// Validate checks that the HostConfig is valid.
func (c *HostConfig) Validate() error {
	if c.StateDir == "" {
		return fmt.Errorf("state_dir is required")
	}
	if err := c.PortRange.Validate(); err != nil {
		return fmt.Errorf("port_range: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.Runtime.Validate(); err != nil {
		return fmt.Errorf("runtime: %w", err)
	}
	return nil
}

// Paths derives the state layout from the configuration.
func (c *HostConfig) Paths() *Paths {
	return pathsFor(c.StateDir, c.Store.Backend, c.Store.Path)
}

// RuntimeTimeout returns the bound on a single runtime invocation.
func (c *HostConfig) RuntimeTimeout() time.Duration {
	return time.Duration(c.Runtime.Timeout)
}

// ConfigPath resolves the host config location: explicit flag, then
// $GUEST_CTL_CONFIG, then the default.
func ConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(ConfigEnvVar); env != "" {
		return env
	}
	return DefaultPaths().ConfigFile
}

// LoadHostConfig loads the host configuration. A missing file yields defaults.
func LoadHostConfig(path string) (*HostConfig, error) {
	var config HostConfig

	md, err := toml.DecodeFile(path, &config)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultHostConfig(), nil
		}
		return nil, fmt.Errorf("failed to parse host config %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("unknown keys in host config %s: %s", path, strings.Join(keys, ", "))
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid host config: %w", err)
	}

	return &config, nil
}

// Encode writes the configuration as TOML.
func (c *HostConfig) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
