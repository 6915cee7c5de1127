package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// usernameRegex validates usernames. The username becomes part of a
// container name and image tag, so it follows the image reference rules:
// lowercase letter or digit first, then lowercase letters, digits, '_', '.'
// or '-', at most 63 characters.
var usernameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,62}$`)

// ValidateUsername checks that a username is filesystem and identifier safe.
func ValidateUsername(name string) error {
	if name == "" {
		return fmt.Errorf("username cannot be empty")
	}

	for _, r := range name {
		switch {
		case r == '/' || r == '\\':
			return fmt.Errorf("username cannot contain path separators")
		case unicode.IsControl(r):
			return fmt.Errorf("username cannot contain control characters")
		case unicode.IsSpace(r):
			return fmt.Errorf("username cannot contain whitespace")
		}
	}

	if name == "." || name == ".." {
		return fmt.Errorf("username cannot be a relative path element")
	}

	if !usernameRegex.MatchString(name) {
		return fmt.Errorf("username must start with a lowercase letter or digit, contain only lowercase letters, digits, '_', '.' or '-', and be at most 63 characters")
	}

	return nil
}

// safePath validates that a constructed path stays within the base directory.
func safePath(baseDir, name, suffix string) (string, error) {
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("name cannot be an absolute path")
	}

	if filepath.Dir(name) != "." {
		return "", fmt.Errorf("name cannot contain path separators")
	}

	path := filepath.Join(baseDir, name+suffix)

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("invalid base directory: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	// Separator suffix prevents /var/lib/guest-ctl matching /var/lib/guest-ctl-evil.
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return "", fmt.Errorf("path escapes base directory")
	}

	return path, nil
}

const (
	DefaultConfigDir      = "/etc/guest-ctl"
	DefaultConfigFile     = "config.toml"
	DefaultStateDir       = "/var/lib/guest-ctl"
	DefaultContainerImage = "nvcr.io/nvidia/pytorch:23.10-py3"
	DefaultHost           = "localhost"
	DefaultPortFrom       = 32778
	DefaultPortTo         = 33777
	DefaultSSHPort        = 22
	DefaultRuntimeCommand = "docker"

	// ConfigEnvVar overrides the host config path.
	ConfigEnvVar = "GUEST_CTL_CONFIG"
)

// Paths holds the configured paths
type Paths struct {
	ConfigFile     string
	StateDir       string
	ConnectionsDir string
	AuditDir       string
	StorePath      string
}

// DefaultPaths returns the default path configuration
func DefaultPaths() *Paths {
	return pathsFor(DefaultStateDir, StoreBackendJSON, "")
}

func pathsFor(stateDir, backend, storePath string) *Paths {
	if storePath == "" {
		storePath = filepath.Join(stateDir, defaultStoreFile(backend))
	}
	return &Paths{
		ConfigFile:     filepath.Join(DefaultConfigDir, DefaultConfigFile),
		StateDir:       stateDir,
		ConnectionsDir: filepath.Join(stateDir, "connections"),
		AuditDir:       filepath.Join(stateDir, "audit"),
		StorePath:      storePath,
	}
}

// ContextKey returns the identifier shared by a user's build context
// directory, image tag and container name.
func ContextKey(username string, port int) string {
	return fmt.Sprintf("%s_%d", username, port)
}

// ContainerName returns the container (and image tag) name for an allocation.
func ContainerName(username string, port int) string {
	return ContextKey(username, port)
}

// ContextDir returns the build context directory for an allocation.
func (p *Paths) ContextDir(username string, port int) (string, error) {
	return safePath(p.ConnectionsDir, ContextKey(username, port), "")
}
