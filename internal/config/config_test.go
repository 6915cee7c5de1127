package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"rdyro", false},
		{"alice", false},
		{"bob-2", false},
		{"j.doe", false},
		{"user_1", false},
		{"0day", false},
		{"", true},
		{"../etc", true},
		{"a/b", true},
		{`a\b`, true},
		{"Alice", true},
		{"has space", true},
		{"tab\there", true},
		{"nul\x00", true},
		{"bell\a", true},
		{".", true},
		{"..", true},
		{"-leading", true},
		{strings.Repeat("a", 63), false},
		{strings.Repeat("a", 64), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.name)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUsername(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
		})
	}
}

func TestSafePath(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "alice_32778", false},
		{"absolute", "/etc/passwd", true},
		{"traversal", "../outside", true},
		{"nested", "a/b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := safePath(base, tt.input, "")
			if (err != nil) != tt.wantErr {
				t.Errorf("safePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestContextKey(t *testing.T) {
	if got, want := ContextKey("rdyro", 32778), "rdyro_32778"; got != want {
		t.Errorf("ContextKey() = %q, want %q", got, want)
	}
	if got, want := ContainerName("alice", 2222), "alice_2222"; got != want {
		t.Errorf("ContainerName() = %q, want %q", got, want)
	}
}

func TestDefaultPaths(t *testing.T) {
	paths := DefaultPaths()

	if paths.StateDir != DefaultStateDir {
		t.Errorf("StateDir = %q, want %q", paths.StateDir, DefaultStateDir)
	}
	if want := filepath.Join(DefaultStateDir, "connections"); paths.ConnectionsDir != want {
		t.Errorf("ConnectionsDir = %q, want %q", paths.ConnectionsDir, want)
	}
	if want := filepath.Join(DefaultStateDir, "allocations.json"); paths.StorePath != want {
		t.Errorf("StorePath = %q, want %q", paths.StorePath, want)
	}
	if want := filepath.Join(DefaultConfigDir, DefaultConfigFile); paths.ConfigFile != want {
		t.Errorf("ConfigFile = %q, want %q", paths.ConfigFile, want)
	}
}

func TestPaths_ContextDir(t *testing.T) {
	p := pathsFor("/tmp/state", StoreBackendJSON, "")

	dir, err := p.ContextDir("alice", 32778)
	if err != nil {
		t.Fatalf("ContextDir failed: %v", err)
	}
	if want := filepath.Join("/tmp/state", "connections", "alice_32778"); dir != want {
		t.Errorf("ContextDir = %q, want %q", dir, want)
	}

	if _, err := p.ContextDir("../x", 1); err == nil {
		t.Error("ContextDir should reject traversal")
	}
}

func TestPortRange(t *testing.T) {
	r := PortRange{From: 2222, To: 2224}

	if r.Size() != 3 {
		t.Errorf("Size() = %d, want 3", r.Size())
	}
	if !r.Contains(2222) || !r.Contains(2224) || r.Contains(2225) || r.Contains(2221) {
		t.Error("Contains() boundaries are wrong")
	}
	if err := r.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
	if err := (PortRange{From: 10, To: 5}).Validate(); err == nil {
		t.Error("Validate() should reject an empty range")
	}
	if err := (PortRange{From: 0, To: 5}).Validate(); err == nil {
		t.Error("Validate() should reject port 0")
	}
	if (PortRange{From: 10, To: 5}).Size() != 0 {
		t.Error("Size() of an empty range should be 0")
	}
}

func TestLoadHostConfig_Missing(t *testing.T) {
	cfg, err := LoadHostConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadHostConfig failed: %v", err)
	}

	if cfg.PortRange.From != DefaultPortFrom || cfg.PortRange.To != DefaultPortTo {
		t.Errorf("PortRange = %v, want defaults", cfg.PortRange)
	}
	if cfg.DefaultImage != DefaultContainerImage {
		t.Errorf("DefaultImage = %q, want %q", cfg.DefaultImage, DefaultContainerImage)
	}
	if cfg.RuntimeTimeout() != 30*time.Minute {
		t.Errorf("RuntimeTimeout() = %v, want 30m", cfg.RuntimeTimeout())
	}
	if cfg.Store.Backend != StoreBackendJSON {
		t.Errorf("Store.Backend = %q, want %q", cfg.Store.Backend, StoreBackendJSON)
	}
}

func TestLoadHostConfig_TOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	data := `
state_dir = "` + dir + `"
default_host = "gpu.example.org"
probe_ports = true

[port_range]
from = 2222
to = 2230

[store]
backend = "sqlite"

[runtime]
command = "podman"
timeout = "90s"
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadHostConfig(path)
	if err != nil {
		t.Fatalf("LoadHostConfig failed: %v", err)
	}

	if cfg.DefaultHost != "gpu.example.org" {
		t.Errorf("DefaultHost = %q, want %q", cfg.DefaultHost, "gpu.example.org")
	}
	if !cfg.ProbePorts {
		t.Error("ProbePorts = false, want true")
	}
	if cfg.PortRange != (PortRange{From: 2222, To: 2230}) {
		t.Errorf("PortRange = %v, want 2222-2230", cfg.PortRange)
	}
	if cfg.Runtime.Command != "podman" {
		t.Errorf("Runtime.Command = %q, want podman", cfg.Runtime.Command)
	}
	if cfg.RuntimeTimeout() != 90*time.Second {
		t.Errorf("RuntimeTimeout() = %v, want 90s", cfg.RuntimeTimeout())
	}
	if cfg.Runtime.SSHPort != DefaultSSHPort {
		t.Errorf("Runtime.SSHPort = %d, want %d", cfg.Runtime.SSHPort, DefaultSSHPort)
	}
	if want := filepath.Join(dir, "allocations.db"); cfg.Paths().StorePath != want {
		t.Errorf("StorePath = %q, want %q", cfg.Paths().StorePath, want)
	}
}

func TestLoadHostConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown key", "colour = \"blue\"\n"},
		{"bad backend", "[store]\nbackend = \"redis\"\n"},
		{"inverted range", "[port_range]\nfrom = 3000\nto = 2000\n"},
		{"bad duration", "[runtime]\ntimeout = \"soon\"\n"},
		{"syntax", "state_dir = \n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.data), 0644); err != nil {
				t.Fatalf("Failed to write config: %v", err)
			}
			if _, err := LoadHostConfig(path); err == nil {
				t.Errorf("LoadHostConfig should fail for %s", tt.name)
			}
		})
	}
}

func TestHostConfig_EncodeRoundTrip(t *testing.T) {
	cfg := DefaultHostConfig()
	cfg.PortRange = PortRange{From: 4000, To: 4010}

	var buf bytes.Buffer
	if err := cfg.Encode(&buf); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.Contains(buf.String(), `timeout = "30m0s"`) {
		t.Errorf("encoded config missing timeout: %s", buf.String())
	}

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	loaded, err := LoadHostConfig(path)
	if err != nil {
		t.Fatalf("LoadHostConfig failed: %v", err)
	}
	if loaded.PortRange != cfg.PortRange {
		t.Errorf("PortRange = %v, want %v", loaded.PortRange, cfg.PortRange)
	}
}

func TestConfigPath(t *testing.T) {
	t.Setenv(ConfigEnvVar, "")
	if got := ConfigPath("/x.toml"); got != "/x.toml" {
		t.Errorf("ConfigPath(flag) = %q, want /x.toml", got)
	}
	if got := ConfigPath(""); got != DefaultPaths().ConfigFile {
		t.Errorf("ConfigPath() = %q, want default", got)
	}
	t.Setenv(ConfigEnvVar, "/env.toml")
	if got := ConfigPath(""); got != "/env.toml" {
		t.Errorf("ConfigPath(env) = %q, want /env.toml", got)
	}
}
