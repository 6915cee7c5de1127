package integration

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/config"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/health"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/lifecycle"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/request"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/runtime"
)

// EnvVar enables the integration tests.
const EnvVar = "GUEST_CTL_INTEGRATION_TESTS"

// Defaults used by NewHarness. Override the image with GUEST_CTL_TEST_IMAGE.
const (
	DefaultImage    = "ubuntu:22.04"
	DefaultPortFrom = 42220
	DefaultPortTo   = 42239
)

// TestHarness provides utilities for integration testing with real containers.
type TestHarness struct {
	t          *testing.T
	tempDir    string
	hostConfig *config.HostConfig
	rt         runtime.Runtime
	manager    *lifecycle.Manager
	image      string
	users      []string // released on cleanup
}

// NewHarness creates a new test harness.
// It will skip the test if GUEST_CTL_INTEGRATION_TESTS is not set.
func NewHarness(t *testing.T) *TestHarness {
	t.Helper()

	if os.Getenv(EnvVar) == "" {
		t.Skipf("integration tests disabled (set %s=1 to enable)", EnvVar)
	}

	if _, err := runtime.Detect(nil); err != nil {
		t.Skipf("no container runtime available: %v", err)
	}

	tempDir := t.TempDir()

	hostConfig := config.DefaultHostConfig()
	hostConfig.StateDir = filepath.Join(tempDir, "state")
	hostConfig.PortRange = config.PortRange{From: DefaultPortFrom, To: DefaultPortTo}
	hostConfig.ProbePorts = true
	hostConfig.Runtime.Command = string(runtime.RuntimeAuto)
	hostConfig.Runtime.Timeout = config.Duration(10 * time.Minute)
	if err := hostConfig.Validate(); err != nil {
		t.Fatalf("invalid harness host config: %v", err)
	}

	rt, err := runtime.New(&runtime.Config{
		Type:    runtime.RuntimeAuto,
		Timeout: hostConfig.RuntimeTimeout(),
	})
	if err != nil {
		t.Skipf("failed to create runtime: %v", err)
	}

	image := os.Getenv("GUEST_CTL_TEST_IMAGE")
	if image == "" {
		image = DefaultImage
	}

	h := &TestHarness{
		t:          t,
		tempDir:    tempDir,
		hostConfig: hostConfig,
		rt:         rt,
		manager:    lifecycle.NewManager(hostConfig, rt),
		image:      image,
	}

	t.Cleanup(h.Cleanup)

	return h
}

// HostConfig returns the host configuration.
func (h *TestHarness) HostConfig() *config.HostConfig {
	return h.hostConfig
}

// Runtime returns the container runtime.
func (h *TestHarness) Runtime() runtime.Runtime {
	return h.rt
}

// Manager returns the lifecycle manager bound to the harness state dir.
func (h *TestHarness) Manager() *lifecycle.Manager {
	return h.manager
}

// Raw returns a request for username with a fresh key and the harness image.
func (h *TestHarness) Raw(username string) request.Raw {
	h.t.Helper()

	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		h.t.Fatalf("Failed to generate key: %v", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		h.t.Fatalf("Failed to convert key: %v", err)
	}

	return request.Raw{
		Username:       username,
		Port:           request.NoPort,
		PublicKey:      strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub))) + " " + username + "@integration",
		ContainerImage: h.image,
	}
}

// Provision runs raw through the manager and fails the test on error.
func (h *TestHarness) Provision(raw request.Raw) *lifecycle.Result {
	h.t.Helper()

	res, err := h.manager.Provision(context.Background(), raw)
	if err != nil {
		h.t.Fatalf("Provision(%s) failed in state %s: %v", raw.Username, res.State, err)
	}
	h.users = append(h.users, raw.Username)
	return res
}

// WaitForSSH waits for the guest's sshd to answer on port.
func (h *TestHarness) WaitForSSH(port int, timeout time.Duration) {
	h.t.Helper()

	if _, err := health.WaitForBanner(context.Background(), "localhost", port, timeout); err != nil {
		h.t.Fatalf("sshd not ready: %v", err)
	}
}

// Cleanup releases every allocation made through the harness.
func (h *TestHarness) Cleanup() {
	for _, u := range h.users {
		if _, err := h.manager.Release(context.Background(), u); err != nil {
			h.t.Logf("Warning: failed to release %s: %v", u, err)
		}
	}
	h.users = nil
}
