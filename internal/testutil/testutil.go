package testutil

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/app"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/config"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/lifecycle"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/request"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/runtime"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/store"
)

// Fixed values used by NewTestEnv.
const (
	PortFrom = 2222
	PortTo   = 2230
	Image    = "ubuntu:latest"
)

// Now is the clock of every TestEnv.
var Now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// TestEnv holds the test environment
type TestEnv struct {
	T          *testing.T
	TmpDir     string
	HostConfig *config.HostConfig
	Paths      *config.Paths
	Runtime    *runtime.MockRuntime
	App        *app.App

	keys    map[string]string
	cleanup func()
}

// NewTestEnv creates a new test environment with mock runtime
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	tmpDir := t.TempDir()

	hostConfig := config.DefaultHostConfig()
	hostConfig.StateDir = filepath.Join(tmpDir, "state")
	hostConfig.PortRange = config.PortRange{From: PortFrom, To: PortTo}
	hostConfig.DefaultImage = Image
	if err := hostConfig.Validate(); err != nil {
		t.Fatalf("invalid test host config: %v", err)
	}

	mockRuntime := runtime.NewMockRuntime()

	testApp := app.New(
		app.WithHostConfig(hostConfig),
		app.WithRuntime(mockRuntime),
		app.WithProber(func(int) bool { return false }),
		app.WithClock(func() time.Time { return Now }),
	)

	// Save original default and set test app
	originalDefault := app.Default
	app.SetDefault(testApp)

	env := &TestEnv{
		T:          t,
		TmpDir:     tmpDir,
		HostConfig: hostConfig,
		Paths:      hostConfig.Paths(),
		Runtime:    mockRuntime,
		App:        testApp,
		keys:       make(map[string]string),
		cleanup: func() {
			app.SetDefault(originalDefault)
		},
	}
	t.Cleanup(env.Cleanup)

	return env
}

// Cleanup restores the original app default
func (e *TestEnv) Cleanup() {
	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}
}

// Manager returns the lifecycle manager of the test app.
func (e *TestEnv) Manager() *lifecycle.Manager {
	e.T.Helper()

	m, err := e.App.Manager()
	if err != nil {
		e.T.Fatalf("Failed to create manager: %v", err)
	}
	return m
}

// Key returns a public key for username, the same one on every call.
func (e *TestEnv) Key(username string) string {
	e.T.Helper()

	if k, ok := e.keys[username]; ok {
		return k
	}
	k := PublicKey(e.T, username+"@test")
	e.keys[username] = k
	return k
}

// Raw returns a valid request for username with its stable key, the test
// image and no desired port.
func (e *TestEnv) Raw(username string) request.Raw {
	e.T.Helper()

	return request.Raw{
		Username:       username,
		Port:           request.NoPort,
		PublicKey:      e.Key(username),
		ContainerImage: Image,
	}
}

// StoreOptions returns the options of the test store.
func (e *TestEnv) StoreOptions(readOnly bool) store.Options {
	return store.OptionsFor(e.HostConfig, readOnly)
}

// AddAllocation commits rec to the store and registers a running container
// for it.
func (e *TestEnv) AddAllocation(rec *config.AllocationRecord) {
	e.T.Helper()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = Now
	}
	err := store.With(context.Background(), e.StoreOptions(false), func(s store.Store) error {
		return s.Put(context.Background(), rec)
	})
	if err != nil {
		e.T.Fatalf("Failed to add allocation: %v", err)
	}
	e.Runtime.AddContainer(rec.ContainerName(), runtime.StatusRunning)
}

// Allocation reads the stored record for username, or nil.
func (e *TestEnv) Allocation(username string) *config.AllocationRecord {
	e.T.Helper()

	var rec *config.AllocationRecord
	err := store.With(context.Background(), e.StoreOptions(true), func(s store.Store) error {
		var err error
		rec, err = s.Get(context.Background(), username)
		return err
	})
	if err != nil {
		e.T.Fatalf("Failed to read allocation: %v", err)
	}
	return rec
}

// Allocations reads every stored record ordered by port.
func (e *TestEnv) Allocations() []*config.AllocationRecord {
	e.T.Helper()

	var recs []*config.AllocationRecord
	err := store.With(context.Background(), e.StoreOptions(true), func(s store.Store) error {
		var err error
		recs, err = s.ListActive(context.Background())
		return err
	})
	if err != nil {
		e.T.Fatalf("Failed to list allocations: %v", err)
	}
	return recs
}

// PublicKey returns a freshly generated ed25519 authorized_keys line with
// the given comment.
func PublicKey(t testing.TB, comment string) string {
	t.Helper()

	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("Failed to convert key: %v", err)
	}

	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub)))
	if comment != "" {
		line += " " + comment
	}
	return line
}
