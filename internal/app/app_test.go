package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/config"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/runtime"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/store"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/system"
)

func TestNew(t *testing.T) {
	app := New()

	if app == nil {
		t.Fatal("New() returned nil")
	}
	if app.HostConfig == nil {
		t.Fatal("HostConfig should default")
	}
	if app.Paths().StateDir != config.DefaultStateDir {
		t.Errorf("Paths().StateDir = %q, want %q", app.Paths().StateDir, config.DefaultStateDir)
	}
}

func TestNew_WithHostConfig(t *testing.T) {
	cfg := config.DefaultHostConfig()
	cfg.StateDir = "/custom/state"

	app := New(WithHostConfig(cfg))

	if app.HostConfig != cfg {
		t.Error("WithHostConfig did not set host config")
	}
	if app.Paths().ConnectionsDir != "/custom/state/connections" {
		t.Errorf("ConnectionsDir = %q", app.Paths().ConnectionsDir)
	}
}

func TestGetRuntime_Provided(t *testing.T) {
	mockRuntime := runtime.NewMockRuntime()

	app := New(WithRuntime(mockRuntime))

	rt, err := app.GetRuntime()
	if err != nil {
		t.Fatalf("GetRuntime failed: %v", err)
	}
	if rt != mockRuntime {
		t.Error("GetRuntime did not return the provided runtime")
	}
}

func TestGetRuntime_Lazy(t *testing.T) {
	cfg := config.DefaultHostConfig()
	cfg.Runtime.Command = "podman"

	exec := system.NewMockExecutor()
	app := New(WithHostConfig(cfg), WithExecutor(exec))

	rt, err := app.GetRuntime()
	if err != nil {
		t.Fatalf("GetRuntime failed: %v", err)
	}
	if rt.Name() != "podman" {
		t.Errorf("Name() = %q, want podman", rt.Name())
	}

	again, _ := app.GetRuntime()
	if again != rt {
		t.Error("GetRuntime should build the runtime once")
	}
}

func TestGetRuntime_AutoDetectFails(t *testing.T) {
	cfg := config.DefaultHostConfig()
	cfg.Runtime.Command = string(runtime.RuntimeAuto)

	exec := system.NewMockExecutor()
	exec.Paths = map[string]string{}
	app := New(WithHostConfig(cfg), WithExecutor(exec))

	if _, err := app.GetRuntime(); err == nil {
		t.Error("GetRuntime should fail when no engine is installed")
	}
	if _, err := app.Manager(); err == nil {
		t.Error("Manager should fail without a runtime")
	}
}

func TestManager_UsesOptions(t *testing.T) {
	cfg := config.DefaultHostConfig()
	cfg.StateDir = t.TempDir()

	opened := false
	opener := store.Opener(func(ctx context.Context, opts store.Options) (store.Store, error) {
		opened = true
		return store.Open(ctx, opts)
	})

	app := New(
		WithHostConfig(cfg),
		WithRuntime(runtime.NewMockRuntime()),
		WithClock(func() time.Time { return time.Unix(0, 0) }),
		WithStoreOpener(opener),
	)

	m, err := app.Manager()
	if err != nil {
		t.Fatalf("Manager failed: %v", err)
	}
	if _, err := m.List(context.Background()); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if !opened {
		t.Error("Manager did not use the configured store opener")
	}
}

func TestSetDefault(t *testing.T) {
	original := Default
	defer SetDefault(original)

	custom := New()
	SetDefault(custom)
	if Default != custom {
		t.Error("SetDefault did not replace Default")
	}

	ResetDefault()
	if Default == custom {
		t.Error("ResetDefault should install a fresh App")
	}
}

func TestManager_StoreError(t *testing.T) {
	cfg := config.DefaultHostConfig()
	cfg.StateDir = t.TempDir()

	sentinel := errors.New("no store")
	app := New(
		WithHostConfig(cfg),
		WithRuntime(runtime.NewMockRuntime()),
		WithStoreOpener(func(context.Context, store.Options) (store.Store, error) { return nil, sentinel }),
	)

	m, err := app.Manager()
	if err != nil {
		t.Fatalf("Manager failed: %v", err)
	}
	if _, err := m.List(context.Background()); !errors.Is(err, sentinel) {
		t.Errorf("List error = %v, want sentinel", err)
	}
}
