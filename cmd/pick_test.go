package cmd

import (
	"context"
	"strings"
	"testing"

	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/config"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/runtime"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/testutil"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/tui"
)

func TestPick_NoTerminal(t *testing.T) {
	env := setupTestEnv(t)
	env.AddAllocation(&config.AllocationRecord{Username: "alice", Port: 2223, ContainerImageRef: testutil.Image, PublicKey: env.Key("alice")})

	stdout, _, err := executeCommand("pick")
	if err != nil {
		t.Fatalf("pick failed: %v", err)
	}
	if !strings.Contains(stdout, "alice") || !strings.Contains(stdout, "Port: 2223") {
		t.Errorf("pick output = %q", stdout)
	}
}

func TestPick_Actions(t *testing.T) {
	env := setupTestEnv(t)
	env.AddAllocation(&config.AllocationRecord{Username: "alice", Port: 2223, ContainerImageRef: testutil.Image, PublicKey: env.Key("alice")})
	stdoutIsTerminal = func() bool { return true }

	var action tui.Action
	orig := runPicker
	runPicker = func(items []tui.Item) (tui.PickerResult, error) {
		if len(items) != 1 {
			t.Fatalf("picker got %d items, want 1", len(items))
		}
		return tui.PickerResult{Action: action, Item: &items[0]}, nil
	}
	t.Cleanup(func() { runPicker = orig })

	action = tui.ActionConnect
	stdout, _, err := executeCommand("pick")
	if err != nil {
		t.Fatalf("pick failed: %v", err)
	}
	if !strings.Contains(stdout, "Connect: ssh -p 2223") || !strings.Contains(stdout, "alice@") {
		t.Errorf("connect output = %q", stdout)
	}

	action = tui.ActionToggle
	if _, _, err := executeCommand("pick"); err != nil {
		t.Fatalf("pick toggle failed: %v", err)
	}
	if env.Runtime.Containers["alice_2223"].Status != runtime.StatusStopped {
		t.Error("toggle should stop a running container")
	}
	if _, _, err := executeCommand("pick"); err != nil {
		t.Fatalf("pick toggle failed: %v", err)
	}
	if env.Runtime.Containers["alice_2223"].Status != runtime.StatusRunning {
		t.Error("toggle should start a stopped container")
	}

	action = tui.ActionDown
	stdout, _, err = executeCommand("pick")
	if err != nil {
		t.Fatalf("pick down failed: %v", err)
	}
	if !strings.Contains(stdout, "guest-ctl down alice") {
		t.Errorf("down output = %q", stdout)
	}
	if env.Allocation("alice") == nil {
		t.Error("pick must not release on its own")
	}
}

func TestPickerItems(t *testing.T) {
	env := setupTestEnv(t)
	env.AddAllocation(&config.AllocationRecord{Username: "alice", Port: 2223, ContainerImageRef: testutil.Image, PublicKey: env.Key("alice")})
	env.AddAllocation(&config.AllocationRecord{Username: "bob", Port: 2224, ContainerImageRef: testutil.Image, PublicKey: env.Key("bob")})
	delete(env.Runtime.Containers, "bob_2224")

	entries, err := env.Manager().List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	items := pickerItems(context.Background(), entries)
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[1].Status != "missing" {
		t.Errorf("bob status = %q, want missing", items[1].Status)
	}
}
