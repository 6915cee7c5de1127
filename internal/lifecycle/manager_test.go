package lifecycle_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/audit"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/config"
	gerrors "github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/errors"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/generator"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/lifecycle"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/request"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/store"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/testutil"
)

// countingStore counts Put calls and can fail them.
type countingStore struct {
	store.Store
	puts   *int
	putErr error
}

func (s countingStore) Put(ctx context.Context, rec *config.AllocationRecord) error {
	*s.puts++
	if s.putErr != nil {
		return s.putErr
	}
	return s.Store.Put(ctx, rec)
}

func instrument(env *testutil.TestEnv, putErr error) *int {
	puts := new(int)
	env.App.Opener = func(ctx context.Context, opts store.Options) (store.Store, error) {
		s, err := store.Open(ctx, opts)
		if err != nil {
			return nil, err
		}
		return countingStore{Store: s, puts: puts, putErr: putErr}, nil
	}
	return puts
}

func trace(states ...lifecycle.State) []lifecycle.State {
	return states
}

func TestProvision_CreatesAllocation(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := context.Background()

	res, err := env.Manager().Provision(ctx, env.Raw("rdyro"))
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	want := trace(lifecycle.StateRequested, lifecycle.StateValidated, lifecycle.StateBuilding,
		lifecycle.StateBuilt, lifecycle.StateRunning, lifecycle.StateCommitted)
	if !reflect.DeepEqual(res.Trace, want) {
		t.Errorf("Trace = %v, want %v", res.Trace, want)
	}
	if res.Port != testutil.PortFrom {
		t.Errorf("Port = %d, want %d", res.Port, testutil.PortFrom)
	}
	if res.Host != "localhost" {
		t.Errorf("Host = %q, want localhost", res.Host)
	}
	if res.ContainerName != "rdyro_2222" {
		t.Errorf("ContainerName = %q, want rdyro_2222", res.ContainerName)
	}
	if res.Reused || res.DryRun || res.Digest == "" {
		t.Errorf("unexpected result flags: %+v", res)
	}

	rec := env.Allocation("rdyro")
	if rec == nil {
		t.Fatal("no record committed")
	}
	if rec.Port != 2222 || rec.ContainerImageRef != testutil.Image || rec.PublicKey != env.Key("rdyro") {
		t.Errorf("record = %+v", rec)
	}
	if !rec.CreatedAt.Equal(testutil.Now) {
		t.Errorf("CreatedAt = %v, want %v", rec.CreatedAt, testutil.Now)
	}
	if !rec.Equal(res.Record) {
		t.Error("Result.Record differs from the stored record")
	}

	calls := env.Runtime.GetCallsFor("Provision")
	if len(calls) != 1 {
		t.Fatalf("Provision called %d times, want 1", len(calls))
	}
	spec := env.Runtime.Specs["rdyro_2222"]
	if spec.HostPort != 2222 || spec.ContainerPort != config.DefaultSSHPort || spec.Image != testutil.Image || spec.Username != "rdyro" {
		t.Errorf("spec = %+v", spec)
	}
	if spec.ContextDir != res.ContextDir {
		t.Errorf("spec.ContextDir = %q, want %q", spec.ContextDir, res.ContextDir)
	}

	keys, err := os.ReadFile(filepath.Join(res.ContextDir, generator.AuthorizedKeysName))
	if err != nil {
		t.Fatalf("authorized_keys not written: %v", err)
	}
	if string(keys) != env.Key("rdyro")+"\n" {
		t.Errorf("authorized_keys = %q, want only the requested key", keys)
	}
	if want := filepath.Join(env.Paths.ConnectionsDir, "rdyro_2222"); res.ContextDir != want {
		t.Errorf("ContextDir = %q, want %q", res.ContextDir, want)
	}

	events, _ := env.Manager().Audit().Events("rdyro")
	if len(events) != 1 || events[0].Type != audit.EventCreate || events[0].Port != 2222 {
		t.Errorf("audit events = %+v, want one create", events)
	}
}

func TestProvision_ReverseProxyHost(t *testing.T) {
	env := testutil.NewTestEnv(t)

	raw := env.Raw("rdyro")
	raw.ReverseProxyHost = "gateway.example.org"

	res, err := env.Manager().Provision(context.Background(), raw)
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	if res.Host != "gateway.example.org" {
		t.Errorf("Host = %q, want gateway.example.org", res.Host)
	}
	if _, ok := res.Context.File(generator.TunnelScriptName); !ok {
		t.Error("tunnel script missing from context")
	}
}

func TestProvision_Idempotent(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := context.Background()
	puts := instrument(env, nil)

	first, err := env.Manager().Provision(ctx, env.Raw("rdyro"))
	if err != nil {
		t.Fatalf("first Provision failed: %v", err)
	}
	before := env.Allocation("rdyro")
	callsBefore := len(env.Runtime.GetCalls())
	putsBefore := *puts

	second, err := env.Manager().Provision(ctx, env.Raw("rdyro"))
	if err != nil {
		t.Fatalf("second Provision failed: %v", err)
	}

	if second.State != lifecycle.StateReused || !second.Reused {
		t.Errorf("State = %s, want Reused", second.State)
	}
	if want := trace(lifecycle.StateRequested, lifecycle.StateValidated, lifecycle.StateReused); !reflect.DeepEqual(second.Trace, want) {
		t.Errorf("Trace = %v, want %v", second.Trace, want)
	}
	if second.Port != first.Port || second.Host != first.Host {
		t.Errorf("reused access point = %s:%d, want %s:%d", second.Host, second.Port, first.Host, first.Port)
	}
	if n := len(env.Runtime.GetCalls()) - callsBefore; n != 0 {
		t.Errorf("second call made %d runtime calls, want 0", n)
	}
	if n := *puts - putsBefore; n != 0 {
		t.Errorf("second call made %d store writes, want 0", n)
	}
	if !before.Equal(env.Allocation("rdyro")) {
		t.Error("stored record changed on reuse")
	}
	if len(second.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", second.Warnings)
	}
}

func TestProvision_ReuseWithSameDesiredPort(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := context.Background()

	if _, err := env.Manager().Provision(ctx, env.Raw("rdyro")); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	raw := env.Raw("rdyro")
	raw.Port = 2222
	res, err := env.Manager().Provision(ctx, raw)
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	if !res.Reused {
		t.Errorf("State = %s, want Reused", res.State)
	}
}

func TestProvision_PortsAreUnique(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := context.Background()

	users := []string{"alice", "bob", "carol", "dave", "erin"}
	seen := make(map[int]string)
	for i, u := range users {
		res, err := env.Manager().Provision(ctx, env.Raw(u))
		if err != nil {
			t.Fatalf("Provision(%s) failed: %v", u, err)
		}
		if other, dup := seen[res.Port]; dup {
			t.Errorf("port %d given to both %s and %s", res.Port, other, u)
		}
		seen[res.Port] = u
		if res.Port != testutil.PortFrom+i {
			t.Errorf("Provision(%s).Port = %d, want %d", u, res.Port, testutil.PortFrom+i)
		}
	}

	if got := len(env.Allocations()); got != len(users) {
		t.Errorf("store holds %d records, want %d", got, len(users))
	}
}

func TestProvision_DeterministicPort(t *testing.T) {
	for i := 0; i < 3; i++ {
		env := testutil.NewTestEnv(t)
		env.AddAllocation(&config.AllocationRecord{
			Username: "holder", Port: 2222, ContainerImageRef: testutil.Image, PublicKey: env.Key("holder"),
		})
		env.AddAllocation(&config.AllocationRecord{
			Username: "other", Port: 2224, ContainerImageRef: testutil.Image, PublicKey: env.Key("other"),
		})

		raw := env.Raw("rdyro")
		raw.DryRun = true
		res, err := env.Manager().Provision(context.Background(), raw)
		if err != nil {
			t.Fatalf("Provision failed: %v", err)
		}
		if res.Port != 2223 {
			t.Errorf("run %d: Port = %d, want 2223", i, res.Port)
		}
	}
}

func TestProvision_RuntimeFailureCommitsNothing(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := context.Background()

	runErr := gerrors.ProvisioningFailed("run", 125, "Bind for 0.0.0.0:2222 failed: port is already allocated", nil)
	env.Runtime.SetError("Provision", runErr)

	res, err := env.Manager().Provision(ctx, env.Raw("rdyro"))
	if !gerrors.Is(err, gerrors.ErrProvisioningFailed) {
		t.Fatalf("error = %v, want ProvisioningFailed", err)
	}
	var ge *gerrors.GuestError
	if !gerrors.As(err, &ge) || ge.ExitStatus != 125 || ge.Step != "run" {
		t.Errorf("runtime failure detail lost: %+v", ge)
	}

	if res.State != lifecycle.StateFailed {
		t.Errorf("State = %s, want Failed", res.State)
	}
	if want := trace(lifecycle.StateRequested, lifecycle.StateValidated, lifecycle.StateBuilding,
		lifecycle.StateBuilt, lifecycle.StateFailed); !reflect.DeepEqual(res.Trace, want) {
		t.Errorf("Trace = %v, want %v", res.Trace, want)
	}
	if rec := env.Allocation("rdyro"); rec != nil {
		t.Errorf("record committed after runtime failure: %+v", rec)
	}
	if _, err := os.Stat(res.ContextDir); !os.IsNotExist(err) {
		t.Errorf("context dir left behind after failure: %v", err)
	}

	events, _ := env.Manager().Audit().Events("rdyro")
	if len(events) != 1 || events[0].Type != audit.EventFail {
		t.Errorf("audit events = %+v, want one fail", events)
	}
}

func TestProvision_PlainRuntimeErrorIsWrapped(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.Runtime.SetError("Provision", errors.New("engine exploded"))

	_, err := env.Manager().Provision(context.Background(), env.Raw("rdyro"))
	if !gerrors.Is(err, gerrors.ErrProvisioningFailed) {
		t.Errorf("error = %v, want ProvisioningFailed", err)
	}
	if code := gerrors.GetExitCode(err); code != gerrors.ExitProvisioningFailed {
		t.Errorf("exit code = %d, want %d", code, gerrors.ExitProvisioningFailed)
	}
}

func TestProvision_Timeout(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.Runtime.SetError("Provision", gerrors.RuntimeTimeout("build", env.HostConfig.RuntimeTimeout(), ""))

	_, err := env.Manager().Provision(context.Background(), env.Raw("rdyro"))
	if !gerrors.Is(err, gerrors.ErrRuntimeTimeout) {
		t.Errorf("error = %v, want RuntimeTimeout", err)
	}
	if rec := env.Allocation("rdyro"); rec != nil {
		t.Error("record committed after timeout")
	}
}

func TestProvision_DryRunIsPure(t *testing.T) {
	env := testutil.NewTestEnv(t)

	raw := env.Raw("rdyro")
	raw.DryRun = true

	res, err := env.Manager().Provision(context.Background(), raw)
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	if want := trace(lifecycle.StateRequested, lifecycle.StateValidated, lifecycle.StateBuilding, lifecycle.StateBuilt); !reflect.DeepEqual(res.Trace, want) {
		t.Errorf("Trace = %v, want %v", res.Trace, want)
	}
	if res.Port != 2222 || res.Host != "localhost" || !res.DryRun {
		t.Errorf("dry run result = %s:%d dry=%v", res.Host, res.Port, res.DryRun)
	}
	if res.Context == nil {
		t.Fatal("dry run should still render the context")
	}
	if data, ok := res.Context.File(generator.AuthorizedKeysName); !ok || string(data) != env.Key("rdyro")+"\n" {
		t.Errorf("rendered authorized_keys = %q", data)
	}

	if calls := env.Runtime.GetCalls(); len(calls) != 0 {
		t.Errorf("runtime calls = %v, want none", calls)
	}
	if recs := env.Allocations(); len(recs) != 0 {
		t.Errorf("store holds %d records, want 0", len(recs))
	}
	for _, p := range []string{env.Paths.StorePath, env.Paths.ConnectionsDir, env.Paths.AuditDir} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("dry run created %s", p)
		}
	}
}

func TestProvision_ConflictRejected(t *testing.T) {
	tests := []struct {
		name   string
		modify func(env *testutil.TestEnv, raw *request.Raw)
	}{
		{"different key", func(env *testutil.TestEnv, raw *request.Raw) {
			raw.PublicKey = testutil.PublicKey(env.T, "alice@elsewhere")
		}},
		{"different image", func(env *testutil.TestEnv, raw *request.Raw) {
			raw.ContainerImage = "debian:12"
		}},
		{"different port", func(env *testutil.TestEnv, raw *request.Raw) {
			raw.Port = 2225
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testutil.NewTestEnv(t)
			ctx := context.Background()

			if _, err := env.Manager().Provision(ctx, env.Raw("alice")); err != nil {
				t.Fatalf("Provision failed: %v", err)
			}
			before := env.Allocation("alice")
			callsBefore := len(env.Runtime.GetCalls())

			raw := env.Raw("alice")
			tt.modify(env, &raw)
			res, err := env.Manager().Provision(ctx, raw)

			if !gerrors.Is(err, gerrors.ErrConflictingAllocation) {
				t.Fatalf("error = %v, want ConflictingAllocation", err)
			}
			if gerrors.GetExitCode(err) != gerrors.ExitConflict {
				t.Errorf("exit code = %d, want %d", gerrors.GetExitCode(err), gerrors.ExitConflict)
			}
			if want := trace(lifecycle.StateRequested, lifecycle.StateValidated, lifecycle.StateRejected); !reflect.DeepEqual(res.Trace, want) {
				t.Errorf("Trace = %v, want %v", res.Trace, want)
			}
			if !before.Equal(env.Allocation("alice")) {
				t.Error("stored record changed after rejected request")
			}
			if n := len(env.Runtime.GetCalls()) - callsBefore; n != 0 {
				t.Errorf("rejected request made %d runtime calls", n)
			}
		})
	}
}

func TestProvision_ForceReplaces(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := context.Background()

	first, err := env.Manager().Provision(ctx, env.Raw("alice"))
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	newKey := testutil.PublicKey(t, "alice@new")
	raw := env.Raw("alice")
	raw.PublicKey = newKey
	raw.Force = true

	res, err := env.Manager().Provision(ctx, raw)
	if err != nil {
		t.Fatalf("forced Provision failed: %v", err)
	}

	if res.State != lifecycle.StateCommitted {
		t.Errorf("State = %s, want Committed", res.State)
	}
	if res.Replaced == nil || res.Replaced.Port != first.Port {
		t.Errorf("Replaced = %+v, want the first allocation", res.Replaced)
	}
	if res.Port == first.Port {
		t.Errorf("new allocation reused port %d while the old container held it", res.Port)
	}

	rec := env.Allocation("alice")
	if rec.PublicKey != newKey || rec.Port != res.Port {
		t.Errorf("stored record = %+v, want new key on port %d", rec, res.Port)
	}
	if env.Runtime.HasContainer(first.ContainerName) {
		t.Errorf("old container %s still present", first.ContainerName)
	}
	if !env.Runtime.HasContainer(res.ContainerName) {
		t.Errorf("new container %s missing", res.ContainerName)
	}
	if _, err := os.Stat(first.ContextDir); !os.IsNotExist(err) {
		t.Errorf("old context dir still present: %v", err)
	}

	events, _ := env.Manager().Audit().Events("alice")
	var types []audit.EventType
	for _, e := range events {
		types = append(types, e.Type)
	}
	want := []audit.EventType{audit.EventCreate, audit.EventDestroy, audit.EventUpdate}
	if !reflect.DeepEqual(types, want) {
		t.Errorf("audit event types = %v, want %v", types, want)
	}
}

func TestProvision_ForceOnOwnPort(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := context.Background()

	if _, err := env.Manager().Provision(ctx, env.Raw("alice")); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	before := env.Allocation("alice")

	raw := env.Raw("alice")
	raw.PublicKey = testutil.PublicKey(t, "alice@new")
	raw.Port = before.Port
	raw.Force = true

	_, err := env.Manager().Provision(ctx, raw)
	if !gerrors.Is(err, gerrors.ErrPortInUse) {
		t.Fatalf("error = %v, want PortInUse", err)
	}
	if !before.Equal(env.Allocation("alice")) {
		t.Error("stored record changed")
	}
	if !env.Runtime.HasContainer(before.ContainerName()) {
		t.Error("old container was removed")
	}
}

func TestProvision_SoftDifferences(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := context.Background()

	if _, err := env.Manager().Provision(ctx, env.Raw("rdyro")); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	raw := env.Raw("rdyro")
	raw.GPUs = "all"
	raw.ExtraRunArgs = "--shm-size 8g"

	res, err := env.Manager().Provision(ctx, raw)
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	if !res.Reused {
		t.Errorf("State = %s, want Reused", res.State)
	}
	if len(res.Warnings) != 2 {
		t.Errorf("Warnings = %v, want one per differing field", res.Warnings)
	}

	raw.Force = true
	res, err = env.Manager().Provision(ctx, raw)
	if err != nil {
		t.Fatalf("forced Provision failed: %v", err)
	}
	if res.Reused || res.Replaced == nil {
		t.Errorf("forced request with new gpus should replace, got %s", res.State)
	}
	rec := env.Allocation("rdyro")
	if rec.GPUSpec != "all" || !reflect.DeepEqual(rec.ExtraRunArgs, []string{"--shm-size", "8g"}) {
		t.Errorf("stored record = %+v", rec)
	}
	spec := env.Runtime.Specs[res.ContainerName]
	if spec.GPUs != "all" || !reflect.DeepEqual(spec.ExtraArgs, []string{"--shm-size", "8g"}) {
		t.Errorf("runtime spec = %+v", spec)
	}
}

func TestProvision_CommitFailureDestroysContainer(t *testing.T) {
	env := testutil.NewTestEnv(t)
	puts := instrument(env, errors.New("disk full"))

	res, err := env.Manager().Provision(context.Background(), env.Raw("rdyro"))
	if !gerrors.Is(err, gerrors.ErrStoreUnavailable) {
		t.Fatalf("error = %v, want StoreUnavailable", err)
	}
	if *puts != 1 {
		t.Errorf("Put called %d times, want 1", *puts)
	}
	if res.State != lifecycle.StateFailed {
		t.Errorf("State = %s, want Failed", res.State)
	}
	if n := len(env.Runtime.GetCallsFor("Destroy")); n != 1 {
		t.Errorf("Destroy called %d times, want 1", n)
	}
	if env.Runtime.HasContainer("rdyro_2222") {
		t.Error("container survived a failed commit")
	}
	if rec := env.Allocation("rdyro"); rec != nil {
		t.Errorf("record present after failed commit: %+v", rec)
	}
}

func TestProvision_AllocationErrors(t *testing.T) {
	t.Run("desired port held", func(t *testing.T) {
		env := testutil.NewTestEnv(t)
		env.AddAllocation(&config.AllocationRecord{
			Username: "bob", Port: 2225, ContainerImageRef: testutil.Image, PublicKey: env.Key("bob"),
		})

		raw := env.Raw("alice")
		raw.Port = 2225
		_, err := env.Manager().Provision(context.Background(), raw)
		if !gerrors.Is(err, gerrors.ErrPortInUse) {
			t.Errorf("error = %v, want PortInUse", err)
		}
	})

	t.Run("range exhausted", func(t *testing.T) {
		env := testutil.NewTestEnv(t)
		for p := testutil.PortFrom; p <= testutil.PortTo; p++ {
			name := "user" + string(rune('a'+p-testutil.PortFrom))
			env.AddAllocation(&config.AllocationRecord{
				Username: name, Port: p, ContainerImageRef: testutil.Image, PublicKey: env.Key(name),
			})
		}

		_, err := env.Manager().Provision(context.Background(), env.Raw("latecomer"))
		if !gerrors.Is(err, gerrors.ErrNoPortsAvailable) {
			t.Errorf("error = %v, want NoPortsAvailable", err)
		}
		if n := len(env.Runtime.GetCallsFor("Provision")); n != 0 {
			t.Errorf("Provision called %d times", n)
		}
	})

	t.Run("port probed busy", func(t *testing.T) {
		env := testutil.NewTestEnv(t)
		env.App.Prober = func(p int) bool { return p == 2222 }

		res, err := env.Manager().Provision(context.Background(), env.Raw("alice"))
		if err != nil {
			t.Fatalf("Provision failed: %v", err)
		}
		if res.Port != 2223 {
			t.Errorf("Port = %d, want 2223", res.Port)
		}
	})
}

func TestProvision_InvalidRequest(t *testing.T) {
	env := testutil.NewTestEnv(t)

	raw := env.Raw("rdyro")
	raw.PublicKey = "ssh-rsa not-base64!"

	res, err := env.Manager().Provision(context.Background(), raw)
	if !gerrors.Is(err, &gerrors.GuestError{Reason: gerrors.ReasonInvalidKey}) {
		t.Fatalf("error = %v, want InvalidKey", err)
	}
	if want := trace(lifecycle.StateRequested, lifecycle.StateRejected); !reflect.DeepEqual(res.Trace, want) {
		t.Errorf("Trace = %v, want %v", res.Trace, want)
	}
	if _, err := os.Stat(env.Paths.StorePath); !os.IsNotExist(err) {
		t.Error("rejected request touched the store")
	}
}

func TestProvision_StoreLocked(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := context.Background()

	held, err := store.Open(ctx, env.StoreOptions(false))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer held.Close()

	res, err := env.Manager().Provision(ctx, env.Raw("rdyro"))
	if !gerrors.Is(err, gerrors.ErrStoreUnavailable) {
		t.Fatalf("error = %v, want StoreUnavailable", err)
	}
	if res.State != lifecycle.StateFailed {
		t.Errorf("State = %s, want Failed", res.State)
	}
	if calls := env.Runtime.GetCalls(); len(calls) != 0 {
		t.Errorf("runtime calls = %v, want none", calls)
	}
}

func TestProvision_StreamContext(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.HostConfig.Runtime.StreamContext = true

	res, err := env.Manager().Provision(context.Background(), env.Raw("rdyro"))
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	spec := env.Runtime.Specs[res.ContainerName]
	if len(spec.ContextArchive) == 0 {
		t.Error("context archive was not attached")
	}
}

func TestProvision_SQLiteBackend(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.HostConfig.Store.Backend = config.StoreBackendSQLite
	ctx := context.Background()

	if _, err := env.Manager().Provision(ctx, env.Raw("alice")); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	res, err := env.Manager().Provision(ctx, env.Raw("alice"))
	if err != nil {
		t.Fatalf("second Provision failed: %v", err)
	}
	if !res.Reused {
		t.Errorf("State = %s, want Reused", res.State)
	}
	if filepath.Ext(env.HostConfig.Paths().StorePath) != ".db" {
		t.Errorf("StorePath = %q, want an sqlite file", env.HostConfig.Paths().StorePath)
	}
}
