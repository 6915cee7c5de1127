package lifecycle

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/audit"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/config"
	gerrors "github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/errors"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/generator"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/logging"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/port"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/request"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/runtime"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/store"
)

// Manager coordinates the store, port allocator, context builder and
// container runtime.
type Manager struct {
	cfg       *config.HostConfig
	paths     *config.Paths
	rt        runtime.Runtime
	renderer  *generator.Renderer
	allocator *port.Allocator
	audit     *audit.Logger
	open      store.Opener
	now       func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithProber installs a host port probe on the allocator.
func WithProber(p port.Prober) Option {
	return func(m *Manager) {
		m.allocator.WithProbe(p)
	}
}

// WithClock overrides the time source used for createdAt.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithStoreOpener overrides how the allocation store is opened.
func WithStoreOpener(open store.Opener) Option {
	return func(m *Manager) {
		m.open = open
	}
}

// NewManager creates a Manager for the host configuration and runtime.
func NewManager(cfg *config.HostConfig, rt runtime.Runtime, opts ...Option) *Manager {
	paths := cfg.Paths()
	m := &Manager{
		cfg:       cfg,
		paths:     paths,
		rt:        rt,
		renderer:  generator.NewRenderer(cfg),
		allocator: port.New(cfg.PortRange),
		audit:     audit.NewLogger(paths.AuditDir),
		open:      store.Open,
		now:       time.Now,
	}
	if cfg.ProbePorts {
		m.allocator.WithProbe(port.TCPProbe)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Audit returns the audit logger used by the manager.
func (m *Manager) Audit() *audit.Logger {
	return m.audit
}

// Result describes the outcome of a provisioning run. It is returned on
// failure too, with State set to Rejected or Failed.
type Result struct {
	State State
	Trace []State

	Username      string
	Host          string
	Port          int
	ContainerName string

	Reused bool
	DryRun bool

	// Context is the rendered build context; nil when reused or rejected.
	Context    *generator.BuildContext
	Digest     string
	ContextDir string

	// Record is the committed or reused allocation.
	Record *config.AllocationRecord

	// Replaced is the previous allocation superseded by a forced update.
	Replaced *config.AllocationRecord

	Warnings []string
}

func (r *Result) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Provision validates raw and runs it through the state machine.
func (m *Manager) Provision(ctx context.Context, raw request.Raw) (*Result, error) {
	res := &Result{
		State:    StateRequested,
		Trace:    []State{StateRequested},
		Username: raw.Username,
		DryRun:   raw.DryRun,
	}

	req, err := request.Validate(raw, m.cfg.PortRange)
	if err != nil {
		res.advance(StateRejected)
		logging.Debug("request rejected", "username", raw.Username, "error", err)
		return res, err
	}
	res.advance(StateValidated)
	res.Username = req.Username
	res.Host = m.hostFor(req)

	logging.Debug("provisioning", "request", req.String(), "dryRun", req.DryRun, "force", req.Force)

	opts := store.OptionsFor(m.cfg, !req.Mutates())
	err = m.open.With(ctx, opts, func(s store.Store) error {
		return m.provision(ctx, s, req, res)
	})
	if err != nil && !res.State.Terminal() {
		res.advance(StateFailed)
	}
	return res, err
}

func (m *Manager) hostFor(req request.Request) string {
	if req.ReverseProxyHost != "" {
		return req.ReverseProxyHost
	}
	return m.cfg.DefaultHost
}

func (m *Manager) provision(ctx context.Context, s store.Store, req request.Request, res *Result) error {
	existing, err := s.Get(ctx, req.Username)
	if err != nil {
		return err
	}

	if existing != nil {
		diffs := conflicts(existing, req)
		soft := softDifferences(existing, req)
		switch {
		case len(diffs) == 0 && (len(soft) == 0 || !req.Force):
			m.reuse(existing, soft, req, res)
			return nil
		case len(diffs) > 0 && !req.Force:
			res.advance(StateRejected)
			m.record(req, audit.EventReject, existing.Port, fmt.Sprintf("conflicting %s", strings.Join(diffs, ", ")))
			return gerrors.ConflictingAllocation(req.Username, diffs)
		}
		res.Replaced = existing
	}

	res.advance(StateBuilding)

	active, err := s.ListActive(ctx)
	if err != nil {
		return err
	}
	allocated, err := m.allocator.Allocate(req.DesiredPort, active)
	if err != nil {
		m.record(req, audit.EventFail, req.DesiredPort, err.Error())
		return err
	}

	name := config.ContainerName(req.Username, allocated)
	res.Port = allocated
	res.ContainerName = name

	bc, err := m.renderer.Render(req.Username, req.PublicKey, req.ContainerImage)
	if err != nil {
		return err
	}

	contextDir, err := m.paths.ContextDir(req.Username, allocated)
	if err != nil {
		return gerrors.InvalidUsername(req.Username, err)
	}

	spec := runtime.RunSpec{
		Name:          name,
		Image:         req.ContainerImage,
		Username:      req.Username,
		ContextDir:    contextDir,
		HostPort:      allocated,
		ContainerPort: m.cfg.Runtime.SSHPort,
		GPUs:          req.GPUs,
		ExtraArgs:     req.RunArgs(),
	}
	bc.AddLaunchScripts(generator.LaunchOptions{
		Command:          m.rt.Name(),
		RunArgs:          runtime.RunArgs(spec),
		ContainerName:    name,
		Port:             allocated,
		ReverseProxyHost: req.ReverseProxyHost,
	})

	res.Context = bc
	res.Digest = bc.Digest()
	res.ContextDir = contextDir
	res.advance(StateBuilt)

	if req.DryRun {
		logging.Debug("dry run, stopping before runtime", "container", name, "port", allocated)
		return nil
	}

	if err := bc.Materialize(contextDir); err != nil {
		return gerrors.ProvisioningFailed("write-context", -1, "", err)
	}
	if m.cfg.Runtime.StreamContext {
		archive, err := bc.ArchiveBytes()
		if err != nil {
			m.removeContext(contextDir)
			return gerrors.ProvisioningFailed("write-context", -1, "", err)
		}
		spec.ContextArchive = archive
	}

	logging.Info("building and starting container", "container", name, "image", req.ContainerImage, "port", allocated)
	if _, err := m.rt.Provision(ctx, spec); err != nil {
		m.removeContext(contextDir)
		m.record(req, audit.EventFail, allocated, err.Error())
		var ge *gerrors.GuestError
		if gerrors.As(err, &ge) {
			return err
		}
		return gerrors.ProvisioningFailed("run", -1, "", err)
	}
	res.advance(StateRunning)

	rec := &config.AllocationRecord{
		Username:          req.Username,
		Port:              allocated,
		ContainerImageRef: req.ContainerImage,
		PublicKey:         req.PublicKey,
		CreatedAt:         m.now().UTC(),
		ExtraRunArgs:      req.RunArgs(),
		GPUSpec:           req.GPUs,
	}
	rec.Normalize()

	if err := s.Put(ctx, rec); err != nil {
		// The container must not outlive a missing record.
		if derr := m.rt.Destroy(ctx, name); derr != nil {
			logging.Warn("failed to destroy container after commit failure", "container", name, "error", derr)
			res.warn("container %s is running but was not recorded; remove it manually", name)
		}
		m.removeContext(contextDir)
		m.record(req, audit.EventFail, allocated, err.Error())
		if gerrors.Is(err, gerrors.ErrStoreUnavailable) {
			return err
		}
		return gerrors.StoreUnavailable("put", err)
	}
	res.Record = rec
	res.advance(StateCommitted)

	if res.Replaced != nil {
		m.retire(ctx, res.Replaced, res)
		m.record(req, audit.EventUpdate, allocated, fmt.Sprintf("replaced %s", res.Replaced.ContainerName()))
	} else {
		m.record(req, audit.EventCreate, allocated, "image="+rec.ContainerImageRef)
	}

	return nil
}

func (m *Manager) reuse(existing *config.AllocationRecord, soft []string, req request.Request, res *Result) {
	res.advance(StateReused)
	res.Reused = true
	res.Record = existing
	res.Port = existing.Port
	res.ContainerName = existing.ContainerName()
	if dir, err := m.paths.ContextDir(existing.Username, existing.Port); err == nil {
		res.ContextDir = dir
	}

	for _, field := range soft {
		res.warn("requested %s differ from the running allocation; use --force to apply them", field)
	}

	m.record(req, audit.EventReuse, existing.Port, "")
}

// retire removes the allocation superseded by a forced update.
func (m *Manager) retire(ctx context.Context, old *config.AllocationRecord, res *Result) {
	name := old.ContainerName()
	if err := m.rt.Destroy(ctx, name); err != nil {
		logging.Warn("failed to destroy replaced container", "container", name, "error", err)
		res.warn("replaced container %s could not be removed: %v", name, err)
		return
	}
	if dir, err := m.paths.ContextDir(old.Username, old.Port); err == nil {
		m.removeContext(dir)
	}
	m.record(request.Request{Username: old.Username}, audit.EventDestroy, old.Port, "replaced")
}

func (m *Manager) removeContext(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		logging.Warn("failed to remove build context", "dir", dir, "error", err)
	}
}

// record appends an audit event. Dry runs leave no trace.
func (m *Manager) record(req request.Request, t audit.EventType, port int, details string) {
	if req.DryRun {
		return
	}
	event := audit.Event{Type: t, Username: req.Username, Details: details}
	if port > 0 {
		event.Port = port
		event.Container = config.ContainerName(req.Username, port)
	}
	if err := m.audit.Log(event); err != nil {
		logging.Warn("failed to write audit event", "username", req.Username, "event", t, "error", err)
	}
}

// conflicts lists the credential or placement fields in which req differs
// from rec.
func conflicts(rec *config.AllocationRecord, req request.Request) []string {
	var diffs []string
	if rec.PublicKey != req.PublicKey {
		diffs = append(diffs, "publicKey")
	}
	if rec.ContainerImageRef != req.ContainerImage {
		diffs = append(diffs, "containerImage")
	}
	if req.HasDesiredPort() && req.DesiredPort != rec.Port {
		diffs = append(diffs, "port")
	}
	return diffs
}

// softDifferences lists request fields that differ from rec but do not
// block reuse.
func softDifferences(rec *config.AllocationRecord, req request.Request) []string {
	var diffs []string
	if rec.GPUSpec != req.GPUs {
		diffs = append(diffs, "gpus")
	}
	if !slices.Equal(req.RunArgs(), rec.ExtraRunArgs) {
		diffs = append(diffs, "extra run arguments")
	}
	return diffs
}
