package app

import (
	"sync"
	"time"

	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/config"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/lifecycle"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/port"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/runtime"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/store"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/system"
)

// App holds the application dependencies
type App struct {
	// HostConfig is the loaded host configuration
	HostConfig *config.HostConfig

	// Runtime is the container runtime. Nil builds one from HostConfig
	// on first use.
	Runtime runtime.Runtime

	// Executor runs the runtime executable. Nil uses the system default.
	Executor system.CommandExecutor

	// Prober overrides host port probing when set.
	Prober port.Prober

	// Clock overrides the allocation timestamp source when set.
	Clock func() time.Time

	// Opener overrides how the allocation store is opened when set.
	Opener store.Opener

	once       sync.Once
	runtimeErr error
}

// Option is a function that configures the App
type Option func(*App)

// WithHostConfig sets a custom host config
func WithHostConfig(cfg *config.HostConfig) Option {
	return func(a *App) {
		a.HostConfig = cfg
	}
}

// WithRuntime sets a custom runtime
func WithRuntime(r runtime.Runtime) Option {
	return func(a *App) {
		a.Runtime = r
	}
}

// WithExecutor sets the executor used by a lazily built runtime
func WithExecutor(exec system.CommandExecutor) Option {
	return func(a *App) {
		a.Executor = exec
	}
}

// WithProber sets a custom port probe
func WithProber(p port.Prober) Option {
	return func(a *App) {
		a.Prober = p
	}
}

// WithClock sets a custom time source
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.Clock = now
	}
}

// WithStoreOpener sets a custom store opener
func WithStoreOpener(open store.Opener) Option {
	return func(a *App) {
		a.Opener = open
	}
}

// New creates a new App with the given options. Without WithHostConfig the
// built-in defaults are used.
func New(opts ...Option) *App {
	app := &App{}

	for _, opt := range opts {
		opt(app)
	}

	if app.HostConfig == nil {
		app.HostConfig = config.DefaultHostConfig()
	}

	return app
}

// Paths returns the state layout of the host configuration
func (a *App) Paths() *config.Paths {
	return a.HostConfig.Paths()
}

// GetRuntime returns the container runtime, building it on first use.
func (a *App) GetRuntime() (runtime.Runtime, error) {
	a.once.Do(func() {
		if a.Runtime != nil {
			return
		}
		a.Runtime, a.runtimeErr = runtime.New(&runtime.Config{
			Type:     runtime.RuntimeType(a.HostConfig.Runtime.Command),
			Timeout:  a.HostConfig.RuntimeTimeout(),
			Executor: a.Executor,
		})
	})
	return a.Runtime, a.runtimeErr
}

// Manager returns a lifecycle manager wired to the app's dependencies.
func (a *App) Manager() (*lifecycle.Manager, error) {
	rt, err := a.GetRuntime()
	if err != nil {
		return nil, err
	}

	var opts []lifecycle.Option
	if a.Prober != nil {
		opts = append(opts, lifecycle.WithProber(a.Prober))
	}
	if a.Clock != nil {
		opts = append(opts, lifecycle.WithClock(a.Clock))
	}
	if a.Opener != nil {
		opts = append(opts, lifecycle.WithStoreOpener(a.Opener))
	}
	return lifecycle.NewManager(a.HostConfig, rt, opts...), nil
}

// Default is the default application instance
var Default = New()

// SetDefault sets the default application instance (used for testing)
func SetDefault(app *App) {
	Default = app
}

// ResetDefault resets to the default application instance
func ResetDefault() {
	Default = New()
}
