// Package app provides the application context for guest-ctl.
//
// This package manages application-wide dependencies using the functional
// options pattern, enabling easy testing through dependency injection.
//
// # App Context
//
// The App struct holds core dependencies:
//
//	type App struct {
//	    HostConfig *config.HostConfig // Host configuration
//	    Runtime    runtime.Runtime    // Container runtime (lazy)
//	    Executor   system.CommandExecutor
//	    Prober     port.Prober
//	}
//
// # Creating an App
//
// Use New with functional options:
//
//	// Production usage
//	a := app.New(app.WithHostConfig(cfg))
//
//	// Testing with custom dependencies
//	a := app.New(
//	    app.WithHostConfig(testConfig),
//	    app.WithRuntime(mockRuntime),
//	    app.WithProber(func(int) bool { return false }),
//	)
//
// Commands obtain a lifecycle manager through Default.Manager().
package app
