// Package runtime drives the external container engine.
//
// The engine (docker or podman) is treated as an opaque executable. Every
// invocation goes through a system.CommandExecutor, is bounded by a
// timeout, and has its exit status and combined output captured.
//
// # Runtime Interface
//
// The Runtime interface covers what the lifecycle manager needs:
//   - Provision: build the per-user image and start its container
//   - Start, Stop, Destroy: lifecycle of an existing container
//   - IsRunning, Status: container state queries
//
// Failures are returned as *errors.GuestError of kind ProvisioningFailed.
// A deadline expiry carries the RuntimeTimeout reason.
//
// # Mock Runtime
//
// For testing, use NewMockRuntime() to create a mock implementation that can
// be configured with injected errors and used to verify calls.
package runtime
