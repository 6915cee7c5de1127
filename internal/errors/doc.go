// Package errors provides typed errors with exit codes for guest-ctl.
//
// # Error Types
//
// GuestError carries a Kind (what went wrong), an optional Reason (why),
// the process exit code and, for container runtime failures, the step,
// exit status and captured output:
//
//	type GuestError struct {
//	    Kind       Kind   // InvalidInput, ConflictingAllocation, ...
//	    Reason     Reason // MissingUsername, InvalidKey, RuntimeTimeout, ...
//	    Code       int    // Exit code
//	    Message    string // User-facing message
//	    Cause      error  // Wrapped error
//	    Step       string // Runtime step (build, run, ...)
//	    ExitStatus int    // Runtime exit status, -1 if unknown
//	    Output     string // Captured runtime output
//	}
//
// # Exit Codes
//
//	ExitSuccess            = 0
//	ExitGeneralError       = 1
//	ExitInvalidInput       = 2
//	ExitConflict           = 3
//	ExitStoreUnavailable   = 4
//	ExitPortAllocation     = 5
//	ExitProvisioningFailed = 6
//	ExitConfigError        = 7
//	ExitNotFound           = 8
//
// # Matching
//
// Sentinels match by Kind (and Reason when set), so wrapped errors can be
// tested with the standard library:
//
//	if errors.Is(err, errors.ErrConflictingAllocation) { ... }
//	if errors.Is(err, errors.ErrRuntimeTimeout) { ... }
//
// # Extracting Exit Codes
//
//	if err != nil {
//	    os.Exit(errors.GetExitCode(err))
//	}
package errors
