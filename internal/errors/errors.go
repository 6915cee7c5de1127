package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Exit codes for guest-ctl
const (
	ExitSuccess            = 0
	ExitGeneralError       = 1
	ExitInvalidInput       = 2
	ExitConflict           = 3
	ExitStoreUnavailable   = 4
	ExitPortAllocation     = 5
	ExitProvisioningFailed = 6
	ExitConfigError        = 7
	ExitNotFound           = 8
)

// Kind classifies an error for callers that need to branch on it.
type Kind string

const (
	KindInvalidInput          Kind = "InvalidInput"
	KindConflictingAllocation Kind = "ConflictingAllocation"
	KindStoreUnavailable      Kind = "StoreUnavailable"
	KindPortInUse             Kind = "PortInUse"
	KindNoPortsAvailable      Kind = "NoPortsAvailable"
	KindProvisioningFailed    Kind = "ProvisioningFailed"
	KindTemplateError         Kind = "TemplateError"
	KindConfigError           Kind = "ConfigError"
	KindNotFound              Kind = "NotFound"
)

// Reason refines a Kind (rejection reasons, runtime failure modes).
type Reason string

const (
	ReasonMissingUsername Reason = "MissingUsername"
	ReasonInvalidUsername Reason = "InvalidUsername"
	ReasonInvalidKey      Reason = "InvalidKey"
	ReasonInvalidPort     Reason = "InvalidPort"
	ReasonMissingImage    Reason = "MissingImage"
	ReasonInvalidRunArgs  Reason = "InvalidRunArgs"
	ReasonRuntimeTimeout  Reason = "RuntimeTimeout"
	ReasonRuntimeError    Reason = "RuntimeError"
)

// GuestError is the base error type for guest-ctl
type GuestError struct {
	Kind    Kind
	Reason  Reason
	Code    int
	Message string
	Cause   error

	// Set for runtime failures.
	Step       string
	ExitStatus int
	Output     string
}

func (e *GuestError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *GuestError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the exit code for this error
func (e *GuestError) ExitCode() int {
	return e.Code
}

// Is matches sentinels by Kind, and by Reason when the target sets one.
func (e *GuestError) Is(target error) bool {
	t, ok := target.(*GuestError)
	if !ok || (t.Kind == "" && t.Reason == "") {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	if t.Reason != "" && t.Reason != e.Reason {
		return false
	}
	return true
}

// OutputTail returns the last n non-empty lines of captured runtime output.
func (e *GuestError) OutputTail(n int) string {
	lines := strings.Split(strings.TrimRight(e.Output, "\n"), "\n")
	var kept []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			kept = append(kept, l)
		}
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return strings.Join(kept, "\n")
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidInput          = &GuestError{Kind: KindInvalidInput}
	ErrConflictingAllocation = &GuestError{Kind: KindConflictingAllocation}
	ErrStoreUnavailable      = &GuestError{Kind: KindStoreUnavailable}
	ErrPortInUse             = &GuestError{Kind: KindPortInUse}
	ErrNoPortsAvailable      = &GuestError{Kind: KindNoPortsAvailable}
	ErrProvisioningFailed    = &GuestError{Kind: KindProvisioningFailed}
	ErrRuntimeTimeout        = &GuestError{Kind: KindProvisioningFailed, Reason: ReasonRuntimeTimeout}
	ErrTemplateError         = &GuestError{Kind: KindTemplateError}
	ErrConfigError           = &GuestError{Kind: KindConfigError}
	ErrNotFound              = &GuestError{Kind: KindNotFound}
)

// New creates a new GuestError of the given kind.
func New(kind Kind, code int, message string) *GuestError {
	return &GuestError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a GuestError.
func Wrap(kind Kind, code int, message string, cause error) *GuestError {
	return &GuestError{
		Kind:    kind,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Rejections

func invalid(reason Reason, message string, cause error) *GuestError {
	return &GuestError{
		Kind:    KindInvalidInput,
		Reason:  reason,
		Code:    ExitInvalidInput,
		Message: message,
		Cause:   cause,
	}
}

// MissingUsername rejects a request without a username.
func MissingUsername() *GuestError {
	return invalid(ReasonMissingUsername, "username must be specified", nil)
}

// InvalidUsername rejects a username that is not filesystem/identifier safe.
func InvalidUsername(name string, cause error) *GuestError {
	return invalid(ReasonInvalidUsername, fmt.Sprintf("invalid username %q", name), cause)
}

// InvalidKey rejects a public key that fails the structural check.
func InvalidKey(cause error) *GuestError {
	return invalid(ReasonInvalidKey, "invalid public key", cause)
}

// InvalidPort rejects a desired port outside the allocatable range.
func InvalidPort(port, from, to int) *GuestError {
	return invalid(ReasonInvalidPort, fmt.Sprintf("port %d is outside the allocatable range %d-%d", port, from, to), nil)
}

// MissingImage rejects a request with an empty container image reference.
func MissingImage() *GuestError {
	return invalid(ReasonMissingImage, "container image must be specified", nil)
}

// InvalidRunArgs rejects extra run arguments that cannot be tokenized.
func InvalidRunArgs(cause error) *GuestError {
	return invalid(ReasonInvalidRunArgs, "invalid extra run arguments", cause)
}

// ConflictingAllocation reports an existing record whose parameters differ.
func ConflictingAllocation(username string, fields []string) *GuestError {
	return New(KindConflictingAllocation, ExitConflict,
		fmt.Sprintf("allocation for %s already exists with a different %s (use --force to replace it)",
			username, strings.Join(fields, ", ")))
}

// StoreUnavailable reports a store that cannot be opened or written.
func StoreUnavailable(op string, cause error) *GuestError {
	return Wrap(KindStoreUnavailable, ExitStoreUnavailable, fmt.Sprintf("allocation store %s failed", op), cause)
}

// PortInUse reports a desired port already held by an active allocation.
func PortInUse(port int) *GuestError {
	return New(KindPortInUse, ExitPortAllocation, fmt.Sprintf("port %d is already in use", port))
}

// NoPortsAvailable reports an exhausted port range.
func NoPortsAvailable(from, to int) *GuestError {
	return New(KindNoPortsAvailable, ExitPortAllocation, fmt.Sprintf("no available ports in range %d-%d", from, to))
}

// TemplateError reports an unreadable or unrenderable build template.
func TemplateError(path string, cause error) *GuestError {
	return Wrap(KindTemplateError, ExitConfigError, fmt.Sprintf("build template %s", path), cause)
}

// ProvisioningFailed reports a failed external runtime step.
// exitStatus is -1 when the runtime did not report one.
func ProvisioningFailed(step string, exitStatus int, output string, cause error) *GuestError {
	msg := fmt.Sprintf("container %s failed", step)
	if exitStatus >= 0 {
		msg = fmt.Sprintf("container %s failed (exit %d)", step, exitStatus)
	}
	return &GuestError{
		Kind:       KindProvisioningFailed,
		Reason:     ReasonRuntimeError,
		Code:       ExitProvisioningFailed,
		Message:    msg,
		Cause:      cause,
		Step:       step,
		ExitStatus: exitStatus,
		Output:     output,
	}
}

// RuntimeTimeout reports a runtime step that exceeded its deadline.
func RuntimeTimeout(step string, timeout time.Duration, output string) *GuestError {
	return &GuestError{
		Kind:       KindProvisioningFailed,
		Reason:     ReasonRuntimeTimeout,
		Code:       ExitProvisioningFailed,
		Message:    fmt.Sprintf("container %s timed out after %s", step, timeout),
		Step:       step,
		ExitStatus: -1,
		Output:     output,
	}
}

// ConfigError returns an error for configuration issues
func ConfigError(message string, cause error) *GuestError {
	return Wrap(KindConfigError, ExitConfigError, message, cause)
}

// AllocationNotFound returns an error for a username without an allocation.
func AllocationNotFound(username string) *GuestError {
	return New(KindNotFound, ExitNotFound, fmt.Sprintf("no allocation for user %s", username))
}

// GetExitCode extracts the exit code from an error
func GetExitCode(err error) int {
	var guestErr *GuestError
	if errors.As(err, &guestErr) {
		return guestErr.ExitCode()
	}
	return ExitGeneralError
}

// KindOf returns the Kind of the first GuestError in err's chain.
func KindOf(err error) Kind {
	var guestErr *GuestError
	if errors.As(err, &guestErr) {
		return guestErr.Kind
	}
	return ""
}

// Is checks if an error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}
