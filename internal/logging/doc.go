// Package logging provides logging utilities for guest-ctl.
//
// Two categories of output:
//   - Debug logging: structured logs via slog, on stderr
//   - User output: status lines for the operator
//
// # Debug Logging
//
//	logging.Debug("allocating port", "username", name, "desired", port)
//	logging.Warn("ssh not ready", "port", port, "timeout", timeout)
//
// Setup(verbose, json, w) selects the level and text or JSON handler.
//
// # User Output
//
//	logging.UserInfo("Provisioning %s...", username)
//	logging.UserSuccess("Created a container for user %s on port %d", username, port)
//	logging.UserWarning("Old container %s could not be removed", name)
//	logging.UserError("Provisioning failed: %v", err)
//
// UserInfo and UserSuccess write to stdout, UserWarning and UserError to
// stderr. Prefixes (ℹ ✓ ⚠ ✗) are colored with fatih/color when the output
// is a terminal.
package logging
