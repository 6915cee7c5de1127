// Package health checks whether a guest container is usable.
//
// A guest is healthy when its container runs and something on the
// published port answers with an SSH identification banner.
//
//	StatusHealthy   - container running, banner received
//	StatusUnhealthy - container running (or unknown) but no banner
//	StatusStopped   - container exists but is not running
//	StatusMissing   - the runtime has no such container
//
// WaitForBanner is used after provisioning to block until sshd is up.
package health
