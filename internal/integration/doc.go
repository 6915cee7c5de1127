// Package integration provides a test harness for integration tests
// that drive a real container runtime.
//
// Integration tests are skipped unless the GUEST_CTL_INTEGRATION_TESTS
// environment variable is set. They need docker or podman on PATH, network
// access to pull the base image, and free ports in the harness range.
//
//	func TestMyIntegration(t *testing.T) {
//	    h := integration.NewHarness(t) // Skips if env var not set
//	    res := h.Provision("alice")
//	    h.WaitForSSH(res.Port, time.Minute)
//	}
//
// Every allocation made through the harness is released on t.Cleanup.
package integration
