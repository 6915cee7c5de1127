// Package lifecycle decides, for a provisioning request, whether an
// allocation is reused, rejected, or built and committed.
//
// A provisioning run moves through these states:
//
//	Requested → Validated → Reused
//	Requested → Validated → Building → Built → Running → Committed
//
// Rejected and Failed are reachable from every non-terminal state. A dry
// run stops at Built. The store is written only after the runtime has
// reported the container running, and nothing is retried.
package lifecycle
