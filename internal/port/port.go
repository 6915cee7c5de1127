package port

import (
	"fmt"
	"net"

	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/config"
	gerrors "github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/errors"
)

// Prober reports whether a port is already bound on the host.
type Prober func(port int) bool

// Allocator hands out ports from a range.
type Allocator struct {
	Range config.PortRange

	// Probe is consulted for ports not held by a record. Nil skips probing.
	Probe Prober
}

// New creates an Allocator for the given range without probing.
func New(r config.PortRange) *Allocator {
	return &Allocator{Range: r}
}

// WithProbe returns the allocator with probe installed.
func (a *Allocator) WithProbe(probe Prober) *Allocator {
	a.Probe = probe
	return a
}

// Allocate picks a port. desired == 0 means no preference.
//
// A desired port must be inside the range and free; otherwise PortInUse is
// returned. Without a preference the lowest free port is returned, or
// NoPortsAvailable when the range is exhausted.
func (a *Allocator) Allocate(desired int, active []*config.AllocationRecord) (int, error) {
	used := make(map[int]bool, len(active))
	for _, rec := range active {
		used[rec.Port] = true
	}

	if desired != 0 {
		if !a.Range.Contains(desired) {
			return 0, gerrors.InvalidPort(desired, a.Range.From, a.Range.To)
		}
		if used[desired] || a.busy(desired) {
			return 0, gerrors.PortInUse(desired)
		}
		return desired, nil
	}

	for p := a.Range.From; p <= a.Range.To; p++ {
		if used[p] || a.busy(p) {
			continue
		}
		return p, nil
	}

	return 0, gerrors.NoPortsAvailable(a.Range.From, a.Range.To)
}

func (a *Allocator) busy(p int) bool {
	return a.Probe != nil && a.Probe(p)
}

// TCPProbe reports a port busy when it cannot be bound on all interfaces.
func TCPProbe(p int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", p))
	if err != nil {
		return true
	}
	_ = ln.Close()
	return false
}
