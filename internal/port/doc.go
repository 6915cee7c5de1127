// Package port allocates host ports for guest SSH endpoints.
//
// Ports come from the inclusive range configured in HostConfig. A port is
// taken when an active allocation record holds it, or when the optional
// probe reports it busy on the host.
//
//	alloc := port.New(hostConfig.PortRange)
//	p, err := alloc.Allocate(0, activeRecords)
//
// # Allocation Strategy
//
// A desired port is honored or rejected, never substituted. Without one the
// lowest free port in the range is chosen (first-fit).
package port
