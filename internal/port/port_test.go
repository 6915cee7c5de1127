package port

import (
	"net"
	"testing"

	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/config"
	gerrors "github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/errors"
)

func records(ports ...int) []*config.AllocationRecord {
	recs := make([]*config.AllocationRecord, len(ports))
	for i, p := range ports {
		recs[i] = &config.AllocationRecord{Username: "u", Port: p}
	}
	return recs
}

func TestAllocate(t *testing.T) {
	r := config.PortRange{From: 2222, To: 2226}

	tests := []struct {
		name    string
		desired int
		active  []*config.AllocationRecord
		busy    []int
		want    int
		wantErr error
	}{
		{"empty store", 0, nil, nil, 2222, nil},
		{"skips used", 0, records(2222, 2223), nil, 2224, nil},
		{"fills gap", 0, records(2222, 2224), nil, 2223, nil},
		{"skips probed busy", 0, records(2222), []int{2223}, 2224, nil},
		{"exhausted", 0, records(2222, 2223, 2224, 2225, 2226), nil, 0, gerrors.ErrNoPortsAvailable},
		{"exhausted with probe", 0, records(2222, 2223), []int{2224, 2225, 2226}, 0, gerrors.ErrNoPortsAvailable},
		{"desired free", 2225, records(2222), nil, 2225, nil},
		{"desired held", 2222, records(2222), nil, 0, gerrors.ErrPortInUse},
		{"desired probed busy", 2225, nil, []int{2225}, 0, gerrors.ErrPortInUse},
		{"desired outside range", 9999, nil, nil, 0, gerrors.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			busy := make(map[int]bool)
			for _, p := range tt.busy {
				busy[p] = true
			}
			alloc := New(r).WithProbe(func(p int) bool { return busy[p] })

			got, err := alloc.Allocate(tt.desired, tt.active)
			if tt.wantErr != nil {
				if !gerrors.Is(err, tt.wantErr) {
					t.Fatalf("Allocate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Allocate() failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Allocate() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAllocate_NoProbe(t *testing.T) {
	alloc := New(config.PortRange{From: 40000, To: 40000})

	got, err := alloc.Allocate(0, nil)
	if err != nil {
		t.Fatalf("Allocate() failed: %v", err)
	}
	if got != 40000 {
		t.Errorf("Allocate() = %d, want 40000", got)
	}
}

func TestAllocate_Sequential(t *testing.T) {
	alloc := New(config.PortRange{From: 3000, To: 3010})
	var active []*config.AllocationRecord

	for i := 0; i < 5; i++ {
		p, err := alloc.Allocate(0, active)
		if err != nil {
			t.Fatalf("Allocate %d failed: %v", i, err)
		}
		if want := 3000 + i; p != want {
			t.Errorf("iteration %d: port = %d, want %d", i, p, want)
		}
		active = append(active, &config.AllocationRecord{Port: p})
	}
}

func TestTCPProbe(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Skipf("cannot listen: %v", err)
	}
	defer ln.Close()

	p := ln.Addr().(*net.TCPAddr).Port
	if !TCPProbe(p) {
		t.Errorf("TCPProbe(%d) = false for a bound port", p)
	}
}
