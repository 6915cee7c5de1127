package config

import (
	"fmt"
	"slices"
	"time"
)

// AllocationRecord binds a username to its running container, host port
// and the key that grants access to it. There is at most one record per
// username and per port.
type AllocationRecord struct {
	Username          string    `json:"username"`
	Port              int       `json:"port"`
	ContainerImageRef string    `json:"containerImageRef"`
	PublicKey         string    `json:"publicKey"`
	CreatedAt         time.Time `json:"createdAt"`
	ExtraRunArgs      []string  `json:"extraRunArgs"`
	GPUSpec           string    `json:"gpuSpec,omitempty"`
}

// ContainerName returns the container name for the record.
func (r *AllocationRecord) ContainerName() string {
	return ContainerName(r.Username, r.Port)
}

// Normalize replaces a nil ExtraRunArgs with an empty slice so the record
// serializes as [] rather than null.
func (r *AllocationRecord) Normalize() {
	if r.ExtraRunArgs == nil {
		r.ExtraRunArgs = []string{}
	}
}

// Clone returns a deep copy of the record.
func (r *AllocationRecord) Clone() *AllocationRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.ExtraRunArgs = slices.Clone(r.ExtraRunArgs)
	c.Normalize()
	return &c
}

// Equal reports whether two records hold the same values.
func (r *AllocationRecord) Equal(o *AllocationRecord) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.Username == o.Username &&
		r.Port == o.Port &&
		r.ContainerImageRef == o.ContainerImageRef &&
		r.PublicKey == o.PublicKey &&
		r.CreatedAt.Equal(o.CreatedAt) &&
		slices.Equal(r.ExtraRunArgs, o.ExtraRunArgs) &&
		r.GPUSpec == o.GPUSpec
}

// Validate checks that the AllocationRecord is valid.
func (r *AllocationRecord) Validate() error {
	if err := ValidateUsername(r.Username); err != nil {
		return err
	}
	if r.Port < 1 || r.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535 (got %d)", r.Port)
	}
	if r.ContainerImageRef == "" {
		return fmt.Errorf("containerImageRef is required")
	}
	if r.PublicKey == "" {
		return fmt.Errorf("publicKey is required")
	}
	if r.CreatedAt.IsZero() {
		return fmt.Errorf("createdAt is required")
	}
	return nil
}
