// Package config provides configuration types and loading for guest-ctl.
//
// # Configuration Files
//
//   - HostConfig: host-level settings from /etc/guest-ctl/config.toml
//   - RequestFile: a JSON provisioning request passed with up --config
//   - AllocationRecord: the persisted per-user allocation
//
// # Host Configuration
//
//	state_dir     = "/var/lib/guest-ctl"
//	default_host  = "localhost"
//	default_image = "nvcr.io/nvidia/pytorch:23.10-py3"
//	probe_ports   = false
//
//	[port_range]
//	from = 32778
//	to   = 33777
//
//	[store]
//	backend = "json"   # or "sqlite"
//
//	[runtime]
//	command  = "docker"
//	timeout  = "30m"
//	ssh_port = 22
//
// A missing file yields DefaultHostConfig. Unknown keys are rejected.
//
// # Request Files
//
// Request files mirror the up flags. snake_case, kebab-case and camelCase
// spellings are accepted, and comments are stripped before decoding.
//
// # Validation
//
// Configuration types implement Validate(). Loading functions validate
// after parsing.
package config
