// Package generator renders per-user container build contexts.
//
// A build context is a Dockerfile rendered from a template plus an
// authorized_keys file holding exactly one public key. Each render
// produces a fresh context; nothing is merged from earlier renders.
//
//	r := &generator.Renderer{SSHPort: 22}
//	bc, err := r.Render("rdyro", "ssh-ed25519 AAAA... rdyro", "ubuntu:latest")
//	bc.AddLaunchScripts(generator.LaunchOptions{...})
//	err = bc.Materialize("/var/lib/guest-ctl/connections/rdyro_32778")
//
// # Template
//
// The Dockerfile template is a text/template receiving .Username,
// .BaseImage and .SSHPort. The embedded default installs openssh-server,
// creates the user and copies authorized_keys into its home. A custom
// template can be configured with [template] path in config.toml.
//
// # Outputs
//
// Materialize replaces the target directory atomically. Archive writes a
// tar.gz suitable for streaming to "docker build -". Digest returns a
// BLAKE3 hash that is identical for identical inputs.
package generator
