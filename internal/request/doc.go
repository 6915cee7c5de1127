// Package request normalizes a raw provisioning request into the immutable
// form consumed by the lifecycle manager.
//
// Validation order is fixed: username, port, public key, image, extra run
// arguments. The first failing check decides the rejection reason.
package request
