// Package testutil provides test environments and key material.
//
// NewTestEnv wires a temporary state directory, a JSON allocation store, a
// mock runtime and an app.App installed as app.Default:
//
//	env := testutil.NewTestEnv(t)
//	defer env.Cleanup()
//
//	res, err := env.Manager().Provision(ctx, env.Raw("rdyro"))
//
// PublicKey generates a real ed25519 authorized_keys line:
//
//	key := testutil.PublicKey(t, "rdyro@laptop")
package testutil
