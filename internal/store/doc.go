// Package store persists allocation records across invocations.
//
// A Store maps usernames to config.AllocationRecord values. Two backends
// exist:
//
//   - json: a single allocations.json document rewritten atomically on
//     every change (temp file, fsync, rename)
//   - sqlite: an allocations table accessed through bun on the pure-Go
//     modernc.org/sqlite driver
//
// Both take an advisory flock on "<path>.lock" for as long as the store is
// open: exclusive for writers, shared for read-only opens. A lock held by
// another process is reported as StoreUnavailable instead of blocking.
//
// # Scoped Use
//
//	err := store.With(ctx, opts, func(s store.Store) error {
//	    rec, err := s.Get(ctx, "rdyro")
//	    ...
//	})
//
// With always closes the store, joining any close error into its result.
package store
