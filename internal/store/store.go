package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/config"
	gerrors "github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/errors"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/logging"
)

// Store is the durable username to allocation mapping.
type Store interface {
	// Get returns the record for username, or nil when there is none.
	Get(ctx context.Context, username string) (*config.AllocationRecord, error)

	// Put atomically replaces the record for rec.Username. A failed Put
	// leaves the previous record intact. A different user holding
	// rec.Port yields PortInUse.
	Put(ctx context.Context, rec *config.AllocationRecord) error

	// ListActive returns all records ordered by port.
	ListActive(ctx context.Context) ([]*config.AllocationRecord, error)

	// Delete removes the record for username. Deleting a missing record
	// is not an error.
	Delete(ctx context.Context, username string) error

	// Close releases the lock and any open handles.
	Close() error
}

// Options selects and opens a backend.
type Options struct {
	Backend  string
	Path     string
	ReadOnly bool
}

// OptionsFor derives store options from the host configuration.
func OptionsFor(cfg *config.HostConfig, readOnly bool) Options {
	return Options{
		Backend:  cfg.Store.Backend,
		Path:     cfg.Paths().StorePath,
		ReadOnly: readOnly,
	}
}

// Open opens the store described by opts.
func Open(ctx context.Context, opts Options) (Store, error) {
	if opts.Path == "" {
		return nil, gerrors.StoreUnavailable("open", fmt.Errorf("store path is empty"))
	}

	if !opts.ReadOnly {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
			return nil, gerrors.StoreUnavailable("open", err)
		}
	}

	lock, err := acquireLock(opts.Path+".lock", opts.ReadOnly)
	if err != nil {
		return nil, gerrors.StoreUnavailable("lock", err)
	}

	var s Store
	switch opts.Backend {
	case config.StoreBackendJSON, "":
		s, err = openJSON(opts.Path, opts.ReadOnly, lock)
	case config.StoreBackendSQLite:
		if opts.ReadOnly && !exists(opts.Path) {
			// Nothing was ever committed; read as an empty store.
			s, err = openJSON(opts.Path, true, lock)
			break
		}
		s, err = openSQLite(ctx, opts.Path, opts.ReadOnly, lock)
	default:
		err = gerrors.StoreUnavailable("open", fmt.Errorf("unknown backend %q", opts.Backend))
	}
	if err != nil {
		_ = lock.release()
		return nil, err
	}

	logging.Debug("opened allocation store", "backend", opts.Backend, "path", opts.Path, "readOnly", opts.ReadOnly)
	return s, nil
}

// Opener opens a store. Open is the default.
type Opener func(ctx context.Context, opts Options) (Store, error)

// With opens the store, runs fn, and always closes the store.
func With(ctx context.Context, opts Options, fn func(Store) error) error {
	return Opener(Open).With(ctx, opts, fn)
}

// With opens a store through o, runs fn, and always closes the store. A
// close error is joined into the result.
func (o Opener) With(ctx context.Context, opts Options, fn func(Store) error) (err error) {
	s, err := o(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			err = errors.Join(err, gerrors.StoreUnavailable("close", cerr))
		}
	}()
	return fn(s)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// checkPortOwner returns PortInUse when port belongs to a user other than
// username.
func checkPortOwner(recs []*config.AllocationRecord, username string, port int) error {
	for _, r := range recs {
		if r.Port == port && r.Username != username {
			return gerrors.PortInUse(port)
		}
	}
	return nil
}

func validateForPut(rec *config.AllocationRecord) error {
	if rec == nil {
		return gerrors.StoreUnavailable("put", fmt.Errorf("nil record"))
	}
	if err := rec.Validate(); err != nil {
		return gerrors.StoreUnavailable("put", fmt.Errorf("invalid record: %w", err))
	}
	return nil
}
