package lifecycle

import (
	"context"

	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/audit"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/config"
	gerrors "github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/errors"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/logging"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/runtime"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/store"
)

// Entry pairs an allocation with the runtime's view of its container.
type Entry struct {
	Record    *config.AllocationRecord
	Container *runtime.ContainerInfo
}

// lookup reads the record for username under a shared lock.
func (m *Manager) lookup(ctx context.Context, username string) (*config.AllocationRecord, error) {
	if err := config.ValidateUsername(username); err != nil {
		return nil, gerrors.InvalidUsername(username, err)
	}

	var rec *config.AllocationRecord
	err := m.open.With(ctx, store.OptionsFor(m.cfg, true), func(s store.Store) error {
		var err error
		rec, err = s.Get(ctx, username)
		return err
	})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, gerrors.AllocationNotFound(username)
	}
	return rec, nil
}

// Release destroys the user's container, then deletes the record and the
// build context. A failed destroy keeps the record.
func (m *Manager) Release(ctx context.Context, username string) (*config.AllocationRecord, error) {
	if err := config.ValidateUsername(username); err != nil {
		return nil, gerrors.InvalidUsername(username, err)
	}

	var released *config.AllocationRecord
	err := m.open.With(ctx, store.OptionsFor(m.cfg, false), func(s store.Store) error {
		rec, err := s.Get(ctx, username)
		if err != nil {
			return err
		}
		if rec == nil {
			return gerrors.AllocationNotFound(username)
		}

		if err := m.rt.Destroy(ctx, rec.ContainerName()); err != nil {
			m.logEvent(audit.EventFail, rec, "destroy: "+err.Error())
			return err
		}
		if err := s.Delete(ctx, username); err != nil {
			return err
		}

		if dir, err := m.paths.ContextDir(rec.Username, rec.Port); err == nil {
			m.removeContext(dir)
		}
		m.logEvent(audit.EventDestroy, rec, "released")
		released = rec
		return nil
	})
	return released, err
}

// Start starts the user's existing container.
func (m *Manager) Start(ctx context.Context, username string) (*config.AllocationRecord, error) {
	rec, err := m.lookup(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := m.rt.Start(ctx, rec.ContainerName()); err != nil {
		return rec, err
	}
	m.logEvent(audit.EventStart, rec, "")
	return rec, nil
}

// Stop stops the user's container, keeping the allocation.
func (m *Manager) Stop(ctx context.Context, username string) (*config.AllocationRecord, error) {
	rec, err := m.lookup(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := m.rt.Stop(ctx, rec.ContainerName()); err != nil {
		return rec, err
	}
	m.logEvent(audit.EventStop, rec, "")
	return rec, nil
}

// Status returns the user's allocation and container state.
func (m *Manager) Status(ctx context.Context, username string) (*Entry, error) {
	rec, err := m.lookup(ctx, username)
	if err != nil {
		return nil, err
	}
	return &Entry{Record: rec, Container: m.containerInfo(ctx, rec)}, nil
}

// List returns every active allocation ordered by port.
func (m *Manager) List(ctx context.Context) ([]Entry, error) {
	var recs []*config.AllocationRecord
	err := m.open.With(ctx, store.OptionsFor(m.cfg, true), func(s store.Store) error {
		var err error
		recs, err = s.ListActive(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(recs))
	for _, rec := range recs {
		entries = append(entries, Entry{Record: rec, Container: m.containerInfo(ctx, rec)})
	}
	return entries, nil
}

func (m *Manager) containerInfo(ctx context.Context, rec *config.AllocationRecord) *runtime.ContainerInfo {
	name := rec.ContainerName()
	info, err := m.rt.Status(ctx, name)
	if err != nil {
		logging.Debug("container status unavailable", "container", name, "error", err)
		return &runtime.ContainerInfo{Name: name, Status: runtime.StatusUnknown}
	}
	if info == nil {
		return &runtime.ContainerInfo{Name: name, Status: runtime.StatusNotFound}
	}
	return info
}

func (m *Manager) logEvent(t audit.EventType, rec *config.AllocationRecord, details string) {
	if err := m.audit.Record(t, rec, details); err != nil {
		logging.Warn("failed to write audit event", "username", rec.Username, "event", t, "error", err)
	}
}
