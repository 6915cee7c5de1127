package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/config"
	gerrors "github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/errors"
)

const jsonStoreVersion = 1

// jsonDocument is the on-disk layout of allocations.json.
type jsonDocument struct {
	Version     int                                 `json:"version"`
	Allocations map[string]*config.AllocationRecord `json:"allocations"`
}

// JSONStore keeps all records in one JSON document.
type JSONStore struct {
	mu       sync.RWMutex
	path     string
	readOnly bool
	lock     *fileLock
	records  map[string]*config.AllocationRecord

	// writeFile replaces the document; swapped in tests to inject failures.
	writeFile func(path string, data []byte) error
}

func openJSON(path string, readOnly bool, lock *fileLock) (*JSONStore, error) {
	s := &JSONStore{
		path:      path,
		readOnly:  readOnly,
		lock:      lock,
		records:   make(map[string]*config.AllocationRecord),
		writeFile: atomicWriteFile,
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, gerrors.StoreUnavailable("read", err)
	}

	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, gerrors.StoreUnavailable("read", fmt.Errorf("corrupt store %s: %w", path, err))
	}
	if doc.Version != jsonStoreVersion {
		return nil, gerrors.StoreUnavailable("read", fmt.Errorf("unsupported store version %d in %s", doc.Version, path))
	}

	for name, rec := range doc.Allocations {
		if rec == nil || rec.Username != name {
			return nil, gerrors.StoreUnavailable("read", fmt.Errorf("corrupt store %s: record key %q does not match username", path, name))
		}
		rec.Normalize()
		s.records[name] = rec
	}

	return s, nil
}

func (s *JSONStore) Get(ctx context.Context, username string) (*config.AllocationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[username].Clone(), nil
}

func (s *JSONStore) ListActive(ctx context.Context) ([]*config.AllocationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedRecords(s.records), nil
}

func (s *JSONStore) Put(ctx context.Context, rec *config.AllocationRecord) error {
	if err := validateForPut(rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return gerrors.StoreUnavailable("put", fmt.Errorf("store opened read-only"))
	}
	if err := checkPortOwner(sortedRecords(s.records), rec.Username, rec.Port); err != nil {
		return err
	}

	next := make(map[string]*config.AllocationRecord, len(s.records)+1)
	for k, v := range s.records {
		next[k] = v
	}
	next[rec.Username] = rec.Clone()

	if err := s.flush(next); err != nil {
		return gerrors.StoreUnavailable("put", err)
	}
	s.records = next
	return nil
}

func (s *JSONStore) Delete(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return gerrors.StoreUnavailable("delete", fmt.Errorf("store opened read-only"))
	}
	if _, ok := s.records[username]; !ok {
		return nil
	}

	next := make(map[string]*config.AllocationRecord, len(s.records))
	for k, v := range s.records {
		if k != username {
			next[k] = v
		}
	}

	if err := s.flush(next); err != nil {
		return gerrors.StoreUnavailable("delete", err)
	}
	s.records = next
	return nil
}

func (s *JSONStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lock.release()
}

func (s *JSONStore) flush(records map[string]*config.AllocationRecord) error {
	data, err := json.MarshalIndent(jsonDocument{
		Version:     jsonStoreVersion,
		Allocations: records,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}
	return s.writeFile(s.path, append(data, '\n'))
}

// atomicWriteFile writes data to a temp file in the same directory, syncs
// it and renames it over path.
func atomicWriteFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp store file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing store data: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing store data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp store file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		return fmt.Errorf("setting store permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming store file: %w", err)
	}

	success = true
	return nil
}

func sortedRecords(m map[string]*config.AllocationRecord) []*config.AllocationRecord {
	out := make([]*config.AllocationRecord, 0, len(m))
	for _, r := range m {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Port != out[j].Port {
			return out[i].Port < out[j].Port
		}
		return out[i].Username < out[j].Username
	})
	return out
}

var _ Store = (*JSONStore)(nil)
