// Package memory implements metadata.Store with in-memory maps persisted to a
// single YAML file.
package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/pkg/metadata"
	"github.com/marmos91/dittostore/pkg/observer"
	"gopkg.in/yaml.v3"
)

// FileName is the name of the persisted state file inside a store root.
const FileName = "meta.yaml"

// Config holds the construction parameters of a memory store.
type Config struct {
	// Path is the YAML file backing the store. Empty disables persistence:
	// Save and Shutdown then only release state.
	Path string `mapstructure:"path"`

	// Sync saves after every committed mutation. A mutation whose save fails
	// is reverted and reported as metadata.ErrPersistence. Without Sync the
	// file is only written by Save and Shutdown.
	Sync bool `mapstructure:"sync"`

	// Notifier receives META_* actions. Nil means the null notifier.
	Notifier observer.Notifier `mapstructure:"-"`
}

// state is the on-disk layout of meta.yaml.
type state struct {
	Current map[string]metadata.Record `yaml:"current"`
	Removed map[string]metadata.Record `yaml:"removed"`
}

// MemoryMetadataStore implements metadata.Store using two maps guarded by a
// single read-write mutex.
//
// Persistence:
// The complete {current, removed} structure is written to Path on Save and
// Shutdown, replacing the previous file atomically (write to a temporary file
// in the same directory, then rename). The file is read once on construction;
// a missing file means an empty store.
type MemoryMetadataStore struct {
	mu sync.RWMutex

	path     string
	sync     bool
	notifier observer.Notifier

	// current holds records of live files, removed those of soft-deleted ones.
	// The key sets are disjoint.
	current map[string]metadata.Record
	removed map[string]metadata.Record

	closed bool
}

// NewMemoryMetadataStore creates a store, loading previous state from
// config.Path if the file exists.
//
// Returns:
//   - *MemoryMetadataStore: Ready store
//   - error: metadata.ErrPersistence if the file exists but cannot be read or parsed
func NewMemoryMetadataStore(config Config) (*MemoryMetadataStore, error) {
	s := &MemoryMetadataStore{
		path:     config.Path,
		sync:     config.Sync,
		notifier: observer.OrNop(config.Notifier),
		current:  make(map[string]metadata.Record),
		removed:  make(map[string]metadata.Record),
	}

	if s.path == "" {
		return s, nil
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		logger.Debug("No metadata file at %s, starting empty", s.path)
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", metadata.ErrPersistence, s.path, err)
	}

	var st state
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", metadata.ErrPersistence, s.path, err)
	}

	for id, rec := range st.Current {
		s.current[id] = normalize(rec)
	}
	for id, rec := range st.Removed {
		if _, dup := s.current[id]; dup {
			// Disjointness is restored in favour of the live entry.
			logger.Warn("Metadata id %s present in both sets of %s, keeping current", id, s.path)
			continue
		}
		s.removed[id] = normalize(rec)
	}

	logger.Debug("Loaded metadata from %s: %d current, %d removed", s.path, len(s.current), len(s.removed))
	return s, nil
}

// Factory returns a metadata.Factory placing meta.yaml at the store root.
// The Path of base is ignored.
func Factory(base Config, notifier observer.Notifier) metadata.Factory {
	return func(root string) (metadata.Store, error) {
		cfg := base
		cfg.Path = filepath.Join(root, FileName)
		cfg.Notifier = notifier
		return NewMemoryMetadataStore(cfg)
	}
}

// Path returns the backing file, or "" for a volatile store.
func (s *MemoryMetadataStore) Path() string {
	return s.path
}

func (s *MemoryMetadataStore) Get(id string) (metadata.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, metadata.ErrClosed
	}
	rec, ok := s.current[id]
	if !ok {
		return nil, fmt.Errorf("id %q: %w", id, metadata.ErrNotFound)
	}
	return rec.Clone(), nil
}

func (s *MemoryMetadataStore) GetRemoved(id string) (metadata.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, metadata.ErrClosed
	}
	rec, ok := s.removed[id]
	if !ok {
		return nil, fmt.Errorf("removed id %q: %w", id, metadata.ErrNotFound)
	}
	return rec.Clone(), nil
}

func (s *MemoryMetadataStore) AddOrUpdate(id string, fields metadata.Record) error {
	if id == "" {
		return fmt.Errorf("empty id: %w", metadata.ErrInvalidArgument)
	}
	if fields == nil {
		return fmt.Errorf("id %q: nil fields: %w", id, metadata.ErrInvalidArgument)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return metadata.ErrClosed
	}
	if _, gone := s.removed[id]; gone {
		s.mu.Unlock()
		return fmt.Errorf("id %q is removed: %w", id, metadata.ErrInvalidArgument)
	}
	previous, existed := s.current[id]
	rec := previous.Clone()
	if rec == nil {
		rec = make(metadata.Record, len(fields))
	}
	rec.Merge(fields)
	s.current[id] = rec

	if err := s.syncLocked(); err != nil {
		if existed {
			s.current[id] = previous
		} else {
			delete(s.current, id)
		}
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	metadata.Inform(s.notifier, observer.ActionMetaAdd, "record added or updated", id)
	return nil
}

func (s *MemoryMetadataStore) Remove(id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return metadata.ErrClosed
	}
	rec, ok := s.current[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("id %q: %w", id, metadata.ErrNotFound)
	}
	delete(s.current, id)
	s.removed[id] = rec

	if err := s.syncLocked(); err != nil {
		delete(s.removed, id)
		s.current[id] = rec
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	metadata.Inform(s.notifier, observer.ActionMetaRemove, "record moved to removed", id)
	return nil
}

func (s *MemoryMetadataStore) Restore(id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return metadata.ErrClosed
	}
	rec, ok := s.removed[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("removed id %q: %w", id, metadata.ErrNotFound)
	}
	delete(s.removed, id)
	s.current[id] = rec

	if err := s.syncLocked(); err != nil {
		delete(s.current, id)
		s.removed[id] = rec
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	metadata.Inform(s.notifier, observer.ActionMetaRestore, "record restored", id)
	return nil
}

func (s *MemoryMetadataStore) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}
	_, ok := s.current[id]
	return ok
}

func (s *MemoryMetadataStore) HasRemoved(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}
	_, ok := s.removed[id]
	return ok
}

func (s *MemoryMetadataStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, metadata.ErrClosed
	}
	return sortedIDs(s.current), nil
}

func (s *MemoryMetadataStore) ListRemoved() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, metadata.ErrClosed
	}
	return sortedIDs(s.removed), nil
}

func (s *MemoryMetadataStore) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return metadata.ErrClosed
	}
	return s.saveLocked()
}

func (s *MemoryMetadataStore) Shutdown() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return metadata.ErrClosed
	}
	if err := s.saveLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.closed = true
	s.current = nil
	s.removed = nil
	s.mu.Unlock()

	metadata.Inform(s.notifier, observer.ActionMetaShutdown, "metadata store shut down", s.path)
	return nil
}

// syncLocked saves when the store runs in Sync mode. Caller must hold s.mu.
func (s *MemoryMetadataStore) syncLocked() error {
	if !s.sync {
		return nil
	}
	return s.saveLocked()
}

// saveLocked writes the YAML state. Caller must hold s.mu (read or write).
func (s *MemoryMetadataStore) saveLocked() error {
	if s.path == "" {
		return nil
	}

	data, err := yaml.Marshal(state{Current: s.current, Removed: s.removed})
	if err != nil {
		return fmt.Errorf("%w: encode: %w", metadata.ErrPersistence, err)
	}

	// Step 1: write the full state next to the target
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("%w: %w", metadata.ErrPersistence, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %w", metadata.ErrPersistence, tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: sync %s: %w", metadata.ErrPersistence, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: close %s: %w", metadata.ErrPersistence, tmpName, err)
	}

	// Step 2: replace the previous file in one step
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: replace %s: %w", metadata.ErrPersistence, s.path, err)
	}

	logger.Debug("Saved metadata to %s: %d current, %d removed", s.path, len(s.current), len(s.removed))
	return nil
}

// normalize returns an empty record for a nil YAML mapping (a record written
// as `id: {}` or `id:`).
func normalize(rec metadata.Record) metadata.Record {
	if rec == nil {
		return metadata.Record{}
	}
	return rec
}

func sortedIDs(m map[string]metadata.Record) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
