// Package filestore implements a file store keyed by generated identifiers.
//
// Files live in date-partitioned directories under <root>/filestore and move
// to <root>/deleted on soft-delete. A metadata.Store records each file's
// current path together with caller-supplied fields. Every operation moves
// the file first and commits metadata only after the move succeeded; when the
// metadata commit fails the move is undone, so a record always points at the
// file it describes.
package filestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/pkg/metadata"
	"github.com/marmos91/dittostore/pkg/observer"
)

// Source is the observer.Action source of file store actions.
const Source = "filestore"

// State is the lifecycle state of a Store.
type State int

const (
	StateClosed State = iota
	StateOpening
	StateOpen
	// StateShutdown is terminal; a shut-down store is never reopened.
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// File is a stored file as returned by Get.
type File struct {
	ID   string
	Path string
	Data metadata.Record
}

// Open opens the stored file for reading.
func (f *File) Open() (*os.File, error) {
	return os.Open(f.Path)
}

// Store is a single-root file store.
//
// Thread Safety:
// All operations are serialized by an internal mutex. The lock marker only
// prevents a second instance (in this or another process) from opening the
// same root.
type Store struct {
	mu sync.Mutex

	layout    Layout
	state     State
	recovered bool

	meta      metadata.Store
	metaDone  bool
	notifier  observer.Notifier
	allocator DailyAllocator
	ids       IDGenerator
}

// Open bootstraps the store at root.
//
// Step 1: fail with ErrAlreadyLocked if the lock marker exists.
// Step 2: fail with ErrInvalidRoot unless root is a writable directory.
// Step 3: recover the layout from the descriptor; on any failure create it.
// Step 4: open the metadata backend and place the lock marker.
//
// Parameters:
//   - root: Directory owning the store. Must exist.
//   - opts: Metadata backend, notifier, clock and identifier source
//
// Returns:
//   - *Store: Open store
//   - error: ErrAlreadyLocked, ErrInvalidRoot or ErrStoreInit
func Open(root string, opts ...Option) (*Store, error) {
	o := buildOptions(opts)

	s := &Store{
		state:     StateOpening,
		notifier:  o.notifier,
		allocator: DailyAllocator{Now: o.now},
		ids:       IDGenerator{New: o.newID},
	}

	layout, err := NewLayout(root)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %w", ErrInvalidRoot, root, err)
	}
	s.layout = layout

	// Step 1: single instance per root
	if _, err := os.Lstat(layout.Lock); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyLocked, layout.Lock)
	}

	// Step 2: usable root
	info, err := os.Stat(layout.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, layout.Root)
	}
	if err := checkWritable(layout.Root); err != nil {
		return nil, fmt.Errorf("%w: %s is not writable: %w", ErrInvalidRoot, layout.Root, err)
	}

	// Step 3: recover or create
	if err := s.recover(); err != nil {
		logger.Info("Cannot recover store at %s (%v), creating a new one", layout.Root, err)
		if err := s.create(o.now()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStoreInit, err)
		}
	} else {
		s.recovered = true
	}

	// Step 4: metadata, then lock
	meta, err := o.metadata(layout.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: open metadata: %w", ErrStoreInit, err)
	}
	s.meta = meta

	lock, err := os.OpenFile(layout.Lock, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		_ = meta.Shutdown()
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyLocked, layout.Lock)
		}
		return nil, fmt.Errorf("%w: place lock: %w", ErrStoreInit, err)
	}
	_ = lock.Close()

	s.state = StateOpen
	logger.Info("Opened file store at %s (recovered=%t)", layout.Root, s.recovered)
	return s, nil
}

func (s *Store) recover() error {
	d, err := ReadDescriptor(s.layout)
	if err != nil {
		return err
	}
	return d.validate(s.layout)
}

func (s *Store) create(now time.Time) error {
	for _, dir := range []string{s.layout.Store, s.layout.Deleted, s.layout.Rollback} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := writeDescriptor(s.layout, now); err != nil {
		return fmt.Errorf("write descriptor: %w", err)
	}
	return nil
}

// Unlock removes a stale lock marker left at root by an instance that did
// not shut down. It must only be used when no process has the root open.
//
// Returns:
//   - bool: Whether a marker was removed
func Unlock(root string) (bool, error) {
	layout, err := NewLayout(root)
	if err != nil {
		return false, err
	}
	err = os.Remove(layout.Lock)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	logger.Warn("Removed lock marker %s", layout.Lock)
	return true, nil
}

// Layout returns the resolved paths of the store.
func (s *Store) Layout() Layout {
	return s.layout
}

// Root returns the resolved store root.
func (s *Store) Root() string {
	return s.layout.Root
}

// State returns the lifecycle state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Recovered reports whether Open reused an existing layout.
func (s *Store) Recovered() bool {
	return s.recovered
}

// Notifier returns the notifier the store publishes on.
func (s *Store) Notifier() observer.Notifier {
	return s.notifier
}

// Add places the file at path in today's directory under a new identifier.
//
// With move the source is moved into the store; otherwise it is copied and
// left in place. The record stored for the file is fields plus PathField set
// to the new location (a caller-supplied path field is overwritten).
//
// Preconditions are checked before any filesystem change: the source must
// exist, be a regular file (not a symlink), be readable and be writable.
//
// Returns:
//   - string: New identifier
//   - error: *FileAccessError (ErrFileAccess) on a failed precondition,
//     ErrStoreAdd for placement or metadata failures, ErrClosed
func (s *Store) Add(path string, fields metadata.Record, move bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return "", err
	}

	if err := checkSource(path); err != nil {
		return "", err
	}

	dir, err := s.allocator.Dir(s.layout.Store)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStoreAdd, err)
	}

	id, err := s.ids.Generate(s.meta.Has)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStoreAdd, err)
	}

	dest := filepath.Join(dir, id)
	if move {
		err = moveFile(path, dest)
	} else {
		err = copyFile(path, dest)
	}
	if err != nil {
		return "", fmt.Errorf("%w: place %s: %w", ErrStoreAdd, path, err)
	}

	rec := fields.Clone()
	if rec == nil {
		rec = metadata.Record{}
	}
	rec[metadata.PathField] = dest

	if err := s.meta.AddOrUpdate(id, rec); err != nil {
		s.undoPlacement(path, dest, move)
		return "", fmt.Errorf("%w: record %s: %w", ErrStoreAdd, id, err)
	}

	logger.Debug("Added %s as %s (move=%t)", path, id, move)
	s.inform(observer.ActionStoreAdd, "file added", id, dest)
	return id, nil
}

func (s *Store) undoPlacement(src, dest string, moved bool) {
	var err error
	if moved {
		err = moveFile(dest, src)
	} else {
		err = os.Remove(dest)
	}
	if err != nil {
		logger.Error("Cannot undo placement of %s at %s: %v", src, dest, err)
	}
}

// Get returns the stored file for id.
//
// Returns:
//   - *File: Path and record of the file
//   - error: ErrInvalidArgument, ErrNotFound, ErrConsistency if the record
//     does not point at an existing regular file, ErrClosed
func (s *Store) Get(id string) (*File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("empty id: %w", ErrInvalidArgument)
	}

	rec, err := s.meta.Get(id)
	if err != nil {
		return nil, err
	}

	path := rec.Path()
	if err := checkRegular(path); err != nil {
		return nil, fmt.Errorf("%w: id %s: %w", ErrConsistency, id, err)
	}

	s.inform(observer.ActionStoreGet, "file retrieved", id, path)
	return &File{ID: id, Path: path, Data: rec}, nil
}

// Has reports whether id is a live file. It returns false on a closed store.
func (s *Store) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpen {
		return false
	}
	return s.meta.Has(id)
}

// List returns the live identifiers in lexical order.
func (s *Store) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.meta.List()
}

// ListRemoved returns the soft-deleted identifiers in lexical order.
func (s *Store) ListRemoved() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.meta.ListRemoved()
}

// GetRemoved returns the record of a soft-deleted file.
func (s *Store) GetRemoved(id string) (metadata.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("empty id: %w", ErrInvalidArgument)
	}
	return s.meta.GetRemoved(id)
}

// Remove soft-deletes id: the file moves to today's directory under deleted/
// and the record moves to the removed set with its path updated.
//
// Nothing changes when the move fails. A metadata failure after the move
// puts the file back.
//
// Returns:
//   - error: ErrInvalidArgument, ErrNotFound, ErrConsistency, ErrStoreIO,
//     metadata errors, ErrClosed
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("empty id: %w", ErrInvalidArgument)
	}

	rec, err := s.meta.Get(id)
	if err != nil {
		return err
	}
	src := rec.Path()
	if err := checkRegular(src); err != nil {
		return fmt.Errorf("%w: id %s: %w", ErrConsistency, id, err)
	}

	// Step 1: physical move
	dir, err := s.allocator.Dir(s.layout.Deleted)
	if err != nil {
		return err
	}
	dest := filepath.Join(dir, id)
	if err := moveFile(src, dest); err != nil {
		return fmt.Errorf("%w: move %s to deleted: %w", ErrStoreIO, id, err)
	}

	// Step 2: metadata commit
	if err := s.meta.AddOrUpdate(id, metadata.Record{metadata.PathField: dest}); err != nil {
		s.undoMove(id, dest, src)
		return fmt.Errorf("record deleted path of %s: %w", id, err)
	}
	if err := s.meta.Remove(id); err != nil {
		if rerr := s.meta.AddOrUpdate(id, metadata.Record{metadata.PathField: src}); rerr != nil {
			logger.Error("Cannot reset path of %s to %s: %v", id, src, rerr)
		}
		s.undoMove(id, dest, src)
		return fmt.Errorf("mark %s removed: %w", id, err)
	}

	logger.Debug("Removed %s to %s", id, dest)
	s.inform(observer.ActionStoreRemove, "file removed", id, dest)
	return nil
}

// Restore brings a soft-deleted id back: the file moves into today's
// directory under filestore/ and the record returns to the current set with
// its path updated.
//
// A failed move leaves the removed entry and the file untouched.
//
// Returns:
//   - error: ErrInvalidArgument, ErrNotFound if id is not removed,
//     ErrConsistency, ErrStoreIO, metadata errors, ErrClosed
func (s *Store) Restore(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("empty id: %w", ErrInvalidArgument)
	}

	rec, err := s.meta.GetRemoved(id)
	if err != nil {
		return err
	}
	src := rec.Path()
	if err := checkRegular(src); err != nil {
		return fmt.Errorf("%w: removed id %s: %w", ErrConsistency, id, err)
	}

	// Step 1: physical move into a fresh live directory
	dir, err := s.allocator.Dir(s.layout.Store)
	if err != nil {
		return err
	}
	dest := filepath.Join(dir, id)
	if err := moveFile(src, dest); err != nil {
		return fmt.Errorf("%w: move %s to store: %w", ErrStoreIO, id, err)
	}

	// Step 2: metadata commit
	if err := s.meta.Restore(id); err != nil {
		s.undoMove(id, dest, src)
		return fmt.Errorf("restore record %s: %w", id, err)
	}
	if err := s.meta.AddOrUpdate(id, metadata.Record{metadata.PathField: dest}); err != nil {
		if rerr := s.meta.Remove(id); rerr != nil {
			logger.Error("Cannot return %s to the removed set: %v", id, rerr)
		}
		s.undoMove(id, dest, src)
		return fmt.Errorf("record restored path of %s: %w", id, err)
	}

	logger.Debug("Restored %s to %s", id, dest)
	s.inform(observer.ActionStoreRestore, "file restored", id, dest)
	return nil
}

func (s *Store) undoMove(id, from, to string) {
	if err := moveFile(from, to); err != nil {
		logger.Error("Cannot move %s back from %s to %s: %v", id, from, to, err)
	}
}

// Shutdown saves and closes the metadata backend, then removes the lock.
//
// If the metadata backend fails, the error is returned and the store stays
// open and locked so Shutdown can be retried. If only the lock removal fails
// the metadata is already saved and ErrShutdown is returned; a retry only
// attempts the lock again.
func (s *Store) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	if !s.metaDone {
		err := s.meta.Shutdown()
		if err != nil && !errors.Is(err, metadata.ErrClosed) {
			return fmt.Errorf("shutdown metadata: %w", err)
		}
		s.metaDone = true
	}

	err := os.Remove(s.layout.Lock)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Warn("Lock marker %s vanished before shutdown", s.layout.Lock)
	case err != nil:
		return fmt.Errorf("%w: remove lock: %w", ErrShutdown, err)
	}

	s.state = StateShutdown
	logger.Info("Shut down file store at %s", s.layout.Root)
	s.inform(observer.ActionStoreShutdown, "store shut down", s.layout.Root)
	return nil
}

// checkOpen fails unless the store is open. Caller must hold s.mu.
func (s *Store) checkOpen() error {
	if s.state != StateOpen {
		return fmt.Errorf("store %s is %s: %w", s.layout.Root, s.state, ErrClosed)
	}
	return nil
}

func (s *Store) inform(t observer.ActionType, message string, objects ...string) {
	s.notifier.Inform(observer.Action{
		Type:    t,
		Source:  Source,
		Objects: objects,
		Message: message,
	})
}
