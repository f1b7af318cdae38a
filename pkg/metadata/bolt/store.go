// Package bolt implements metadata.Store on top of bbolt.
package bolt

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/pkg/metadata"
	"github.com/marmos91/dittostore/pkg/observer"
	bolt "go.etcd.io/bbolt"
)

// FileName is the database file created inside a store root.
const FileName = "meta.db"

var (
	currentBucket = []byte("current")
	removedBucket = []byte("removed")

	errMissing = errors.New("key missing")
)

// Config holds the construction parameters.
type Config struct {
	// Path is the database file. Created if missing.
	Path string `mapstructure:"path"`

	// Timeout bounds the wait for bbolt's file lock. 0 uses one second.
	Timeout time.Duration `mapstructure:"timeout"`

	// NoSync skips fsync after each commit. Save still syncs.
	NoSync bool `mapstructure:"no_sync"`

	// Notifier receives META_* actions. Nil means the null notifier.
	Notifier observer.Notifier `mapstructure:"-"`
}

// BoltMetadataStore implements metadata.Store with one bucket per set.
// Each mutation is a single bbolt transaction.
type BoltMetadataStore struct {
	mu       sync.RWMutex
	db       *bolt.DB
	path     string
	notifier observer.Notifier
	closed   bool
}

// NewBoltMetadataStore opens (or creates) the database at config.Path.
func NewBoltMetadataStore(config Config) (*BoltMetadataStore, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("bolt path is required: %w", metadata.ErrInvalidArgument)
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = time.Second
	}

	db, err := bolt.Open(config.Path, 0600, &bolt.Options{
		Timeout: timeout,
		NoSync:  config.NoSync,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", metadata.ErrPersistence, config.Path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(currentBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(removedBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: create buckets in %s: %w", metadata.ErrPersistence, config.Path, err)
	}

	logger.Debug("Opened bolt metadata store at %s", config.Path)

	return &BoltMetadataStore{
		db:       db,
		path:     config.Path,
		notifier: observer.OrNop(config.Notifier),
	}, nil
}

// Factory returns a metadata.Factory opening <root>/meta.db.
// The Path of base is ignored.
func Factory(base Config, notifier observer.Notifier) metadata.Factory {
	return func(root string) (metadata.Store, error) {
		cfg := base
		cfg.Path = filepath.Join(root, FileName)
		cfg.Notifier = notifier
		return NewBoltMetadataStore(cfg)
	}
}

func (s *BoltMetadataStore) Get(id string) (metadata.Record, error) {
	return s.get(currentBucket, id)
}

func (s *BoltMetadataStore) GetRemoved(id string) (metadata.Record, error) {
	return s.get(removedBucket, id)
}

func (s *BoltMetadataStore) get(bucket []byte, id string) (metadata.Record, error) {
	var rec metadata.Record
	err := s.view(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(id))
		if data == nil {
			return errMissing
		}
		var err error
		rec, err = metadata.DecodeRecord(data)
		return err
	})
	if err != nil {
		return nil, wrap(err, id)
	}
	return rec, nil
}

func (s *BoltMetadataStore) AddOrUpdate(id string, fields metadata.Record) error {
	if id == "" {
		return fmt.Errorf("empty id: %w", metadata.ErrInvalidArgument)
	}
	if fields == nil {
		return fmt.Errorf("id %q: nil fields: %w", id, metadata.ErrInvalidArgument)
	}

	err := s.update(func(tx *bolt.Tx) error {
		if tx.Bucket(removedBucket).Get([]byte(id)) != nil {
			return fmt.Errorf("id %q is removed: %w", id, metadata.ErrInvalidArgument)
		}
		b := tx.Bucket(currentBucket)

		rec := metadata.Record{}
		if data := b.Get([]byte(id)); data != nil {
			var err error
			if rec, err = metadata.DecodeRecord(data); err != nil {
				return err
			}
		}
		rec.Merge(fields)

		encoded, err := metadata.EncodeRecord(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), encoded)
	})
	if err != nil {
		return wrap(err, id)
	}

	metadata.Inform(s.notifier, observer.ActionMetaAdd, "record added or updated", id)
	return nil
}

func (s *BoltMetadataStore) Remove(id string) error {
	if err := s.update(move(currentBucket, removedBucket, id)); err != nil {
		return wrap(err, id)
	}

	metadata.Inform(s.notifier, observer.ActionMetaRemove, "record moved to removed", id)
	return nil
}

func (s *BoltMetadataStore) Restore(id string) error {
	if err := s.update(move(removedBucket, currentBucket, id)); err != nil {
		return wrap(err, id)
	}

	metadata.Inform(s.notifier, observer.ActionMetaRestore, "record restored", id)
	return nil
}

func (s *BoltMetadataStore) Has(id string) bool {
	return s.has(currentBucket, id)
}

func (s *BoltMetadataStore) HasRemoved(id string) bool {
	return s.has(removedBucket, id)
}

func (s *BoltMetadataStore) has(bucket []byte, id string) bool {
	found := false
	_ = s.view(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucket).Get([]byte(id)) != nil
		return nil
	})
	return found
}

func (s *BoltMetadataStore) List() ([]string, error) {
	return s.list(currentBucket)
}

func (s *BoltMetadataStore) ListRemoved() ([]string, error) {
	return s.list(removedBucket)
}

// list returns bucket keys; bbolt keeps them in byte order.
func (s *BoltMetadataStore) list(bucket []byte) ([]string, error) {
	ids := []string{}
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, metadata.ErrClosed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: list %s: %w", metadata.ErrPersistence, bucket, err)
	}
	return ids, nil
}

func (s *BoltMetadataStore) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return metadata.ErrClosed
	}
	if err := s.db.Sync(); err != nil {
		return fmt.Errorf("%w: sync %s: %w", metadata.ErrPersistence, s.path, err)
	}
	return nil
}

func (s *BoltMetadataStore) Shutdown() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return metadata.ErrClosed
	}
	if err := s.db.Sync(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: sync %s: %w", metadata.ErrPersistence, s.path, err)
	}
	s.closed = true
	err := s.db.Close()
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("%w: close %s: %w", metadata.ErrPersistence, s.path, err)
	}

	metadata.Inform(s.notifier, observer.ActionMetaShutdown, "metadata store shut down", s.path)
	return nil
}

func (s *BoltMetadataStore) view(fn func(tx *bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return metadata.ErrClosed
	}
	return s.db.View(fn)
}

func (s *BoltMetadataStore) update(fn func(tx *bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return metadata.ErrClosed
	}
	return s.db.Update(fn)
}

func move(from, to []byte, id string) func(tx *bolt.Tx) error {
	return func(tx *bolt.Tx) error {
		src := tx.Bucket(from)
		data := src.Get([]byte(id))
		if data == nil {
			return errMissing
		}
		// Get's slice is only valid until the bucket is modified
		if err := tx.Bucket(to).Put([]byte(id), bytes.Clone(data)); err != nil {
			return err
		}
		return src.Delete([]byte(id))
	}
}

func wrap(err error, id string) error {
	switch {
	case errors.Is(err, errMissing):
		return fmt.Errorf("id %q: %w", id, metadata.ErrNotFound)
	case errors.Is(err, metadata.ErrClosed), errors.Is(err, metadata.ErrPersistence), errors.Is(err, metadata.ErrInvalidArgument):
		return err
	default:
		return fmt.Errorf("%w: id %q: %w", metadata.ErrPersistence, id, err)
	}
}
