// Package badger implements metadata.Store on top of BadgerDB.
package badger

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/pkg/metadata"
	"github.com/marmos91/dittostore/pkg/observer"
)

// DirName is the database directory created inside a store root.
const DirName = "meta.badger"

// BadgerMetadataStoreConfig holds the construction parameters.
type BadgerMetadataStoreConfig struct {
	// DBPath is the BadgerDB directory. Created if missing.
	DBPath string `mapstructure:"path"`

	// SyncWrites makes every commit durable before returning.
	SyncWrites bool `mapstructure:"sync_writes"`

	// BlockCacheSizeMB sizes the block cache. 0 uses the default (64MB).
	BlockCacheSizeMB int64 `mapstructure:"block_cache_mb"`

	// IndexCacheSizeMB sizes the index cache. 0 uses the default (32MB).
	IndexCacheSizeMB int64 `mapstructure:"index_cache_mb"`

	// Notifier receives META_* actions. Nil means the null notifier.
	Notifier observer.Notifier `mapstructure:"-"`
}

// BadgerMetadataStore implements metadata.Store using BadgerDB for persistence.
//
// Every mutation runs in a single Badger transaction, so a failed call leaves
// both sets unchanged and a crash never exposes an id in both sets. Save
// flushes the value log; Shutdown flushes and closes the database.
//
// Thread Safety:
// Badger transactions provide isolation; mu only guards the closed flag so
// that no transaction starts on a closed database.
type BadgerMetadataStore struct {
	mu       sync.RWMutex
	db       *badger.DB
	path     string
	notifier observer.Notifier
	closed   bool
}

// NewBadgerMetadataStore opens (or creates) the database at config.DBPath.
//
// Returns:
//   - error: metadata.ErrPersistence wrapping the Badger error
func NewBadgerMetadataStore(config BadgerMetadataStoreConfig) (*BadgerMetadataStore, error) {
	if config.DBPath == "" {
		return nil, fmt.Errorf("badger path is required: %w", metadata.ErrInvalidArgument)
	}

	blockCacheMB := config.BlockCacheSizeMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}
	indexCacheMB := config.IndexCacheSizeMB
	if indexCacheMB == 0 {
		indexCacheMB = 32
	}

	opts := badger.DefaultOptions(config.DBPath).
		WithLoggingLevel(badger.WARNING).
		WithCompression(options.None).
		WithSyncWrites(config.SyncWrites).
		WithBlockCacheSize(blockCacheMB << 20).
		WithIndexCacheSize(indexCacheMB << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open BadgerDB at %s: %w", metadata.ErrPersistence, config.DBPath, err)
	}

	logger.Debug("Opened badger metadata store at %s", config.DBPath)

	return &BadgerMetadataStore{
		db:       db,
		path:     config.DBPath,
		notifier: observer.OrNop(config.Notifier),
	}, nil
}

// Factory returns a metadata.Factory opening <root>/meta.badger.
// The DBPath of base is ignored.
func Factory(base BadgerMetadataStoreConfig, notifier observer.Notifier) metadata.Factory {
	return func(root string) (metadata.Store, error) {
		cfg := base
		cfg.DBPath = filepath.Join(root, DirName)
		cfg.Notifier = notifier
		return NewBadgerMetadataStore(cfg)
	}
}

func (s *BadgerMetadataStore) Get(id string) (metadata.Record, error) {
	return s.get(keyCurrent(id), id)
}

func (s *BadgerMetadataStore) GetRemoved(id string) (metadata.Record, error) {
	return s.get(keyRemoved(id), id)
}

func (s *BadgerMetadataStore) get(key []byte, id string) (metadata.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, metadata.ErrClosed
	}

	var rec metadata.Record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = readRecord(txn, key)
		return err
	})
	if err != nil {
		return nil, wrap(err, id)
	}
	return rec, nil
}

func (s *BadgerMetadataStore) AddOrUpdate(id string, fields metadata.Record) error {
	if id == "" {
		return fmt.Errorf("empty id: %w", metadata.ErrInvalidArgument)
	}
	if fields == nil {
		return fmt.Errorf("id %q: nil fields: %w", id, metadata.ErrInvalidArgument)
	}

	err := s.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(keyRemoved(id)); err == nil {
			return fmt.Errorf("id %q is removed: %w", id, metadata.ErrInvalidArgument)
		}
		rec, err := readRecord(txn, keyCurrent(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			rec = metadata.Record{}
		} else if err != nil {
			return err
		}
		rec.Merge(fields)
		return writeRecord(txn, keyCurrent(id), rec)
	})
	if err != nil {
		return wrap(err, id)
	}

	metadata.Inform(s.notifier, observer.ActionMetaAdd, "record added or updated", id)
	return nil
}

func (s *BadgerMetadataStore) Remove(id string) error {
	if err := s.update(move(keyCurrent(id), keyRemoved(id))); err != nil {
		return wrap(err, id)
	}

	metadata.Inform(s.notifier, observer.ActionMetaRemove, "record moved to removed", id)
	return nil
}

func (s *BadgerMetadataStore) Restore(id string) error {
	if err := s.update(move(keyRemoved(id), keyCurrent(id))); err != nil {
		return wrap(err, id)
	}

	metadata.Inform(s.notifier, observer.ActionMetaRestore, "record restored", id)
	return nil
}

func (s *BadgerMetadataStore) Has(id string) bool {
	return s.has(keyCurrent(id))
}

func (s *BadgerMetadataStore) HasRemoved(id string) bool {
	return s.has(keyRemoved(id))
}

func (s *BadgerMetadataStore) has(key []byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	return err == nil
}

func (s *BadgerMetadataStore) List() ([]string, error) {
	return s.list(prefixCurrent)
}

func (s *BadgerMetadataStore) ListRemoved() ([]string, error) {
	return s.list(prefixRemoved)
}

func (s *BadgerMetadataStore) list(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, metadata.ErrClosed
	}

	ids := []string{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = false // keys only

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", metadata.ErrPersistence, prefix, err)
	}
	return ids, nil
}

func (s *BadgerMetadataStore) Save() error {
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

func (s *BadgerMetadataStore) Shutdown() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return metadata.ErrClosed
	}
	if err := s.db.Sync(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: sync %s: %w", metadata.ErrPersistence, s.path, err)
	}

	// Badger cannot be used after a failed Close, so the store closes either way.
	s.closed = true
	err := s.db.Close()
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("%w: close %s: %w", metadata.ErrPersistence, s.path, err)
	}

	metadata.Inform(s.notifier, observer.ActionMetaShutdown, "metadata store shut down", s.path)
	return nil
}

// update runs fn in a read-write transaction unless the store is closed.
func (s *BadgerMetadataStore) update(fn func(txn *badger.Txn) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return metadata.ErrClosed
	}
	return s.db.Update(fn)
}

// move returns a transaction body relocating the record at from to to.
func move(from, to []byte) func(txn *badger.Txn) error {
	return func(txn *badger.Txn) error {
		item, err := txn.Get(from)
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := txn.Set(to, val); err != nil {
			return err
		}
		return txn.Delete(from)
	}
}

func readRecord(txn *badger.Txn, key []byte) (metadata.Record, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}

	var rec metadata.Record
	err = item.Value(func(val []byte) error {
		var err error
		rec, err = metadata.DecodeRecord(val)
		return err
	})
	return rec, err
}

func writeRecord(txn *badger.Txn, key []byte, rec metadata.Record) error {
	data, err := metadata.EncodeRecord(rec)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// wrap maps Badger errors onto the metadata sentinels.
func wrap(err error, id string) error {
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return fmt.Errorf("id %q: %w", id, metadata.ErrNotFound)
	case errors.Is(err, metadata.ErrClosed), errors.Is(err, metadata.ErrPersistence), errors.Is(err, metadata.ErrInvalidArgument):
		return err
	default:
		return fmt.Errorf("%w: id %q: %w", metadata.ErrPersistence, id, err)
	}
}
