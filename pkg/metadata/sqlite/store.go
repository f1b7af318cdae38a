// Package sqlite implements metadata.Store on a single SQLite table.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/pkg/metadata"
	"github.com/marmos91/dittostore/pkg/observer"

	_ "modernc.org/sqlite"
)

// FileName is the database file created inside a store root.
const FileName = "meta.sqlite"

const (
	stateCurrent = "current"
	stateRemoved = "removed"
)

// The primary key on id keeps the two sets disjoint.
const schema = `
CREATE TABLE IF NOT EXISTS records (
	id         TEXT PRIMARY KEY,
	state      TEXT NOT NULL CHECK (state IN ('current', 'removed')),
	fields     TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS records_state ON records (state, id);`

// Config holds the construction parameters.
type Config struct {
	// Path is the database file. Created if missing.
	Path string `mapstructure:"path"`

	// Notifier receives META_* actions. Nil means the null notifier.
	Notifier observer.Notifier `mapstructure:"-"`
}

// SQLiteMetadataStore implements metadata.Store using SQLite through
// database/sql. Each mutation runs in one SQL transaction.
type SQLiteMetadataStore struct {
	mu       sync.RWMutex
	db       *sql.DB
	path     string
	notifier observer.Notifier
	closed   bool
}

// NewSQLiteMetadataStore opens (or creates) the database at config.Path.
func NewSQLiteMetadataStore(config Config) (*SQLiteMetadataStore, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("sqlite path is required: %w", metadata.ErrInvalidArgument)
	}

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite %q: %w", metadata.ErrPersistence, config.Path, err)
	}
	// One connection serialises writers and avoids SQLITE_BUSY inside transactions.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: set WAL mode: %w", metadata.ErrPersistence, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: create schema: %w", metadata.ErrPersistence, err)
	}

	logger.Debug("Opened sqlite metadata store at %s", config.Path)

	return &SQLiteMetadataStore{
		db:       db,
		path:     config.Path,
		notifier: observer.OrNop(config.Notifier),
	}, nil
}

// Factory returns a metadata.Factory opening <root>/meta.sqlite.
// The Path of base is ignored.
func Factory(base Config, notifier observer.Notifier) metadata.Factory {
	return func(root string) (metadata.Store, error) {
		cfg := base
		cfg.Path = filepath.Join(root, FileName)
		cfg.Notifier = notifier
		return NewSQLiteMetadataStore(cfg)
	}
}

func (s *SQLiteMetadataStore) Get(id string) (metadata.Record, error) {
	return s.get(stateCurrent, id)
}

func (s *SQLiteMetadataStore) GetRemoved(id string) (metadata.Record, error) {
	return s.get(stateRemoved, id)
}

func (s *SQLiteMetadataStore) get(state, id string) (metadata.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, metadata.ErrClosed
	}

	var fields string
	err := s.db.QueryRow(
		"SELECT fields FROM records WHERE id = ? AND state = ?", id, state,
	).Scan(&fields)
	if err != nil {
		return nil, wrap(err, id)
	}
	return metadata.DecodeRecord([]byte(fields))
}

func (s *SQLiteMetadataStore) AddOrUpdate(id string, fields metadata.Record) error {
	if id == "" {
		return fmt.Errorf("empty id: %w", metadata.ErrInvalidArgument)
	}
	if fields == nil {
		return fmt.Errorf("id %q: nil fields: %w", id, metadata.ErrInvalidArgument)
	}

	err := s.inTx(func(tx *sql.Tx) error {
		var state, existing string
		err := tx.QueryRow("SELECT state, fields FROM records WHERE id = ?", id).Scan(&state, &existing)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if state == stateRemoved {
			return fmt.Errorf("id %q is removed: %w", id, metadata.ErrInvalidArgument)
		}

		rec, err := metadata.DecodeRecord([]byte(existing))
		if err != nil {
			return err
		}
		rec.Merge(fields)

		encoded, err := metadata.EncodeRecord(rec)
		if err != nil {
			return err
		}

		_, err = tx.Exec(`
			INSERT INTO records (id, state, fields, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET fields = excluded.fields, updated_at = excluded.updated_at`,
			id, stateCurrent, string(encoded), now())
		return err
	})
	if err != nil {
		return wrap(err, id)
	}

	metadata.Inform(s.notifier, observer.ActionMetaAdd, "record added or updated", id)
	return nil
}

func (s *SQLiteMetadataStore) Remove(id string) error {
	if err := s.transition(id, stateCurrent, stateRemoved); err != nil {
		return err
	}

	metadata.Inform(s.notifier, observer.ActionMetaRemove, "record moved to removed", id)
	return nil
}

func (s *SQLiteMetadataStore) Restore(id string) error {
	if err := s.transition(id, stateRemoved, stateCurrent); err != nil {
		return err
	}

	metadata.Inform(s.notifier, observer.ActionMetaRestore, "record restored", id)
	return nil
}

// transition flips the state of id, failing with ErrNotFound when id is not in from.
func (s *SQLiteMetadataStore) transition(id, from, to string) error {
	err := s.inTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(
			"UPDATE records SET state = ?, updated_at = ? WHERE id = ? AND state = ?",
			to, now(), id, from)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
	if err != nil {
		return wrap(err, id)
	}
	return nil
}

func (s *SQLiteMetadataStore) Has(id string) bool {
	return s.has(stateCurrent, id)
}

func (s *SQLiteMetadataStore) HasRemoved(id string) bool {
	return s.has(stateRemoved, id)
}

func (s *SQLiteMetadataStore) has(state, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	var one int
	err := s.db.QueryRow("SELECT 1 FROM records WHERE id = ? AND state = ?", id, state).Scan(&one)
	return err == nil
}

func (s *SQLiteMetadataStore) List() ([]string, error) {
	return s.list(stateCurrent)
}

func (s *SQLiteMetadataStore) ListRemoved() ([]string, error) {
	return s.list(stateRemoved)
}

func (s *SQLiteMetadataStore) list(state string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, metadata.ErrClosed
	}

	rows, err := s.db.Query("SELECT id FROM records WHERE state = ? ORDER BY id", state)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", metadata.ErrPersistence, state, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: list %s: %w", metadata.ErrPersistence, state, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", metadata.ErrPersistence, state, err)
	}
	return ids, nil
}

// Save checkpoints the write-ahead log into the main database file.
func (s *SQLiteMetadataStore) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return metadata.ErrClosed
	}
	return s.checkpoint()
}

func (s *SQLiteMetadataStore) Shutdown() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return metadata.ErrClosed
	}
	if err := s.checkpoint(); err != nil {
		s.mu.Unlock()
		return err
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

func (s *SQLiteMetadataStore) checkpoint() error {
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("%w: checkpoint %s: %w", metadata.ErrPersistence, s.path, err)
	}
	return nil
}

func (s *SQLiteMetadataStore) inTx(fn func(tx *sql.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return metadata.ErrClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func wrap(err error, id string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("id %q: %w", id, metadata.ErrNotFound)
	case errors.Is(err, metadata.ErrClosed), errors.Is(err, metadata.ErrPersistence), errors.Is(err, metadata.ErrInvalidArgument):
		return err
	default:
		return fmt.Errorf("%w: id %q: %w", metadata.ErrPersistence, id, err)
	}
}
