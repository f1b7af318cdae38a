// Package local exposes a filestore.Store through the remote.Store contract,
// so a second local root can act as the replication target.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/marmos91/dittostore/pkg/filestore"
	"github.com/marmos91/dittostore/pkg/metadata"
	"github.com/marmos91/dittostore/pkg/observer"
	"github.com/marmos91/dittostore/pkg/remote"
)

// Source is the observer.Action source of local remote actions.
const Source = "local"

// OriginalFileField records the base name of the uploaded file.
const OriginalFileField = metadata.OriginalFileField

// Store adapts a file store. Locators are file store identifiers and Remove
// is a soft delete.
type Store struct {
	mu       sync.RWMutex
	files    *filestore.Store
	owned    bool
	notifier observer.Notifier
	closed   bool
}

// New wraps an open file store. Close does not shut the file store down.
func New(files *filestore.Store, notifier observer.Notifier) *Store {
	return &Store{files: files, notifier: observer.OrNop(notifier)}
}

// Open opens the file store at root and wraps it. Close shuts it down.
func Open(root string, notifier observer.Notifier, opts ...filestore.Option) (*Store, error) {
	files, err := filestore.Open(root, opts...)
	if err != nil {
		return nil, &remote.Error{Op: "open", Locator: root, Err: err}
	}
	return &Store{files: files, owned: true, notifier: observer.OrNop(notifier)}, nil
}

// Files returns the wrapped file store.
func (s *Store) Files() *filestore.Store {
	return s.files
}

func (s *Store) Add(ctx context.Context, localPath string) (string, error) {
	if err := s.begin(ctx); err != nil {
		return "", err
	}
	defer s.mu.RUnlock()

	if err := remote.CheckSource(localPath); err != nil {
		return "", err
	}

	id, err := s.files.Add(localPath, metadata.Record{OriginalFileField: filepath.Base(localPath)}, false)
	if err != nil {
		return "", wrapError("add", localPath, err)
	}

	remote.Inform(s.notifier, observer.ActionRemoteAdd, Source, "added file to remote store", id)
	return id, nil
}

func (s *Store) Get(ctx context.Context, id string) ([]byte, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty locator", remote.ErrInvalidArgument)
	}
	if err := s.begin(ctx); err != nil {
		return nil, err
	}
	defer s.mu.RUnlock()

	f, err := s.files.Get(id)
	if err != nil {
		return nil, wrapError("get", id, err)
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, wrapError("get", id, err)
	}

	remote.Inform(s.notifier, observer.ActionRemoteGet, Source, "returning file from remote store", id)
	return data, nil
}

func (s *Store) Remove(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty locator", remote.ErrInvalidArgument)
	}
	if err := s.begin(ctx); err != nil {
		return err
	}
	defer s.mu.RUnlock()

	if err := s.files.Remove(id); err != nil {
		return wrapError("remove", id, err)
	}

	remote.Inform(s.notifier, observer.ActionRemoteRemove, Source, "deleted file from remote store", id)
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return remote.ErrClosed
	}

	if s.owned {
		if err := s.files.Shutdown(); err != nil {
			return &remote.Error{Op: "close", Locator: s.files.Root(), Err: err}
		}
	}
	s.closed = true

	remote.Inform(s.notifier, observer.ActionRemoteShutdown, Source, "local store shut down", s.files.Root())
	return nil
}

func (s *Store) begin(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return remote.ErrClosed
	}
	return nil
}

func wrapError(op, locator string, err error) error {
	switch {
	case errors.Is(err, filestore.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return remote.NotFound(op, locator, 0, err)
	case errors.Is(err, filestore.ErrFileAccess), errors.Is(err, filestore.ErrInvalidArgument):
		return fmt.Errorf("%w: %w", remote.ErrInvalidArgument, err)
	case errors.Is(err, filestore.ErrClosed):
		return fmt.Errorf("%w: %w", remote.ErrClosed, err)
	}
	return &remote.Error{Op: op, Locator: locator, Err: err}
}
