// Package multitenant partitions independent file stores by tenant under a
// shared root. Each tenant owns <root>/<tenant> and a filestore.Store opened
// on it; tenants share nothing else.
package multitenant

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/pkg/filestore"
	"github.com/marmos91/dittostore/pkg/metadata"
	"github.com/marmos91/dittostore/pkg/observer"
)

// Source is the observer.Action source of multitenant actions.
const Source = "multitenant"

var (
	// ErrTenantNotFound indicates the tenant is not registered.
	ErrTenantNotFound = errors.New("tenant not registered")

	// ErrTenantExists indicates CreateTenant was called for a registered tenant.
	ErrTenantExists = errors.New("tenant already registered")

	// ErrInvalidTenant indicates a tenant id that is not a single path element.
	ErrInvalidTenant = errors.New("invalid tenant id")

	// ErrClosed indicates the multitenant store has been shut down.
	ErrClosed = errors.New("multitenant store is closed")
)

type options struct {
	notifier     observer.Notifier
	storeOptions []filestore.Option
}

// Option configures New.
type Option func(*options)

// WithNotifier attaches the notifier receiving MSTORE_* actions. Tenant
// stores publish on it as well unless WithStoreOptions overrides it.
func WithNotifier(n observer.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithStoreOptions sets the options every tenant store is opened with.
func WithStoreOptions(opts ...filestore.Option) Option {
	return func(o *options) {
		o.storeOptions = append(o.storeOptions, opts...)
	}
}

// Store maps tenant ids to their file stores.
//
// Thread Safety:
// The tenant map is guarded by a read-write mutex. Calls for a tenant are
// serialized by that tenant's store.
type Store struct {
	mu     sync.RWMutex
	root   string
	stores map[string]*filestore.Store
	opts   options
	closed bool
}

// New opens the multitenant store at root, creating the directory if needed,
// and recovers one tenant per existing subdirectory. A subdirectory whose
// store cannot be opened is logged and skipped.
func New(root string, opts ...Option) (*Store, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	o.notifier = observer.OrNop(o.notifier)

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", filestore.ErrInvalidRoot, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", filestore.ErrInvalidRoot, abs, err)
	}

	s := &Store{
		root:   abs,
		stores: make(map[string]*filestore.Store),
		opts:   o,
	}
	s.recoverTenants()
	return s, nil
}

func (s *Store) recoverTenants() {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		logger.Error("Cannot list tenants in %s: %v", s.root, err)
		return
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		tenant := e.Name()
		if validateTenant(tenant) != nil {
			continue
		}
		store, err := s.openTenant(tenant)
		if err != nil {
			logger.Error("Cannot recover store for tenant %s: %v", tenant, err)
			continue
		}
		s.stores[tenant] = store
		logger.Debug("Recovered tenant %s", tenant)
	}
	logger.Info("Multitenant store at %s: %d tenants", s.root, len(s.stores))
}

func (s *Store) openTenant(tenant string) (*filestore.Store, error) {
	opts := append([]filestore.Option{filestore.WithNotifier(s.opts.notifier)}, s.opts.storeOptions...)
	return filestore.Open(filepath.Join(s.root, tenant), opts...)
}

// Root returns the absolute multitenant root.
func (s *Store) Root() string {
	return s.root
}

// CreateTenant registers a tenant and opens its store. An empty id is
// replaced by a random UUID. The tenant directory may already exist.
//
// Returns:
//   - string: The tenant id
//   - error: ErrInvalidTenant, ErrTenantExists, file store bootstrap errors
func (s *Store) CreateTenant(id string) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if err := validateTenant(id); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrClosed
	}
	if _, ok := s.stores[id]; ok {
		return "", fmt.Errorf("tenant %s: %w", id, ErrTenantExists)
	}

	if err := os.MkdirAll(filepath.Join(s.root, id), 0755); err != nil {
		return "", fmt.Errorf("create tenant %s: %w", id, err)
	}
	store, err := s.openTenant(id)
	if err != nil {
		return "", fmt.Errorf("create tenant %s: %w", id, err)
	}
	s.stores[id] = store

	s.inform(observer.ActionTenantCreate, "created tenant store", id)
	return id, nil
}

// RemoveTenant shuts the tenant's store down and deletes its directory,
// including every live and soft-deleted file.
func (s *Store) RemoveTenant(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	store, ok := s.stores[id]
	if !ok {
		return fmt.Errorf("tenant %s: %w", id, ErrTenantNotFound)
	}

	if err := store.Shutdown(); err != nil {
		return fmt.Errorf("remove tenant %s: %w", id, err)
	}
	delete(s.stores, id)

	if err := os.RemoveAll(store.Root()); err != nil {
		return fmt.Errorf("remove tenant %s directory: %w", id, err)
	}

	s.inform(observer.ActionTenantRemove, "removed tenant store", id)
	return nil
}

// Tenant returns the store of a registered tenant.
func (s *Store) Tenant(id string) (*filestore.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	store, ok := s.stores[id]
	if !ok {
		return nil, fmt.Errorf("tenant %s: %w", id, ErrTenantNotFound)
	}
	return store, nil
}

// HasTenant reports whether id is registered.
func (s *Store) HasTenant(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.stores[id]
	return ok && !s.closed
}

// Tenants returns the registered tenant ids in lexical order.
func (s *Store) Tenants() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.stores))
	for id := range s.stores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AddToTenant adds a file to the tenant's store. See filestore.Store.Add.
func (s *Store) AddToTenant(tenant, path string, fields metadata.Record, move bool) (string, error) {
	store, err := s.Tenant(tenant)
	if err != nil {
		return "", err
	}

	id, err := store.Add(path, fields, move)
	if err != nil {
		return "", err
	}

	s.inform(observer.ActionTenantAdd, fmt.Sprintf("added file to tenant %s with id %s", tenant, id), tenant, path, id)
	return id, nil
}

// GetFromTenant returns a file of the tenant's store.
func (s *Store) GetFromTenant(tenant, id string) (*filestore.File, error) {
	store, err := s.Tenant(tenant)
	if err != nil {
		return nil, err
	}
	return store.Get(id)
}

// RemoveFromTenant soft-deletes a file of the tenant's store.
func (s *Store) RemoveFromTenant(tenant, id string) error {
	store, err := s.Tenant(tenant)
	if err != nil {
		return err
	}
	return store.Remove(id)
}

// RestoreInTenant restores a soft-deleted file of the tenant's store.
func (s *Store) RestoreInTenant(tenant, id string) error {
	store, err := s.Tenant(tenant)
	if err != nil {
		return err
	}
	return store.Restore(id)
}

// Shutdown shuts every tenant store down. Tenants that fail are reported in
// the joined error; the multitenant store is closed regardless.
func (s *Store) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.closed = true

	var errs []error
	for id, store := range s.stores {
		logger.Info("Shutting down file store for tenant %s", id)
		if err := store.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("tenant %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Store) inform(t observer.ActionType, message string, objects ...string) {
	s.opts.notifier.Inform(observer.Action{
		Type:    t,
		Source:  Source,
		Objects: objects,
		Message: message,
	})
}

func validateTenant(id string) error {
	if id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidTenant, id)
	}
	return nil
}
