package main

import (
	"errors"
	"fmt"

	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/pkg/config"
	"github.com/marmos91/dittostore/pkg/filestore"
	"github.com/marmos91/dittostore/pkg/multitenant"
	"github.com/marmos91/dittostore/pkg/observer"
)

var errNoTenant = errors.New("multitenant store: --tenant is required")

// loadConfig loads the configuration and configures the logger from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session holds the stores opened by one command.
type session struct {
	cfg      *config.Config
	notifier observer.Notifier
	single   *filestore.Store
	tenants  *multitenant.Store
}

// openSession opens the configured store: a single store, or every tenant
// of a multitenant root.
func openSession(cfg *config.Config) (*session, error) {
	s := &session{
		cfg:      cfg,
		notifier: config.NewNotifier(&cfg.Store),
	}

	var err error
	if cfg.Store.Multitenant {
		s.tenants, err = config.OpenMultiTenant(cfg, s.notifier)
	} else {
		if tenantID != "" {
			return nil, fmt.Errorf("--tenant %s: store.multitenant is disabled", tenantID)
		}
		s.single, err = config.OpenStore(cfg, s.notifier)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// store returns the store commands operate on: the single store, or the
// tenant named by --tenant.
func (s *session) store() (*filestore.Store, error) {
	if s.single != nil {
		return s.single, nil
	}
	if tenantID == "" {
		return nil, errNoTenant
	}
	return s.tenants.Tenant(tenantID)
}

// close shuts every opened store down.
func (s *session) close() error {
	if s.single != nil {
		return s.single.Shutdown()
	}
	if s.tenants != nil {
		return s.tenants.Shutdown()
	}
	return nil
}

// withStore runs fn against the selected store and always closes the session.
func withStore(fn func(store *filestore.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := openSession(cfg)
	if err != nil {
		return err
	}

	store, err := s.store()
	if err == nil {
		err = fn(store)
	}
	return errors.Join(err, s.close())
}
