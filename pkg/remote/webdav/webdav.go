// Package webdav implements remote.Store against a WebDAV server.
package webdav

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/pkg/observer"
	"github.com/marmos91/dittostore/pkg/remote"
	"github.com/studio-b12/gowebdav"
)

// Source is the observer.Action source of WebDAV actions.
const Source = "webdav"

// Config holds the connection parameters.
type Config struct {
	// URL is the server base URL, e.g. https://dav.example.com/remote.php/dav
	URL string `mapstructure:"url"`

	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`

	// Root is the collection files are uploaded into. Created if missing.
	Root string `mapstructure:"root"`

	// Timeout bounds every request. 0 means 30 seconds.
	Timeout time.Duration `mapstructure:"timeout"`

	// Transport overrides the HTTP transport.
	Transport http.RoundTripper `mapstructure:"-"`

	// Notifier receives DAV_* actions. Nil means the null notifier.
	Notifier observer.Notifier `mapstructure:"-"`
}

// Store uploads files into one collection of a WebDAV server.
//
// Locators are collection paths (<root>/<basename>): adding two files with
// the same base name overwrites the first upload.
type Store struct {
	mu       sync.RWMutex
	client   *gowebdav.Client
	root     string
	notifier observer.Notifier
	closed   bool
}

// New connects to the server and ensures the root collection exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: webdav url is required", remote.ErrInvalidArgument)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	root := cfg.Root
	if root == "" {
		root = "/"
	}
	root = path.Clean("/" + root)

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	client := gowebdav.NewClient(cfg.URL, cfg.User, cfg.Password)
	client.SetTimeout(timeout)
	if cfg.Transport != nil {
		client.SetTransport(cfg.Transport)
	}

	s := &Store{
		client:   client,
		root:     root,
		notifier: observer.OrNop(cfg.Notifier),
	}
	if err := s.ensureRoot(); err != nil {
		return nil, err
	}

	logger.Info("WebDAV remote store ready: url=%s root=%s", cfg.URL, root)
	return s, nil
}

func (s *Store) ensureRoot() error {
	info, err := s.client.Stat(s.root)
	if err == nil {
		if !info.IsDir() {
			return &remote.Error{Op: "mkcol", Locator: s.root, Err: errors.New("root exists and is not a collection")}
		}
		return nil
	}
	if !gowebdav.IsErrNotFound(err) {
		return wrapError("mkcol", s.root, err)
	}
	if err := s.client.MkdirAll(s.root, 0755); err != nil {
		return wrapError("mkcol", s.root, err)
	}
	return nil
}

// Root returns the collection files are uploaded into.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) Add(ctx context.Context, localPath string) (string, error) {
	if err := s.begin(ctx); err != nil {
		return "", err
	}
	defer s.mu.RUnlock()

	if err := remote.CheckSource(localPath); err != nil {
		return "", err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", remote.ErrInvalidArgument, err)
	}
	defer f.Close()

	locator := path.Join(s.root, filepath.Base(localPath))
	if err := s.client.WriteStream(locator, f, 0644); err != nil {
		return "", wrapError("add", locator, err)
	}

	logger.Debug("Uploaded %s to %s", localPath, locator)
	remote.Inform(s.notifier, observer.ActionRemoteAdd, Source, "added file to remote store", locator)
	return locator, nil
}

func (s *Store) Get(ctx context.Context, locator string) ([]byte, error) {
	if locator == "" {
		return nil, fmt.Errorf("%w: empty locator", remote.ErrInvalidArgument)
	}
	if err := s.begin(ctx); err != nil {
		return nil, err
	}
	defer s.mu.RUnlock()

	data, err := s.client.Read(locator)
	if err != nil {
		return nil, wrapError("get", locator, err)
	}

	remote.Inform(s.notifier, observer.ActionRemoteGet, Source, "returning file from remote store", locator)
	return data, nil
}

// Remove deletes locator. The server's DELETE answer for a missing resource
// is not trusted; existence is checked first.
func (s *Store) Remove(ctx context.Context, locator string) error {
	if locator == "" {
		return fmt.Errorf("%w: empty locator", remote.ErrInvalidArgument)
	}
	if err := s.begin(ctx); err != nil {
		return err
	}
	defer s.mu.RUnlock()

	if _, err := s.client.Stat(locator); err != nil {
		return wrapError("remove", locator, err)
	}
	if err := s.client.Remove(locator); err != nil {
		return wrapError("remove", locator, err)
	}

	remote.Inform(s.notifier, observer.ActionRemoteRemove, Source, "deleted file from remote store", locator)
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return remote.ErrClosed
	}
	s.closed = true
	s.mu.Unlock()

	remote.Inform(s.notifier, observer.ActionRemoteShutdown, Source, "WebDAV store shut down", s.root)
	return nil
}

// begin takes the read lock for one operation. The caller must release it
// when begin returns nil.
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

// wrapError converts gowebdav errors (an *os.PathError carrying a
// StatusError) into *remote.Error.
func wrapError(op, locator string, err error) error {
	status := 0
	var se gowebdav.StatusError
	if errors.As(err, &se) {
		status = se.Status
	}

	if gowebdav.IsErrNotFound(err) {
		return remote.NotFound(op, locator, status, err)
	}
	return &remote.Error{Op: op, Locator: locator, StatusCode: status, Err: err}
}
