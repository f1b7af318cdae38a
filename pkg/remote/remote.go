// Package remote defines the contract shared by stores that keep files
// somewhere other than a local store root.
//
// A remote store has no metadata: Add uploads a local file and returns the
// locator under which it can be fetched or removed again. Locators are opaque
// to callers and only meaningful to the store that issued them.
package remote

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/marmos91/dittostore/pkg/observer"
)

// Store is implemented by every remote backend.
type Store interface {
	// Add uploads the local file at path and returns its locator.
	//
	// Returns:
	//   - error: ErrInvalidArgument if path is not a readable regular file,
	//     *Error (ErrRemoteStore) on transport or non-2xx failures
	Add(ctx context.Context, path string) (string, error)

	// Get downloads the object at locator.
	//
	// Returns:
	//   - error: *Error matching ErrNotFound when the object does not exist
	Get(ctx context.Context, locator string) ([]byte, error)

	// Remove deletes the object at locator.
	//
	// Returns:
	//   - error: *Error matching ErrNotFound when the object does not exist
	Remove(ctx context.Context, locator string) error

	// Close releases the connection. The store is unusable afterwards.
	Close() error
}

var (
	// ErrRemoteStore matches every failure reported by the remote side or
	// the transport.
	ErrRemoteStore = errors.New("remote store operation failed")

	// ErrNotFound indicates the locator names no object.
	ErrNotFound = errors.New("remote object not found")

	// ErrInvalidArgument indicates an empty locator or an unusable local file.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("remote store is closed")
)

// Error describes a failed remote operation.
type Error struct {
	// Op is the store operation ("add", "get", "remove")
	Op string

	// Locator is the remote path or key involved
	Locator string

	// StatusCode is the HTTP status when the remote answered, 0 otherwise
	StatusCode int

	Err error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote %s %s: status %d: %v", e.Op, e.Locator, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("remote %s %s: %v", e.Op, e.Locator, e.Err)
}

// Is makes every Error match ErrRemoteStore.
func (e *Error) Is(target error) bool {
	return target == ErrRemoteStore
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound builds the Error for a missing object.
func NotFound(op, locator string, status int, cause error) *Error {
	return &Error{Op: op, Locator: locator, StatusCode: status, Err: errors.Join(ErrNotFound, cause)}
}

// CheckSource verifies that path is a readable regular file.
func CheckSource(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrInvalidArgument, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return f.Close()
}

// Inform publishes a remote store action on n.
func Inform(n observer.Notifier, t observer.ActionType, source, message string, objects ...string) {
	observer.OrNop(n).Inform(observer.Action{
		Type:    t,
		Source:  source,
		Objects: objects,
		Message: message,
	})
}
