package filestore

import (
	"errors"
	"fmt"

	"github.com/marmos91/dittostore/pkg/metadata"
)

// ============================================================================
// Standard File Store Errors
// ============================================================================

// These errors provide a consistent way to indicate failure conditions of a
// file store. Front ends (CLI, HTTP API) check for them with errors.Is and map
// them to exit codes or status codes:
//
//	f, err := store.Get(id)
//	if err != nil {
//	    if errors.Is(err, filestore.ErrNotFound) {
//	        return http.StatusNotFound
//	    }
//	    return http.StatusInternalServerError
//	}
//
// ErrNotFound, ErrInvalidArgument, ErrPersistence and ErrClosed are the
// metadata sentinels, so one check covers errors from both layers.

var (
	// ErrInvalidArgument indicates a malformed argument (e.g. empty id).
	ErrInvalidArgument = metadata.ErrInvalidArgument

	// ErrNotFound indicates the id is unknown in the set the operation needs.
	//
	// Protocol Mapping:
	//   - HTTP: 404 Not Found
	ErrNotFound = metadata.ErrNotFound

	// ErrPersistence indicates the metadata backend could not persist state.
	ErrPersistence = metadata.ErrPersistence

	// ErrClosed indicates the store is not open (never opened or shut down).
	ErrClosed = metadata.ErrClosed

	// ErrInvalidRoot indicates the root does not exist, is not a directory or
	// is not writable.
	ErrInvalidRoot = errors.New("invalid store root")

	// ErrAlreadyLocked indicates another instance holds the lock marker.
	//
	// A marker left behind by a crash is not detected automatically; remove
	// it with Unlock once no process uses the root.
	ErrAlreadyLocked = errors.New("store root is locked")

	// ErrStoreInit indicates the layout could neither be recovered nor created.
	ErrStoreInit = errors.New("store initialization failed")

	// ErrFileAccess indicates a source file precondition failed.
	// The concrete error is a *FileAccessError naming the check.
	//
	// Protocol Mapping:
	//   - HTTP: 400 Bad Request
	ErrFileAccess = errors.New("file access check failed")

	// ErrStoreAdd indicates a failure while placing a file during Add.
	ErrStoreAdd = errors.New("failed to add file")

	// ErrStoreIO indicates a directory could not be created or written, or a
	// file could not be moved inside the store.
	ErrStoreIO = errors.New("store I/O failed")

	// ErrConsistency indicates metadata and filesystem disagree: a record
	// points at a path that is not an existing regular file.
	//
	// Protocol Mapping:
	//   - HTTP: 409 Conflict
	ErrConsistency = errors.New("metadata and filesystem are inconsistent")

	// ErrIdentifierExhausted indicates every identifier candidate collided.
	ErrIdentifierExhausted = errors.New("identifier attempts exhausted")

	// ErrShutdown indicates the lock marker could not be removed on shutdown.
	// Metadata was saved before the failure.
	ErrShutdown = errors.New("store shutdown failed")
)

// AccessCheck names a source file precondition.
type AccessCheck string

const (
	CheckExists   AccessCheck = "exists"
	CheckRegular  AccessCheck = "regular"
	CheckReadable AccessCheck = "readable"
	CheckWritable AccessCheck = "writable"
)

// FileAccessError reports which precondition a source file failed.
type FileAccessError struct {
	Path  string
	Check AccessCheck
	Err   error
}

func (e *FileAccessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("file %s failed %s check: %v", e.Path, e.Check, e.Err)
	}
	return fmt.Sprintf("file %s failed %s check", e.Path, e.Check)
}

// Is makes errors.Is(err, ErrFileAccess) match.
func (e *FileAccessError) Is(target error) bool {
	return target == ErrFileAccess
}

func (e *FileAccessError) Unwrap() error {
	return e.Err
}
