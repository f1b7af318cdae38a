package metadata

import "errors"

// ============================================================================
// Standard Metadata Store Errors
// ============================================================================

// These errors provide a consistent way to indicate common failure conditions
// across all metadata store implementations. Callers should check for them
// with errors.Is; implementations wrap them with additional context:
//
//	if _, ok := s.current[id]; !ok {
//	    return fmt.Errorf("id %s: %w", id, metadata.ErrNotFound)
//	}

var (
	// ErrNotFound indicates the id is not present in the set the operation
	// looks at (current for Get/Remove, removed for GetRemoved/Restore).
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument indicates a malformed id or field set.
	//
	// This error is returned when:
	//   - The id is empty
	//   - The field set passed to AddOrUpdate is nil
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPersistence indicates the backing file or database could not be
	// read or written.
	ErrPersistence = errors.New("metadata persistence failed")

	// ErrClosed indicates the store has been shut down. A shut-down store
	// never becomes usable again.
	ErrClosed = errors.New("metadata store is closed")
)
