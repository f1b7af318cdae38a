package metadata

// ============================================================================
// Store Interface
// ============================================================================

// Store maps opaque string identifiers to metadata records.
//
// A store holds two disjoint sets: current (records of live files) and removed
// (records of soft-deleted files awaiting restore). An id is a key in at most
// one of the two sets at any time.
//
// The file store drives a Store together with physical file moves and relies
// on each mutating call being atomic: when a call returns an error, the sets
// are exactly as they were before the call.
//
// Persistence:
// In-memory backends persist on Save/Shutdown and load on construction.
// Database backends persist on every mutation; for them Save flushes to disk
// and is otherwise a cheap no-op.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
//
// Notifications:
// Every committed mutation emits an observer.Action on the store's notifier.
// A store without observers uses the null notifier.
type Store interface {
	// Get returns a copy of the current record for id.
	//
	// Returns:
	//   - Record: Copy of the record (mutating it does not affect the store)
	//   - error: ErrNotFound if id is not current, ErrClosed after Shutdown
	Get(id string) (Record, error)

	// GetRemoved returns a copy of the removed record for id.
	//
	// Returns:
	//   - error: ErrNotFound if id is not in the removed set
	GetRemoved(id string) (Record, error)

	// AddOrUpdate inserts a new current record or merges fields into the
	// existing one (new values overwrite old ones for identical keys).
	//
	// Returns:
	//   - error: ErrInvalidArgument if id is empty, fields is nil, or id is
	//     in the removed set (restore it first)
	AddOrUpdate(id string, fields Record) error

	// Remove moves the record for id from current to removed.
	//
	// Returns:
	//   - error: ErrNotFound if id is not current
	Remove(id string) error

	// Restore moves the record for id from removed back to current.
	//
	// Returns:
	//   - error: ErrNotFound if id is not in the removed set
	Restore(id string) error

	// Has reports whether id is in the current set.
	// It returns false after Shutdown.
	Has(id string) bool

	// HasRemoved reports whether id is in the removed set.
	HasRemoved(id string) bool

	// List returns the ids of the current set in lexical order.
	List() ([]string, error)

	// ListRemoved returns the ids of the removed set in lexical order.
	ListRemoved() ([]string, error)

	// Save persists both sets, fully overwriting previous state.
	// Safe to call any number of times.
	//
	// Returns:
	//   - error: ErrPersistence on I/O failure
	Save() error

	// Shutdown saves and then releases all resources. The store is unusable
	// afterwards; every later call returns ErrClosed (Has returns false).
	// If saving fails, the store stays open so Shutdown can be retried.
	Shutdown() error
}

// Factory opens the metadata store belonging to a file store root.
//
// The file store calls the factory once during bootstrap, after the root
// layout has been recovered or created.
type Factory func(root string) (Store, error)
