// Package testing provides a conformance suite for metadata.Store
// implementations.
package testing

import (
	"testing"

	"github.com/marmos91/dittostore/pkg/metadata"
	"github.com/marmos91/dittostore/pkg/observer"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite is a comprehensive test suite for metadata.Store implementations.
// It tests the interface contract, not implementation details, making it reusable
// across the memory, badger, bolt and sqlite backends.
type StoreTestSuite struct {
	// Open opens (or reopens) the store persisted under root, publishing
	// actions on notifier. Tests call it with a fresh t.TempDir() for
	// isolation and again with the same root to check persistence.
	Open func(root string, notifier observer.Notifier) (metadata.Store, error)
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(test *testing.T) {
	test.Run("Records", suite.RunRecordTests)
	test.Run("Removal", suite.RunRemovalTests)
	test.Run("Lifecycle", suite.RunLifecycleTests)
	test.Run("Notifications", suite.RunNotificationTests)
}

// newStore opens a store in a fresh directory and registers a cleanup that
// shuts it down if the test did not.
func (suite *StoreTestSuite) newStore(test *testing.T) (metadata.Store, string) {
	test.Helper()

	root := test.TempDir()
	store, err := suite.Open(root, nil)
	require.NoError(test, err)

	test.Cleanup(func() { _ = store.Shutdown() })
	return store, root
}
