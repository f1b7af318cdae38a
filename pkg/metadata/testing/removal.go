package testing

import (
	"testing"

	"github.com/marmos91/dittostore/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *StoreTestSuite) RunRemovalTests(test *testing.T) {
	test.Run("Remove_MovesToRemoved", suite.TestRemove_MovesToRemoved)
	test.Run("Remove_NotFound", suite.TestRemove_NotFound)
	test.Run("Remove_Twice", suite.TestRemove_Twice)
	test.Run("Restore_RoundTrip", suite.TestRestore_RoundTrip)
	test.Run("Restore_NotFound", suite.TestRestore_NotFound)
	test.Run("Restore_CurrentID", suite.TestRestore_CurrentID)
	test.Run("AddOrUpdate_AfterRestore", suite.TestAddOrUpdate_AfterRestore)
	test.Run("AddOrUpdate_RemovedID", suite.TestAddOrUpdate_RemovedID)
}

// TestRemove_MovesToRemoved verifies the id leaves current and enters removed.
func (suite *StoreTestSuite) TestRemove_MovesToRemoved(test *testing.T) {
	store, _ := suite.newStore(test)
	require.NoError(test, store.AddOrUpdate("a", SampleRecord()))

	require.NoError(test, store.Remove("a"))

	assert.False(test, store.Has("a"))
	assert.True(test, store.HasRemoved("a"))

	_, err := store.Get("a")
	AssertErrorIs(test, metadata.ErrNotFound, err)

	rec, err := store.GetRemoved("a")
	require.NoError(test, err)
	assert.Equal(test, "x", rec["project"])
}

func (suite *StoreTestSuite) TestRemove_NotFound(test *testing.T) {
	store, _ := suite.newStore(test)
	require.NoError(test, store.AddOrUpdate("a", SampleRecord()))

	err := store.Remove("missing")
	AssertErrorIs(test, metadata.ErrNotFound, err)

	assert.True(test, store.Has("a"), "other records must be untouched")
}

// TestRemove_Twice verifies a removed id is not current anymore.
func (suite *StoreTestSuite) TestRemove_Twice(test *testing.T) {
	store, _ := suite.newStore(test)
	require.NoError(test, store.AddOrUpdate("a", SampleRecord()))
	require.NoError(test, store.Remove("a"))

	err := store.Remove("a")
	AssertErrorIs(test, metadata.ErrNotFound, err)
	assert.True(test, store.HasRemoved("a"))
}

func (suite *StoreTestSuite) TestRestore_RoundTrip(test *testing.T) {
	store, _ := suite.newStore(test)
	require.NoError(test, store.AddOrUpdate("a", SampleRecord()))
	require.NoError(test, store.Remove("a"))

	require.NoError(test, store.Restore("a"))

	assert.True(test, store.Has("a"))
	assert.False(test, store.HasRemoved("a"))

	rec, err := store.Get("a")
	require.NoError(test, err)
	assert.Equal(test, "x", rec["project"])
}

func (suite *StoreTestSuite) TestRestore_NotFound(test *testing.T) {
	store, _ := suite.newStore(test)

	err := store.Restore("missing")
	AssertErrorIs(test, metadata.ErrNotFound, err)
}

// TestRestore_CurrentID verifies Restore only looks at the removed set.
func (suite *StoreTestSuite) TestRestore_CurrentID(test *testing.T) {
	store, _ := suite.newStore(test)
	require.NoError(test, store.AddOrUpdate("a", SampleRecord()))

	err := store.Restore("a")
	AssertErrorIs(test, metadata.ErrNotFound, err)
	assert.True(test, store.Has("a"))
}

// TestAddOrUpdate_AfterRestore verifies the restored record can be updated in place.
func (suite *StoreTestSuite) TestAddOrUpdate_AfterRestore(test *testing.T) {
	store, _ := suite.newStore(test)
	require.NoError(test, store.AddOrUpdate("a", metadata.Record{"path": "/live", "k": "v"}))
	require.NoError(test, store.Remove("a"))
	require.NoError(test, store.Restore("a"))

	require.NoError(test, store.AddOrUpdate("a", metadata.Record{"path": "/live/again"}))

	rec, err := store.Get("a")
	require.NoError(test, err)
	assert.Equal(test, metadata.Record{"path": "/live/again", "k": "v"}, rec)
}

// TestAddOrUpdate_RemovedID verifies an id never ends up in both sets.
func (suite *StoreTestSuite) TestAddOrUpdate_RemovedID(test *testing.T) {
	store, _ := suite.newStore(test)
	require.NoError(test, store.AddOrUpdate("a", metadata.Record{"path": "/live"}))
	require.NoError(test, store.Remove("a"))

	err := store.AddOrUpdate("a", metadata.Record{"path": "/other"})
	AssertErrorIs(test, metadata.ErrInvalidArgument, err)

	assert.False(test, store.Has("a"))
	rec, err := store.GetRemoved("a")
	require.NoError(test, err)
	assert.Equal(test, "/live", rec.Path())
}
