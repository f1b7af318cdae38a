package testing

import (
	"testing"

	"github.com/marmos91/dittostore/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *StoreTestSuite) RunLifecycleTests(test *testing.T) {
	test.Run("Save_Idempotent", suite.TestSave_Idempotent)
	test.Run("Shutdown_Persists", suite.TestShutdown_Persists)
	test.Run("Shutdown_ClosesStore", suite.TestShutdown_ClosesStore)
	test.Run("Reopen_EmptyRoot", suite.TestReopen_EmptyRoot)
}

// TestSave_Idempotent verifies repeated saves are full overwrites.
func (suite *StoreTestSuite) TestSave_Idempotent(test *testing.T) {
	store, _ := suite.newStore(test)
	require.NoError(test, store.AddOrUpdate("a", SampleRecord()))

	require.NoError(test, store.Save())
	require.NoError(test, store.Save())
	require.NoError(test, store.Remove("a"))
	require.NoError(test, store.Save())

	ids, err := store.List()
	require.NoError(test, err)
	assert.Empty(test, ids)

	removed, err := store.ListRemoved()
	require.NoError(test, err)
	assert.Equal(test, []string{"a"}, removed)
}

// TestShutdown_Persists verifies both sets survive shutdown and reopen.
func (suite *StoreTestSuite) TestShutdown_Persists(test *testing.T) {
	root := test.TempDir()

	store, err := suite.Open(root, nil)
	require.NoError(test, err)
	require.NoError(test, store.AddOrUpdate("live", SampleRecord()))
	require.NoError(test, store.AddOrUpdate("gone", metadata.Record{"path": "/deleted/gone"}))
	require.NoError(test, store.Remove("gone"))
	require.NoError(test, store.Shutdown())

	reopened, err := suite.Open(root, nil)
	require.NoError(test, err)
	defer func() { _ = reopened.Shutdown() }()

	rec, err := reopened.Get("live")
	require.NoError(test, err)
	assert.Equal(test, "x", rec["project"])
	assert.EqualValues(test, 42, rec["pages"])
	assert.Equal(test, true, rec["draft"])

	assert.True(test, reopened.HasRemoved("gone"))
	assert.False(test, reopened.Has("gone"))

	gone, err := reopened.GetRemoved("gone")
	require.NoError(test, err)
	assert.Equal(test, "/deleted/gone", gone.Path())
}

// TestShutdown_ClosesStore verifies every call after Shutdown fails with ErrClosed.
func (suite *StoreTestSuite) TestShutdown_ClosesStore(test *testing.T) {
	store, err := suite.Open(test.TempDir(), nil)
	require.NoError(test, err)
	require.NoError(test, store.AddOrUpdate("a", SampleRecord()))

	require.NoError(test, store.Shutdown())

	assert.False(test, store.Has("a"))
	assert.False(test, store.HasRemoved("a"))

	_, err = store.Get("a")
	AssertErrorIs(test, metadata.ErrClosed, err)
	_, err = store.GetRemoved("a")
	AssertErrorIs(test, metadata.ErrClosed, err)
	AssertErrorIs(test, metadata.ErrClosed, store.AddOrUpdate("b", metadata.Record{}))
	AssertErrorIs(test, metadata.ErrClosed, store.Remove("a"))
	AssertErrorIs(test, metadata.ErrClosed, store.Restore("a"))
	_, err = store.List()
	AssertErrorIs(test, metadata.ErrClosed, err)
	_, err = store.ListRemoved()
	AssertErrorIs(test, metadata.ErrClosed, err)
	AssertErrorIs(test, metadata.ErrClosed, store.Save())
	AssertErrorIs(test, metadata.ErrClosed, store.Shutdown())
}

func (suite *StoreTestSuite) TestReopen_EmptyRoot(test *testing.T) {
	root := test.TempDir()

	store, err := suite.Open(root, nil)
	require.NoError(test, err)
	require.NoError(test, store.Shutdown())

	reopened, err := suite.Open(root, nil)
	require.NoError(test, err)
	defer func() { _ = reopened.Shutdown() }()

	ids, err := reopened.List()
	require.NoError(test, err)
	assert.Empty(test, ids)
}
