package testing

import (
	"testing"

	"github.com/marmos91/dittostore/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *StoreTestSuite) RunRecordTests(test *testing.T) {
	test.Run("AddOrUpdate_InsertsRecord", suite.TestAddOrUpdate_InsertsRecord)
	test.Run("AddOrUpdate_MergesFields", suite.TestAddOrUpdate_MergesFields)
	test.Run("AddOrUpdate_EmptyID", suite.TestAddOrUpdate_EmptyID)
	test.Run("AddOrUpdate_NilFields", suite.TestAddOrUpdate_NilFields)
	test.Run("AddOrUpdate_EmptyFields", suite.TestAddOrUpdate_EmptyFields)
	test.Run("Get_NotFound", suite.TestGet_NotFound)
	test.Run("Get_ReturnsCopy", suite.TestGet_ReturnsCopy)
	test.Run("List_Sorted", suite.TestList_Sorted)
}

// TestAddOrUpdate_InsertsRecord verifies a new id becomes current with all fields.
func (suite *StoreTestSuite) TestAddOrUpdate_InsertsRecord(test *testing.T) {
	store, _ := suite.newStore(test)

	require.NoError(test, store.AddOrUpdate("a", SampleRecord()))

	assert.True(test, store.Has("a"))
	assert.False(test, store.HasRemoved("a"))

	rec, err := store.Get("a")
	require.NoError(test, err)
	assert.Equal(test, "/store/filestore/2026/10/14/a", rec.Path())
	assert.Equal(test, "x", rec["project"])
	assert.EqualValues(test, 42, rec["pages"])
	assert.Equal(test, true, rec["draft"])
}

// TestAddOrUpdate_MergesFields verifies field-by-field merge with overwrite.
func (suite *StoreTestSuite) TestAddOrUpdate_MergesFields(test *testing.T) {
	store, _ := suite.newStore(test)

	require.NoError(test, store.AddOrUpdate("a", metadata.Record{"path": "/old", "owner": "alice"}))
	require.NoError(test, store.AddOrUpdate("a", metadata.Record{"path": "/new", "tag": "t1"}))

	rec, err := store.Get("a")
	require.NoError(test, err)
	assert.Equal(test, metadata.Record{"path": "/new", "owner": "alice", "tag": "t1"}, rec)
}

func (suite *StoreTestSuite) TestAddOrUpdate_EmptyID(test *testing.T) {
	store, _ := suite.newStore(test)

	err := store.AddOrUpdate("", metadata.Record{"k": "v"})
	AssertErrorIs(test, metadata.ErrInvalidArgument, err)

	ids, err := store.List()
	require.NoError(test, err)
	assert.Empty(test, ids)
}

func (suite *StoreTestSuite) TestAddOrUpdate_NilFields(test *testing.T) {
	store, _ := suite.newStore(test)

	err := store.AddOrUpdate("a", nil)
	AssertErrorIs(test, metadata.ErrInvalidArgument, err)
	assert.False(test, store.Has("a"))
}

// TestAddOrUpdate_EmptyFields verifies an empty (non-nil) field set inserts an empty record.
func (suite *StoreTestSuite) TestAddOrUpdate_EmptyFields(test *testing.T) {
	store, _ := suite.newStore(test)

	require.NoError(test, store.AddOrUpdate("a", metadata.Record{}))
	assert.True(test, store.Has("a"))

	rec, err := store.Get("a")
	require.NoError(test, err)
	assert.Empty(test, rec)
}

func (suite *StoreTestSuite) TestGet_NotFound(test *testing.T) {
	store, _ := suite.newStore(test)

	_, err := store.Get("missing")
	AssertErrorIs(test, metadata.ErrNotFound, err)

	_, err = store.GetRemoved("missing")
	AssertErrorIs(test, metadata.ErrNotFound, err)
}

// TestGet_ReturnsCopy verifies callers cannot mutate stored state through Get.
func (suite *StoreTestSuite) TestGet_ReturnsCopy(test *testing.T) {
	store, _ := suite.newStore(test)

	fields := metadata.Record{"path": "/p"}
	require.NoError(test, store.AddOrUpdate("a", fields))
	fields["path"] = "/changed-after-add"

	rec, err := store.Get("a")
	require.NoError(test, err)
	rec["path"] = "/changed-after-get"

	again, err := store.Get("a")
	require.NoError(test, err)
	assert.Equal(test, "/p", again.Path())
}

func (suite *StoreTestSuite) TestList_Sorted(test *testing.T) {
	store, _ := suite.newStore(test)

	for _, id := range []string{"c", "a", "b", "d"} {
		require.NoError(test, store.AddOrUpdate(id, metadata.Record{"path": "/" + id}))
	}
	require.NoError(test, store.Remove("d"))

	ids, err := store.List()
	require.NoError(test, err)
	assert.Equal(test, []string{"a", "b", "c"}, ids)

	removed, err := store.ListRemoved()
	require.NoError(test, err)
	assert.Equal(test, []string{"d"}, removed)
}
