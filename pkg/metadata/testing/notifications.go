package testing

import (
	"testing"

	"github.com/marmos91/dittostore/pkg/metadata"
	"github.com/marmos91/dittostore/pkg/observer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *StoreTestSuite) RunNotificationTests(test *testing.T) {
	test.Run("Notify_CommittedMutations", suite.TestNotify_CommittedMutations)
	test.Run("Notify_NotOnFailure", suite.TestNotify_NotOnFailure)
}

// TestNotify_CommittedMutations verifies one action per committed mutation, in order.
func (suite *StoreTestSuite) TestNotify_CommittedMutations(test *testing.T) {
	subject := observer.NewSubject()
	rec := &recorder{}
	_, err := subject.Register(rec)
	require.NoError(test, err)

	store, err := suite.Open(test.TempDir(), subject)
	require.NoError(test, err)

	require.NoError(test, store.AddOrUpdate("a", SampleRecord()))
	require.NoError(test, store.Remove("a"))
	require.NoError(test, store.Restore("a"))
	require.NoError(test, store.Shutdown())

	assert.Equal(test, []observer.ActionType{
		observer.ActionMetaAdd,
		observer.ActionMetaRemove,
		observer.ActionMetaRestore,
		observer.ActionMetaShutdown,
	}, rec.types())

	assert.Equal(test, metadata.Source, rec.actions[0].Source)
	assert.Equal(test, []string{"a"}, rec.actions[0].Objects)
}

// TestNotify_NotOnFailure verifies failed operations publish nothing.
func (suite *StoreTestSuite) TestNotify_NotOnFailure(test *testing.T) {
	subject := observer.NewSubject()
	rec := &recorder{}
	_, err := subject.Register(rec)
	require.NoError(test, err)

	store, err := suite.Open(test.TempDir(), subject)
	require.NoError(test, err)
	defer func() { _ = store.Shutdown() }()

	require.Error(test, store.AddOrUpdate("", metadata.Record{}))
	require.Error(test, store.Remove("missing"))
	require.Error(test, store.Restore("missing"))

	assert.Empty(test, rec.actions)
}
