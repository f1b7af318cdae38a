package testing

import (
	"errors"
	"testing"

	"github.com/marmos91/dittostore/pkg/metadata"
	"github.com/marmos91/dittostore/pkg/observer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorIs checks that err matches target with errors.Is.
func AssertErrorIs(test *testing.T, target, err error, msgAndArgs ...any) {
	test.Helper()
	require.Error(test, err, msgAndArgs...)
	assert.True(test, errors.Is(err, target), "expected %v, got %v", target, err)
}

// SampleRecord returns a record with one field of each supported kind.
func SampleRecord() metadata.Record {
	return metadata.Record{
		"path":    "/store/filestore/2026/10/14/a",
		"project": "x",
		"pages":   42,
		"draft":   true,
	}
}

// recorder collects actions delivered by a notifier.
type recorder struct {
	actions []observer.Action
}

func (r *recorder) Notify(action observer.Action) {
	r.actions = append(r.actions, action)
}

func (r *recorder) types() []observer.ActionType {
	types := make([]observer.ActionType, 0, len(r.actions))
	for _, a := range r.actions {
		types = append(types, a.Type)
	}
	return types
}
