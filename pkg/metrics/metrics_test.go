package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marmos91/dittostore/pkg/metadata"
	"github.com/marmos91/dittostore/pkg/metadata/memory"
	"github.com/marmos91/dittostore/pkg/observer"
	"github.com/marmos91/dittostore/pkg/remote"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewActionMetricsWith(reg)

	subject := observer.NewSubject()
	_, err := subject.Register(m)
	require.NoError(t, err)

	subject.Inform(observer.Action{Type: observer.ActionStoreAdd, Source: "filestore"})
	subject.Inform(observer.Action{Type: observer.ActionStoreAdd, Source: "filestore"})
	subject.Inform(observer.Action{Type: observer.ActionMetaRemove, Source: "metadata"})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.total.WithLabelValues(string(observer.ActionStoreAdd), "filestore")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.total.WithLabelValues(string(observer.ActionMetaRemove), "metadata")))
	assert.Greater(t, testutil.ToFloat64(m.last.WithLabelValues(string(observer.ActionStoreAdd))), 0.0)
}

func TestRegisterReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := NewActionMetricsWith(reg)
	second := NewActionMetricsWith(reg)

	first.Notify(observer.Action{Type: observer.ActionStoreGet, Source: "filestore"})
	second.Notify(observer.Action{Type: observer.ActionStoreGet, Source: "filestore"})

	assert.Equal(t, 2.0, testutil.ToFloat64(first.total.WithLabelValues(string(observer.ActionStoreGet), "filestore")))
}

func TestInstrumentMetadata(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetadataMetricsWith(reg, "memory").(*metadataMetrics)

	inner, err := memory.NewMemoryMetadataStore(memory.Config{})
	require.NoError(t, err)
	store := InstrumentMetadata(inner, m)

	require.NoError(t, store.AddOrUpdate("a", metadata.Record{"path": "/a"}))
	_, err = store.Get("missing")
	require.ErrorIs(t, err, metadata.ErrNotFound)
	require.NoError(t, store.Remove("a"))
	require.NoError(t, store.Save())

	assert.True(t, store.HasRemoved("a"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("memory", "AddOrUpdate", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("memory", "Get", "error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.records.WithLabelValues("memory", "current")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.records.WithLabelValues("memory", "removed")))
}

type stubRemote struct {
	data map[string][]byte
}

func (s *stubRemote) Add(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	s.data[filepath.Base(path)] = data
	return filepath.Base(path), nil
}

func (s *stubRemote) Get(_ context.Context, locator string) ([]byte, error) {
	data, ok := s.data[locator]
	if !ok {
		return nil, remote.ErrNotFound
	}
	return data, nil
}

func (s *stubRemote) Remove(_ context.Context, locator string) error {
	delete(s.data, locator)
	return nil
}

func (s *stubRemote) Close() error { return nil }

func TestInstrumentRemote(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRemoteMetricsWith(reg, "stub").(*remoteMetrics)
	store := InstrumentRemoteWith(&stubRemote{data: map[string][]byte{}}, m)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, os.WriteFile(src, []byte("12345"), 0644))

	locator, err := store.Add(ctx, src)
	require.NoError(t, err)
	_, err = store.Get(ctx, locator)
	require.NoError(t, err)
	_, err = store.Get(ctx, "nope")
	require.True(t, errors.Is(err, remote.ErrNotFound))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("stub", "add", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("stub", "get", "error")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.bytesTransferred.WithLabelValues("stub", "download")))
}

func TestInstrumentHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := InstrumentHandlerWith(reg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	expected := `
# HELP dittostore_http_requests_total Total number of API requests by status code and method
# TYPE dittostore_http_requests_total counter
dittostore_http_requests_total{code="418",method="get"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "dittostore_http_requests_total"))
}

func TestDisabledMetricsAreNoops(t *testing.T) {
	if IsEnabled() {
		t.Skip("global registry already initialized")
	}

	assert.IsType(t, noopMetadataMetrics{}, NewMetadataMetrics("memory"))
	assert.IsType(t, noopRemoteMetrics{}, NewRemoteMetrics("webdav"))

	stub := &stubRemote{}
	assert.Same(t, remote.Store(stub), InstrumentRemote(stub, "stub"))

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, Path, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlerForServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewActionMetricsWith(reg).Notify(observer.Action{Type: observer.ActionStoreAdd})

	rec := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, Path, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dittostore_actions_total")
}
