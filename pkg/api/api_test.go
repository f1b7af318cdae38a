package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/dittostore/pkg/filestore"
	"github.com/marmos91/dittostore/pkg/multitenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T) (*API, *filestore.Store, *multitenant.Store) {
	t.Helper()

	files, err := filestore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = files.Shutdown() })

	tenants, err := multitenant.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tenants.Shutdown() })

	return New(files, tenants), files, tenants
}

func do(t *testing.T, h http.Handler, method, target string, body io.Reader, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func upload(t *testing.T, h http.Handler, prefix, content string) string {
	t.Helper()
	header := http.Header{}
	header.Set(FilenameHeader, "/client/side/report.txt")
	header.Set("X-Meta-Project", "apollo")

	rec := do(t, h, http.MethodPost, prefix+"/files", strings.NewReader(content), header)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[map[string]string](t, rec)["id"]
}

func TestFilesLifecycle(t *testing.T) {
	a, files, _ := newTestAPI(t)

	id := upload(t, a, "", "hello api")
	assert.True(t, files.Has(id))

	rec := do(t, a, http.MethodGet, "/files/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello api", rec.Body.String())
	assert.Equal(t, `attachment; filename="report.txt"`, rec.Header().Get("Content-Disposition"))

	rec = do(t, a, http.MethodGet, "/files/"+id+"/meta", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	meta := decode[map[string]any](t, rec)
	assert.Equal(t, "apollo", meta["project"])
	assert.Equal(t, "report.txt", meta[OriginalFileField])
	assert.NotEmpty(t, meta["path"])

	rec = do(t, a, http.MethodGet, "/files", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{id}, decode[map[string][]string](t, rec)["files"])

	rec = do(t, a, http.MethodDelete, "/files/"+id, nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, a, http.MethodGet, "/files/"+id, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, a, http.MethodGet, "/files?removed=true", nil, nil)
	assert.Equal(t, []string{id}, decode[map[string][]string](t, rec)["files"])

	rec = do(t, a, http.MethodGet, "/files/"+id+"/meta?removed=true", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, a, http.MethodPost, "/files/"+id+"/restore", nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, a, http.MethodGet, "/files/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello api", rec.Body.String())
}

func TestFilesErrors(t *testing.T) {
	a, _, _ := newTestAPI(t)

	rec := do(t, a, http.MethodGet, "/files/unknown", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)

	rec = do(t, a, http.MethodDelete, "/files/unknown", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, a, http.MethodPost, "/files/unknown/restore", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, a, http.MethodPut, "/files", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestEmptyList(t *testing.T) {
	a, _, _ := newTestAPI(t)

	rec := do(t, a, http.MethodGet, "/files", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"files":[]}`, rec.Body.String())
}

func TestTenants(t *testing.T) {
	a, _, tenants := newTestAPI(t)

	rec := do(t, a, http.MethodPost, "/tenants", strings.NewReader(`{"id":"acme"}`), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "acme", decode[map[string]string](t, rec)["id"])

	rec = do(t, a, http.MethodPost, "/tenants", strings.NewReader(`{"id":"acme"}`), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, a, http.MethodPost, "/tenants", nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	generated := decode[map[string]string](t, rec)["id"]
	assert.NotEmpty(t, generated)

	rec = do(t, a, http.MethodGet, "/tenants", nil, nil)
	assert.ElementsMatch(t, []string{"acme", generated}, decode[map[string][]string](t, rec)["tenants"])

	id := upload(t, a, "/tenants/acme", "tenant data")
	f, err := tenants.GetFromTenant("acme", id)
	require.NoError(t, err)
	assert.Equal(t, "apollo", f.Data.String("project"))

	rec = do(t, a, http.MethodGet, "/tenants/acme/files/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tenant data", rec.Body.String())

	// Files are isolated per tenant.
	rec = do(t, a, http.MethodGet, fmt.Sprintf("/tenants/%s/files/%s", generated, id), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, a, http.MethodGet, "/tenants/ghost/files", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, a, http.MethodDelete, "/tenants/acme", nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, tenants.HasTenant("acme"))
}

func TestInvalidTenantBody(t *testing.T) {
	a, _, _ := newTestAPI(t)

	rec := do(t, a, http.MethodPost, "/tenants", strings.NewReader(`{not json`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMissingStores(t *testing.T) {
	a := New(nil, nil)

	rec := do(t, a, http.MethodGet, "/files", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, a, http.MethodGet, "/tenants", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, a, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClosedStore(t *testing.T) {
	files, err := filestore.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, files.Shutdown())

	rec := do(t, New(files, nil), http.MethodGet, "/files", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUploadSpoolsIntoStoreRoot(t *testing.T) {
	a, files, tenants := newTestAPI(t)

	id := upload(t, a, "", "spooled")
	f, err := files.Get(id)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(f.Path, files.Layout().Store+string(os.PathSeparator)))
	assertEmptyDir(t, files.Layout().Rollback)

	rec := do(t, a, http.MethodPost, "/tenants", strings.NewReader(`{"id": "acme"}`), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	upload(t, a, "/tenants/acme", "tenant data")

	tenant, err := tenants.Tenant("acme")
	require.NoError(t, err)
	assertEmptyDir(t, tenant.Layout().Rollback)
}

func TestUploadTooLarge(t *testing.T) {
	files, err := filestore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = files.Shutdown() })

	a := New(files, nil, WithMaxUploadSize(4))

	rec := do(t, a, http.MethodPost, "/files", strings.NewReader("12345"), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	ids, err := files.List()
	require.NoError(t, err)
	assert.Empty(t, ids)
	assertEmptyDir(t, files.Layout().Rollback)

	rec = do(t, a, http.MethodPost, "/files", strings.NewReader("1234"), nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestUploadUnlimited(t *testing.T) {
	files, err := filestore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = files.Shutdown() })

	a := New(files, nil, WithMaxUploadSize(0))

	rec := do(t, a, http.MethodPost, "/files", strings.NewReader(strings.Repeat("x", 1<<16)), nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{filestore.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", multitenant.ErrTenantNotFound), http.StatusNotFound},
		{&filestore.FileAccessError{Path: "/x", Check: filestore.CheckReadable}, http.StatusBadRequest},
		{filestore.ErrInvalidArgument, http.StatusBadRequest},
		{filestore.ErrConsistency, http.StatusConflict},
		{multitenant.ErrTenantExists, http.StatusConflict},
		{filestore.ErrClosed, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: limit is 4 bytes", errUploadTooLarge), http.StatusRequestEntityTooLarge},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusCode(tt.err), tt.err.Error())
	}
}

func TestServerStartStop(t *testing.T) {
	a, _, _ := newTestAPI(t)
	srv := NewServer(ServerConfig{Listen: "127.0.0.1:0", ShutdownTimeout: time.Second}, a)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	require.Eventually(t, func() bool { return srv.Addr() != nil }, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + srv.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
