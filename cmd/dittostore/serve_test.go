package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/marmos91/dittostore/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession(t *testing.T) (*config.Config, *session) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	tenantID = ""

	cfg := config.GetDefaultConfig()
	cfg.Store.Root = t.TempDir()

	s, err := openSession(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.close() })
	return cfg, s
}

func TestBuildHandlerServesAPI(t *testing.T) {
	cfg, s := testSession(t)

	handler, err := buildHandler(cfg, s)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"files":[]}`, rec.Body.String())
}

func TestBuildHandlerUploadLimit(t *testing.T) {
	cfg, s := testSession(t)
	cfg.Server.MaxUploadSize = "8B"

	handler, err := buildHandler(cfg, s)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/files", strings.NewReader("more than eight bytes")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/files", strings.NewReader("small")))
	assert.Equal(t, http.StatusCreated, rec.Code)

	cfg.Server.MaxUploadSize = "huge"
	_, err = buildHandler(cfg, s)
	assert.Error(t, err)
}

func TestBuildHandlerRateLimit(t *testing.T) {
	cfg, s := testSession(t)
	cfg.Server.RateLimit.RequestsPerSecond = 1
	cfg.Server.RateLimit.Burst = 1

	handler, err := buildHandler(cfg, s)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
