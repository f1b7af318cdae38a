// Package api serves a file store, and optionally a multitenant store, over
// HTTP.
//
// Routes:
//
//	POST   /files                    upload the request body as a new file
//	GET    /files                    list ids (?removed=true for removed ids)
//	GET    /files/{id}               download the file
//	GET    /files/{id}/meta          metadata record (?removed=true for removed ids)
//	DELETE /files/{id}               soft delete
//	POST   /files/{id}/restore       undo a soft delete
//	GET    /tenants                  list tenants
//	POST   /tenants                  create a tenant ({"id": "..."} or empty body)
//	DELETE /tenants/{tenant}         remove a tenant and its data
//	*      /tenants/{tenant}/files…  the /files routes for one tenant
//	GET    /healthz                  liveness
//
// Uploads carry their metadata in headers: X-Filename is stored as the
// original_file field and every X-Meta-<Name> header becomes a field named
// <name> in lower case. The body is spooled into the rollback directory of
// the target store, so adding it is a rename on the same device. Bodies
// larger than the upload limit are answered with 413.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/pkg/filestore"
	"github.com/marmos91/dittostore/pkg/metadata"
	"github.com/marmos91/dittostore/pkg/multitenant"
)

const (
	// FilenameHeader carries the client-side name of an upload.
	FilenameHeader = "X-Filename"

	// MetaHeaderPrefix marks headers copied into the metadata record.
	MetaHeaderPrefix = "X-Meta-"

	// OriginalFileField is the record field holding X-Filename.
	OriginalFileField = metadata.OriginalFileField

	// DefaultMaxUploadSize is the upload cap when none is configured.
	DefaultMaxUploadSize int64 = 1 << 30
)

// ErrNoStore indicates the route needs a store the API was built without.
var ErrNoStore = errors.New("store not configured")

// API routes requests to a file store and a multitenant store. Either may be
// nil; routes for a missing store answer 404.
type API struct {
	files     *filestore.Store
	tenants   *multitenant.Store
	router    *mux.Router
	maxUpload int64
}

// Option configures an API.
type Option func(*API)

// WithMaxUploadSize caps upload bodies at n bytes. 0 removes the cap.
func WithMaxUploadSize(n int64) Option {
	return func(a *API) {
		a.maxUpload = n
	}
}

// New builds the router.
func New(files *filestore.Store, tenants *multitenant.Store, opts ...Option) *API {
	a := &API{
		files:     files,
		tenants:   tenants,
		router:    mux.NewRouter(),
		maxUpload: DefaultMaxUploadSize,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.router.HandleFunc("/healthz", a.handleHealth).Methods(http.MethodGet)

	a.fileRoutes(a.router)

	a.router.HandleFunc("/tenants", a.handleListTenants).Methods(http.MethodGet)
	a.router.HandleFunc("/tenants", a.handleCreateTenant).Methods(http.MethodPost)
	a.router.HandleFunc("/tenants/{tenant}", a.handleRemoveTenant).Methods(http.MethodDelete)
	a.fileRoutes(a.router.PathPrefix("/tenants/{tenant}").Subrouter())

	return a
}

func (a *API) fileRoutes(r *mux.Router) {
	r.HandleFunc("/files", a.handleAdd).Methods(http.MethodPost)
	r.HandleFunc("/files", a.handleList).Methods(http.MethodGet)
	r.HandleFunc("/files/{id}", a.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/files/{id}", a.handleRemove).Methods(http.MethodDelete)
	r.HandleFunc("/files/{id}/meta", a.handleMeta).Methods(http.MethodGet)
	r.HandleFunc("/files/{id}/restore", a.handleRestore).Methods(http.MethodPost)
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// store resolves the file store a request addresses.
func (a *API) store(r *http.Request) (*filestore.Store, error) {
	tenant, ok := mux.Vars(r)["tenant"]
	if !ok {
		if a.files == nil {
			return nil, fmt.Errorf("%w: single store", ErrNoStore)
		}
		return a.files, nil
	}
	if a.tenants == nil {
		return nil, fmt.Errorf("%w: multitenant store", ErrNoStore)
	}
	return a.tenants.Tenant(tenant)
}

// ============================================================================
// File handlers
// ============================================================================

func (a *API) handleAdd(w http.ResponseWriter, r *http.Request) {
	store, err := a.store(r)
	if err != nil {
		writeError(w, err)
		return
	}

	body := r.Body
	if a.maxUpload > 0 {
		body = http.MaxBytesReader(w, r.Body, a.maxUpload)
	}

	tmp, err := spool(store.Layout().Rollback, body)
	if err != nil {
		writeError(w, err)
		return
	}
	defer os.Remove(tmp)

	fields := recordFromHeaders(r.Header)

	var id string
	if tenant, ok := mux.Vars(r)["tenant"]; ok {
		id, err = a.tenants.AddToTenant(tenant, tmp, fields, true)
	} else {
		id, err = store.Add(tmp, fields, true)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	store, err := a.store(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var ids []string
	if removedParam(r) {
		ids, err = store.ListRemoved()
	} else {
		ids, err = store.List()
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}

	writeJSON(w, http.StatusOK, map[string][]string{"files": ids})
}

func (a *API) handleGet(w http.ResponseWriter, r *http.Request) {
	store, err := a.store(r)
	if err != nil {
		writeError(w, err)
		return
	}

	f, err := store.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	file, err := f.Open()
	if err != nil {
		writeError(w, fmt.Errorf("%w: %w", filestore.ErrConsistency, err))
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if name := f.Data.String(OriginalFileField); name != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	}
	if info, err := file.Stat(); err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, file); err != nil {
		logger.Warn("Failed to send %s: %v", f.ID, err)
	}
}

func (a *API) handleMeta(w http.ResponseWriter, r *http.Request) {
	store, err := a.store(r)
	if err != nil {
		writeError(w, err)
		return
	}

	id := mux.Vars(r)["id"]

	var rec metadata.Record
	if removedParam(r) {
		rec, err = store.GetRemoved(id)
	} else {
		var f *filestore.File
		f, err = store.Get(id)
		if f != nil {
			rec = f.Data
		}
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (a *API) handleRemove(w http.ResponseWriter, r *http.Request) {
	store, err := a.store(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := store.Remove(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRestore(w http.ResponseWriter, r *http.Request) {
	store, err := a.store(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := store.Restore(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// Tenant handlers
// ============================================================================

type createTenantRequest struct {
	ID string `json:"id"`
}

func (a *API) handleListTenants(w http.ResponseWriter, r *http.Request) {
	if a.tenants == nil {
		writeError(w, fmt.Errorf("%w: multitenant store", ErrNoStore))
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"tenants": a.tenants.Tenants()})
}

func (a *API) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	if a.tenants == nil {
		writeError(w, fmt.Errorf("%w: multitenant store", ErrNoStore))
		return
	}

	var req createTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, fmt.Errorf("%w: %w", multitenant.ErrInvalidTenant, err))
		return
	}

	id, err := a.tenants.CreateTenant(req.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (a *API) handleRemoveTenant(w http.ResponseWriter, r *http.Request) {
	if a.tenants == nil {
		writeError(w, fmt.Errorf("%w: multitenant store", ErrNoStore))
		return
	}
	if err := a.tenants.RemoveTenant(mux.Vars(r)["tenant"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ============================================================================
// Helpers
// ============================================================================

// spool writes body to a new file in dir and returns its path.
func spool(dir string, body io.Reader) (string, error) {
	tmp, err := os.CreateTemp(dir, "upload-*")
	if err != nil {
		return "", fmt.Errorf("%w: %w", filestore.ErrStoreIO, err)
	}

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", fmt.Errorf("%w: limit is %d bytes", errUploadTooLarge, tooLarge.Limit)
		}
		return "", fmt.Errorf("%w: read upload: %w", errBadUpload, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %w", filestore.ErrStoreIO, err)
	}
	return tmp.Name(), nil
}

func recordFromHeaders(h http.Header) metadata.Record {
	rec := metadata.Record{}
	for name, values := range h {
		if len(values) == 0 {
			continue
		}
		if field, ok := strings.CutPrefix(name, MetaHeaderPrefix); ok && field != "" {
			rec[strings.ToLower(field)] = values[0]
		}
	}
	if name := h.Get(FilenameHeader); name != "" {
		rec[OriginalFileField] = filepath.Base(name)
	}
	return rec
}

func removedParam(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("removed"))
	return v
}
