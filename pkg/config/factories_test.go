package config

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/dittostore/pkg/metadata"
	"github.com/marmos91/dittostore/pkg/metadata/badger"
	"github.com/marmos91/dittostore/pkg/metadata/bolt"
	"github.com/marmos91/dittostore/pkg/metadata/memory"
	"github.com/marmos91/dittostore/pkg/metadata/sqlite"
	"github.com/marmos91/dittostore/pkg/observer"
	"github.com/marmos91/dittostore/pkg/remote"
	"golang.org/x/net/webdav"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	isolateEnv(t)
	cfg := GetDefaultConfig()
	cfg.Store.Root = filepath.Join(t.TempDir(), "store")
	return cfg
}

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write source file: %v", err)
	}
	return path
}

func TestCreateMetadataFactory_AllTypes(t *testing.T) {
	tests := []struct {
		storeType string
		file      string
	}{
		{"memory", memory.FileName},
		{"badger", badger.DirName},
		{"bolt", bolt.FileName},
		{"sqlite", sqlite.FileName},
	}

	for _, tt := range tests {
		t.Run(tt.storeType, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Metadata.Type = tt.storeType

			factory, err := CreateMetadataFactory(&cfg.Metadata, observer.Nop())
			if err != nil {
				t.Fatalf("CreateMetadataFactory failed: %v", err)
			}

			root := t.TempDir()
			store, err := factory(root)
			if err != nil {
				t.Fatalf("Factory failed: %v", err)
			}

			if err := store.AddOrUpdate("id-1", metadata.Record{"path": "/tmp/x"}); err != nil {
				t.Fatalf("AddOrUpdate failed: %v", err)
			}
			if err := store.Shutdown(); err != nil {
				t.Fatalf("Shutdown failed: %v", err)
			}

			if _, err := os.Stat(filepath.Join(root, tt.file)); err != nil {
				t.Errorf("Expected %s in store root: %v", tt.file, err)
			}
		})
	}
}

func TestCreateMetadataFactory_UnknownType(t *testing.T) {
	cfg := &MetadataConfig{Type: "postgres"}

	_, err := CreateMetadataFactory(cfg, observer.Nop())
	if err == nil {
		t.Fatal("Expected error for unknown metadata type")
	}
	if !strings.Contains(err.Error(), "unknown metadata store type") {
		t.Errorf("Expected unknown type error, got: %v", err)
	}
}

func TestCreateMetadataFactory_InvalidOptions(t *testing.T) {
	cfg := &MetadataConfig{
		Type: "bolt",
		Bolt: map[string]any{"timeout": "soon"},
	}

	if _, err := CreateMetadataFactory(cfg, observer.Nop()); err == nil {
		t.Fatal("Expected error for an unparsable bolt timeout")
	}
}

func TestDecodeOptions(t *testing.T) {
	var opts bolt.Config
	err := decodeOptions(map[string]any{
		"timeout": "250ms",
		"no_sync": "true",
	}, &opts)
	if err != nil {
		t.Fatalf("decodeOptions failed: %v", err)
	}

	if opts.Timeout != 250*time.Millisecond {
		t.Errorf("Expected timeout 250ms, got %v", opts.Timeout)
	}
	if !opts.NoSync {
		t.Error("Expected no_sync true from a weakly typed string")
	}
}

func TestOpenStore(t *testing.T) {
	cfg := testConfig(t)
	notifier := NewNotifier(&cfg.Store)

	var actions []observer.ActionType
	if _, err := notifier.Register(observer.ObserverFunc(func(a observer.Action) {
		actions = append(actions, a.Type)
	})); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	store, err := OpenStore(cfg, notifier)
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	defer func() { _ = store.Shutdown() }()

	id, err := store.Add(writeSource(t, "a.txt", "hello"), metadata.Record{"owner": "test"}, false)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	f, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if f.Data["owner"] != "test" {
		t.Errorf("Expected owner 'test', got %v", f.Data["owner"])
	}
	if len(actions) == 0 {
		t.Error("Expected actions from an observable store")
	}
}

func TestOpenStore_NotObservable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Observable = false

	notifier := NewNotifier(&cfg.Store)
	if notifier.Observable() {
		t.Fatal("Expected the null notifier")
	}

	store, err := OpenStore(cfg, notifier)
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	if err := store.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

func TestOpenMultiTenant(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Multitenant = true
	cfg.Metadata.Type = "bolt"

	mt, err := OpenMultiTenant(cfg, observer.Nop())
	if err != nil {
		t.Fatalf("OpenMultiTenant failed: %v", err)
	}

	if _, err := mt.CreateTenant("alpha"); err != nil {
		t.Fatalf("CreateTenant failed: %v", err)
	}
	if err := mt.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(cfg.Store.Root, "alpha", bolt.FileName)); err != nil {
		t.Errorf("Expected tenant store to use the bolt backend: %v", err)
	}

	// Reopening recovers the tenant from its directory.
	mt, err = OpenMultiTenant(cfg, observer.Nop())
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer func() { _ = mt.Shutdown() }()

	if !mt.HasTenant("alpha") {
		t.Error("Expected tenant alpha after reopen")
	}
}

func TestCreateRemoteStore_Local(t *testing.T) {
	cfg := testConfig(t)
	cfg.Remote.Type = "local"
	cfg.Remote.Local["root"] = filepath.Join(t.TempDir(), "remote")

	store, err := CreateRemoteStore(context.Background(), &cfg.Remote, observer.Nop())
	if err != nil {
		t.Fatalf("CreateRemoteStore failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	locator, err := store.Add(context.Background(), writeSource(t, "b.txt", "remote data"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	data, err := store.Get(context.Background(), locator)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(data) != "remote data" {
		t.Errorf("Expected 'remote data', got %q", data)
	}
}

func TestCreateRemoteStore_WebDAV(t *testing.T) {
	server := httptest.NewServer(&webdav.Handler{
		FileSystem: webdav.NewMemFS(),
		LockSystem: webdav.NewMemLS(),
	})
	defer server.Close()

	cfg := testConfig(t)
	cfg.Remote.Type = "webdav"
	cfg.Remote.WebDAV["url"] = server.URL
	cfg.Remote.WebDAV["timeout"] = "5s"

	store, err := CreateRemoteStore(context.Background(), &cfg.Remote, observer.Nop())
	if err != nil {
		t.Fatalf("CreateRemoteStore failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	locator, err := store.Add(context.Background(), writeSource(t, "c.txt", "dav data"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if locator != "/dittostore/c.txt" {
		t.Errorf("Expected locator '/dittostore/c.txt', got %q", locator)
	}
}

func TestCreateRemoteStore_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RemoteConfig
		wantErr string
	}{
		{"none", RemoteConfig{Type: "none"}, "no remote store configured"},
		{"unknown", RemoteConfig{Type: "ftp"}, "unknown remote store type"},
		{"webdav without url", RemoteConfig{Type: "webdav"}, "url is required"},
		{"s3 without bucket", RemoteConfig{Type: "s3", S3: map[string]any{"region": "us-east-1"}}, "bucket is required"},
		{"s3 without region", RemoteConfig{Type: "s3", S3: map[string]any{"bucket": "files"}}, "region is required"},
		{"local without root", RemoteConfig{Type: "local"}, "root is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CreateRemoteStore(context.Background(), &tt.cfg, observer.Nop())
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}

	_, err := CreateRemoteStore(context.Background(), &RemoteConfig{Type: "none"}, observer.Nop())
	if !errors.Is(err, remote.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for type none, got: %v", err)
	}
}
