package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marmos91/dittostore/pkg/filestore"
	"github.com/marmos91/dittostore/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cli runs one dittostore invocation against a config file.
type cli struct {
	t      *testing.T
	config string
}

func newCLI(t *testing.T, extra string) *cli {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))

	content := fmt.Sprintf(`
logging:
  level: ERROR
  output: stderr
store:
  root: %q
%s`, filepath.Join(dir, "store"), extra)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return &cli{t: t, config: path}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", c.config}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, "dittostore %s", strings.Join(args, " "))
	return out
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestStoreLifecycle(t *testing.T) {
	c := newCLI(t, "")

	out := c.mustRun("init")
	assert.Contains(t, out, "Created store at")

	out = c.mustRun("init")
	assert.Contains(t, out, "Opened existing store at")

	src := writeFile(t, "report.txt", "quarterly numbers")
	id := strings.TrimSpace(c.mustRun("add", src, "--meta", "owner=alice"))
	require.NotEmpty(t, id)
	assert.FileExists(t, src, "add copies unless --move is given")

	out = c.mustRun("get", id)
	assert.Contains(t, out, "id: "+id)
	assert.Contains(t, out, "owner: alice")
	assert.Contains(t, out, "original_file: report.txt")

	out = c.mustRun("get", id, "-o", "-")
	assert.Equal(t, "quarterly numbers", out)

	out = c.mustRun("list")
	assert.Equal(t, id+"\n", out)

	out = c.mustRun("list", "--long")
	assert.Contains(t, out, "report.txt")
	assert.Contains(t, out, "17 B")

	c.mustRun("remove", id)
	assert.Empty(t, c.mustRun("list"))

	out = c.mustRun("list", "--removed", "--tree")
	assert.Contains(t, out, filestore.DeletedDirName)
	assert.Contains(t, out, id)

	c.mustRun("restore", id)
	assert.Equal(t, id+"\n", c.mustRun("list"))

	out = c.mustRun("unlock")
	assert.Contains(t, out, "is not locked")
}

func TestAddMove(t *testing.T) {
	c := newCLI(t, "")

	src := writeFile(t, "moved.txt", "data")
	id := strings.TrimSpace(c.mustRun("add", "--move", src))
	require.NotEmpty(t, id)
	assert.NoFileExists(t, src)

	path := strings.TrimSpace(c.mustRun("get", id, "--path"))
	assert.FileExists(t, path)
}

func TestMissingID(t *testing.T) {
	c := newCLI(t, "")

	_, err := c.run("get", "no-such-id")
	require.Error(t, err)
	assert.ErrorIs(t, err, filestore.ErrNotFound)
	assert.Equal(t, exitNotFound, exitCode(err))
}

func TestInvalidMeta(t *testing.T) {
	c := newCLI(t, "")

	_, err := c.run("add", writeFile(t, "a.txt", "a"), "--meta", "novalue")
	assert.ErrorContains(t, err, "expected key=value")
}

func TestTenantCommands(t *testing.T) {
	c := newCLI(t, "  multitenant: true\n")

	assert.Contains(t, c.mustRun("tenant", "list"), "No tenants found.")
	assert.Equal(t, "acme\n", c.mustRun("tenant", "create", "acme"))
	assert.Equal(t, "acme\n", c.mustRun("tenant", "list"))

	_, err := c.run("add", writeFile(t, "a.txt", "a"))
	assert.ErrorIs(t, err, errNoTenant)

	id := strings.TrimSpace(c.mustRun("add", "--tenant", "acme", writeFile(t, "b.txt", "b")))
	assert.Equal(t, id+"\n", c.mustRun("list", "--tenant", "acme"))

	_, err = c.run("list", "--tenant", "other")
	assert.Equal(t, exitNotFound, exitCode(err))

	c.mustRun("tenant", "remove", "acme")
	assert.Contains(t, c.mustRun("tenant", "list"), "No tenants found.")
}

func TestTenantCommandsNeedMultitenant(t *testing.T) {
	c := newCLI(t, "")

	_, err := c.run("tenant", "list")
	assert.ErrorContains(t, err, "store.multitenant")

	_, err = c.run("list", "--tenant", "acme")
	assert.ErrorContains(t, err, "store.multitenant is disabled")
}

func TestRemoteCommands(t *testing.T) {
	remoteRoot := filepath.Join(t.TempDir(), "remote")
	c := newCLI(t, fmt.Sprintf("remote:\n  type: local\n  local:\n    root: %q\n", remoteRoot))

	locator := strings.TrimSpace(c.mustRun("remote", "put", writeFile(t, "up.txt", "uploaded")))
	require.NotEmpty(t, locator)

	assert.Equal(t, "uploaded", c.mustRun("remote", "get", locator))

	dest := filepath.Join(t.TempDir(), "down.txt")
	c.mustRun("remote", "get", locator, "-o", dest)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "uploaded", string(data))

	c.mustRun("remote", "rm", locator)
}

func TestRemoteNotConfigured(t *testing.T) {
	c := newCLI(t, "")

	_, err := c.run("remote", "put", writeFile(t, "a.txt", "a"))
	assert.ErrorContains(t, err, "no remote store configured")
}

func TestConfigCommands(t *testing.T) {
	c := newCLI(t, "")

	dest := filepath.Join(t.TempDir(), "generated.yaml")
	out := c.mustRun("config", "init", "--path", dest)
	assert.Contains(t, out, dest)
	assert.FileExists(t, dest)

	_, err := c.run("config", "init", "--path", dest)
	assert.ErrorContains(t, err, "already exists")

	c.mustRun("config", "init", "--path", dest, "--force")

	out = c.mustRun("config", "show")
	assert.Contains(t, out, "multitenant: false")
	assert.Contains(t, out, "type: memory")
}

func TestVersion(t *testing.T) {
	c := newCLI(t, "")
	assert.Contains(t, c.mustRun("version"), "dittostore "+Version)
}

func TestParseMeta(t *testing.T) {
	rec, err := parseMeta([]string{"owner=alice", "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, metadata.Record{"owner": "alice", "note": "a=b"}, rec)

	rec, err = parseMeta(nil)
	require.NoError(t, err)
	assert.NotNil(t, rec)

	_, err = parseMeta([]string{"=value"})
	assert.Error(t, err)

	_, err = parseMeta([]string{"path=/etc/passwd"})
	assert.ErrorContains(t, err, "managed by the store")
}

func TestRenderTree(t *testing.T) {
	root := "/srv/store"
	entries := []entry{
		{id: "a", data: metadata.Record{metadata.PathField: "/srv/store/filestore/2026/10/14/a"}},
		{id: "b", data: metadata.Record{metadata.PathField: "/srv/store/filestore/2026/10/14/b"}},
		{id: "c", data: metadata.Record{metadata.PathField: "/elsewhere/c"}},
	}

	out := renderTree(root, entries)

	assert.True(t, strings.HasPrefix(out, root+"\n"))
	assert.Equal(t, 1, strings.Count(out, "filestore"))
	assert.Equal(t, 1, strings.Count(out, "14"))
	for _, id := range []string{"a", "b", "c"} {
		assert.Contains(t, out, "── "+id+"\n")
	}
}
