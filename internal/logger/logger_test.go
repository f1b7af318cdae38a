package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, LevelError, ParseLevel("Error"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetLevel("WARN")
	SetOutput(&buf, "json")
	defer func() {
		SetLevel("INFO")
		SetOutput(os.Stdout, "text")
	}()

	Info("hidden %d", 1)
	Warn("shown %d", 2)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "shown 2", entry["message"])
}

func TestConfigure_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.log")
	require.NoError(t, Configure("debug", "text", path))
	defer func() { _ = Configure("INFO", "text", "stdout") }()

	Debug("written to %s", "file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
	assert.Equal(t, LevelDebug, GetLevel())
}
