package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeKVsRedactsAndHashes(t *testing.T) {
	out := sanitizeKVs([]interface{}{
		"password", "hunter2",
		"user_id", "5b1d",
		"run_id", "abc",
		"dangling",
	})
	require.Len(t, out, 7)
	assert.Equal(t, "[REDACTED]", out[1])
	assert.Contains(t, out[3], "hash:")
	assert.Equal(t, "abc", out[5])
	assert.Equal(t, "dangling", out[6])
}

func TestSanitizeValueRedactsJWTLookalikes(t *testing.T) {
	jwtish := "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxMjM0NTY3ODkwIn0.sig"
	assert.Equal(t, "[REDACTED]", sanitizeValue("note", jwtish))
	assert.Equal(t, "plain", sanitizeValue("note", "plain"))
}

func TestNewWithFileSinkWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, err := New("production", WithFile(FileSink{Path: path}))
	require.NoError(t, err)

	log.Info("pipeline started", "run_id", "r-1")
	log.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "pipeline started")
	assert.Contains(t, string(raw), "r-1")
}
