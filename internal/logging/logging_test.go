// ABOUTME: Tests for logger construction.
// ABOUTME: Checks level parsing, level filtering and file output.
package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	charmlog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]charmlog.Level{
		"":        charmlog.InfoLevel,
		"debug":   charmlog.DebugLevel,
		"WARN":    charmlog.WarnLevel,
		"warning": charmlog.WarnLevel,
		"error":   charmlog.ErrorLevel,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestHandlerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, charmlog.WarnLevel, "sync"))

	logger.Info("quiet")
	logger.Warn("sync failed", "error", "connection refused")

	out := buf.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, "sync failed")
	assert.Contains(t, out, "connection refused")
	assert.Contains(t, out, "sync")
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "gymtrack.log")
	logger, closer, err := New(Options{Level: "debug", File: path})
	require.NoError(t, err)

	logger.Debug("hydration complete", "sessions", 3)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hydration complete")
}
