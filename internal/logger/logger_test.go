package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesRedactedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "chatbridge.log")

	l, err := New(Config{
		Level:     "debug",
		File:      path,
		Console:   false,
		Redaction: true,
	})
	require.NoError(t, err)

	zl := l.GetZerolog()
	zl.Info().Str("auth", "Bearer tok-secret").Msg("session refreshed")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "session refreshed")
	assert.Contains(t, string(data), "[REDACTED]")
	assert.NotContains(t, string(data), "tok-secret")
}

func TestNewInvalidLevelFallsBack(t *testing.T) {
	l, err := New(Config{Level: "loud", Console: true})
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, "info", l.GetZerolog().GetLevel().String())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
	assert.True(t, cfg.Redaction)
}
