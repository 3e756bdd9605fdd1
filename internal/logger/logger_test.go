package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestSetLevelReachesChildren(t *testing.T) {
	log, err := New(Config{Level: "info", Format: "json", Stderr: true})
	require.NoError(t, err)

	child := log.WithComponent("api").WithRequestID("req-1").WithRecordID("rec-1")
	assert.False(t, child.Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, log.SetLevel("debug"))
	assert.True(t, child.Core().Enabled(zapcore.DebugLevel))
	assert.Equal(t, zapcore.DebugLevel, child.Level())

	assert.Error(t, log.SetLevel("loud"))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "verbose"})
	assert.Error(t, err)
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "privacy.log")
	log, err := New(Config{
		Level:  "info",
		Format: "console",
		Stderr: true,
		File:   &FileConfig{Enabled: true, Path: path},
	})
	require.NoError(t, err)
	log.Info("written")
	log.Sync()
	assert.FileExists(t, path)
}
