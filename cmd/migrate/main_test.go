package main

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRun_UpThenDown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatsync.db")

	require.NoError(t, run(path, "up", quietLogger()))
	require.NoError(t, run(path, "version", quietLogger()))
	require.NoError(t, run(path, "down", quietLogger()))
}

func TestRun_MissingDatabase(t *testing.T) {
	err := run(filepath.Join(t.TempDir(), "missing.db"), "version", quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database file not found")
}

func TestRun_UnknownAction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatsync.db")
	require.NoError(t, run(path, "up", quietLogger()))

	err := run(path, "sideways", quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown action "sideways"`)
}
