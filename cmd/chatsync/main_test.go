package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chatsync/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureLogLevel(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		verbose bool
		want    logrus.Level
	}{
		{"configured level", "warn", false, logrus.WarnLevel},
		{"verbose wins", "error", true, logrus.DebugLevel},
		{"invalid falls back to info", "loud", false, logrus.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := logrus.New()
			logger.SetOutput(io.Discard)

			configureLogLevel(logger, tt.level, tt.verbose)
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	for _, key := range []string{config.EnvAPIURL, config.EnvWSURL, config.EnvDBPath, config.EnvLogLevel, config.EnvPort} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{
	"backend": {"api_base_url": "http://localhost:8000"},
	"transport": {"ws_base_url": "ws://localhost:8000"},
	"database": {"path": "` + filepath.Join(dir, "chatsync.db") + `"}
}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestRun_MissingConfig(t *testing.T) {
	opts := options{configPath: filepath.Join(t.TempDir(), "missing.json"), phone: "5511987654321", interactive: true}

	err := run(context.Background(), opts, strings.NewReader(""), io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestRun_InvalidPhone(t *testing.T) {
	opts := options{configPath: writeTestConfig(t), phone: "not-a-phone", interactive: true}

	var out bytes.Buffer
	err := run(context.Background(), opts, strings.NewReader(""), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid -phone")
	assert.Empty(t, out.String())
}
