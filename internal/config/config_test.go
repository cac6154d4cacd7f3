package config

import (
	"os"
	"path/filepath"
	"testing"

	"chatsync/internal/constants"
	"chatsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `{
	"backend": {"api_base_url": "http://localhost:8000"},
	"transport": {"ws_base_url": "ws://localhost:8000"}
}`

// clearEnv unsets the override variables for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvAPIURL, EnvWSURL, EnvDBPath, EnvLogLevel, EnvPort} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, t.TempDir(), minimalConfig)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.Backend.APIBaseURL)
	assert.Equal(t, "ws://localhost:8000", cfg.Transport.WSBaseURL)
	assert.Equal(t, constants.DefaultBackendTimeoutMs, cfg.Backend.TimeoutMs)
	assert.Equal(t, constants.DefaultBackendPageLimit, cfg.Backend.PageLimit)
	assert.Equal(t, constants.DefaultBreakerMaxFailures, cfg.Backend.BreakerMaxFailures)
	assert.Equal(t, constants.DefaultSendTimeoutMs, cfg.Transport.SendTimeoutMs)
	assert.Equal(t, int64(constants.DefaultReadLimit), cfg.Transport.ReadLimit)
	assert.Equal(t, constants.DefaultDatabasePath, cfg.Database.Path)
	assert.Equal(t, constants.DefaultCacheHours, cfg.Database.CacheHours)
	assert.Equal(t, constants.DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, constants.DefaultLocalSender, cfg.Timeline.LocalSender)
	assert.Equal(t, constants.DefaultStalePendingSec, cfg.Timeline.StalePendingSec)
	assert.Equal(t, "chatsync", cfg.Tracing.ServiceName)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRate)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30, cfg.RetentionDays)
}

func TestLoadConfig_FullFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, t.TempDir(), `{
		"backend": {"api_base_url": "https://api.example.com", "timeout_ms": 2500, "page_limit": 500},
		"transport": {"ws_base_url": "wss://api.example.com", "send_timeout_ms": 1000},
		"database": {"path": "/var/lib/chatsync/cache.db", "cache_hours": 6},
		"server": {"port": 9000, "cleanup_interval_hours": 12},
		"retry": {"initialBackoffMs": 250, "maxBackoffMs": 4000, "maxAttempts": 4},
		"timeline": {"local_sender": "Me", "stale_pending_sec": 30, "location": "America/Sao_Paulo"},
		"log_level": "debug",
		"retentionDays": 7
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 2500, cfg.Backend.TimeoutMs)
	assert.Equal(t, constants.MaxBackendPageLimit, cfg.Backend.PageLimit)
	assert.Equal(t, 1000, cfg.Transport.SendTimeoutMs)
	assert.Equal(t, "/var/lib/chatsync/cache.db", cfg.Database.Path)
	assert.Equal(t, 6, cfg.Database.CacheHours)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 12, cfg.Server.CleanupIntervalHours)
	assert.Equal(t, models.RetryConfig{InitialBackoffMs: 250, MaxBackoffMs: 4000, MaxAttempts: 4}, cfg.Retry)
	assert.Equal(t, "Me", cfg.Timeline.LocalSender)
	assert.Equal(t, "America/Sao_Paulo", cfg.Timeline.Location)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 7, cfg.RetentionDays)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, t.TempDir(), minimalConfig)

	t.Setenv(EnvAPIURL, "https://chats.example.com")
	t.Setenv(EnvWSURL, "wss://chats.example.com")
	t.Setenv(EnvDBPath, "override.db")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvPort, "9191")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://chats.example.com", cfg.Backend.APIBaseURL)
	assert.Equal(t, "wss://chats.example.com", cfg.Transport.WSBaseURL)
	assert.Equal(t, "override.db", cfg.Database.Path)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 9191, cfg.Server.Port)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, `{}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, DotEnvFile), []byte(
		"CHATSYNC_API_URL=http://dotenv.local:8000\nCHATSYNC_WS_URL=ws://dotenv.local:8000\n"), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://dotenv.local:8000", cfg.Backend.APIBaseURL)
	assert.Equal(t, "ws://dotenv.local:8000", cfg.Transport.WSBaseURL)
}

func TestLoadConfig_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, minimalConfig)
	require.NoError(t, os.WriteFile(filepath.Join(dir, DotEnvFile), []byte("CHATSYNC_LOG_LEVEL=debug\n"), 0600))
	t.Setenv(EnvLogLevel, "error")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		env      map[string]string
		contains string
	}{
		{
			name:     "missing api url",
			content:  `{"transport": {"ws_base_url": "ws://localhost:8000"}}`,
			contains: ErrMissingAPIURL.Message,
		},
		{
			name:     "missing ws url",
			content:  `{"backend": {"api_base_url": "http://localhost:8000"}}`,
			contains: ErrMissingWSURL.Message,
		},
		{
			name:     "ws scheme on api url",
			content:  `{"backend": {"api_base_url": "ws://localhost:8000"}, "transport": {"ws_base_url": "ws://localhost:8000"}}`,
			contains: "invalid backend API URL",
		},
		{
			name:     "http scheme on ws url",
			content:  `{"backend": {"api_base_url": "http://localhost:8000"}, "transport": {"ws_base_url": "http://localhost:8000"}}`,
			contains: "invalid transport WebSocket URL",
		},
		{
			name:     "database path traversal",
			content:  `{"backend": {"api_base_url": "http://localhost:8000"}, "transport": {"ws_base_url": "ws://localhost:8000"}, "database": {"path": "../../etc/cache.db"}}`,
			contains: "invalid database path",
		},
		{
			name:     "port out of range",
			content:  `{"backend": {"api_base_url": "http://localhost:8000"}, "transport": {"ws_base_url": "ws://localhost:8000"}, "server": {"port": 70000}}`,
			contains: "server port too large",
		},
		{
			name:     "invalid port env",
			content:  minimalConfig,
			env:      map[string]string{EnvPort: "eighty"},
			contains: "invalid PORT",
		},
		{
			name:     "invalid log level",
			content:  minimalConfig,
			env:      map[string]string{EnvLogLevel: "loud"},
			contains: "invalid log level",
		},
		{
			name:     "invalid location",
			content:  `{"backend": {"api_base_url": "http://localhost:8000"}, "transport": {"ws_base_url": "ws://localhost:8000"}, "timeline": {"location": "Mars/Olympus"}}`,
			contains: "invalid timeline location",
		},
		{
			name:     "retention too long",
			content:  `{"backend": {"api_base_url": "http://localhost:8000"}, "transport": {"ws_base_url": "ws://localhost:8000"}, "retentionDays": 5000}`,
			contains: "retention days too large",
		},
		{
			name:     "sample rate above one",
			content:  `{"backend": {"api_base_url": "http://localhost:8000"}, "transport": {"ws_base_url": "ws://localhost:8000"}, "tracing": {"sample_rate": 1.5}}`,
			contains: "sample rate",
		},
		{
			name:     "malformed json",
			content:  `{"backend": `,
			contains: "unexpected end of JSON input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := writeConfig(t, t.TempDir(), tt.content)

			_, err := LoadConfig(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestLoadConfig_InvalidPath(t *testing.T) {
	_, err := LoadConfig("../../../etc/passwd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config path")

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadDotEnv_SkipsMissingFiles(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}
