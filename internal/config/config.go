package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"chatsync/internal/constants"
	"chatsync/internal/models"
	"chatsync/internal/security"
	"chatsync/internal/validation"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var (
	ErrMissingAPIURL = models.ConfigError{Message: "missing chat backend API URL"}
	ErrMissingWSURL  = models.ConfigError{Message: "missing chat backend WebSocket URL"}
)

// Environment variables that override the config file.
const (
	EnvAPIURL   = "CHATSYNC_API_URL"
	EnvWSURL    = "CHATSYNC_WS_URL"
	EnvDBPath   = "CHATSYNC_DB_PATH"
	EnvLogLevel = "CHATSYNC_LOG_LEVEL"
	EnvPort     = "PORT"
)

// DotEnvFile is read from the config file's directory before overrides apply.
const DotEnvFile = ".env"

func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	if err := LoadDotEnv(filepath.Join(filepath.Dir(path), DotEnvFile)); err != nil {
		return nil, err
	}
	if err := applyEnvironmentOverrides(&config); err != nil {
		return nil, err
	}

	applyDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadDotEnv exports the variables of each existing file without replacing
// variables already set in the environment. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	for _, file := range files {
		if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

func applyEnvironmentOverrides(c *models.Config) error {
	if url := os.Getenv(EnvAPIURL); url != "" {
		c.Backend.APIBaseURL = url
	}
	if url := os.Getenv(EnvWSURL); url != "" {
		c.Transport.WSBaseURL = url
	}
	if path := os.Getenv(EnvDBPath); path != "" {
		c.Database.Path = path
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.LogLevel = level
	}
	if port := os.Getenv(EnvPort); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return models.ConfigError{Message: fmt.Sprintf("invalid %s: %s", EnvPort, port)}
		}
		c.Server.Port = p
	}
	return nil
}

func applyDefaults(c *models.Config) {
	if c.Backend.TimeoutMs <= 0 {
		c.Backend.TimeoutMs = constants.DefaultBackendTimeoutMs
	}
	if c.Backend.RetryCount <= 0 {
		c.Backend.RetryCount = constants.DefaultBackendRetryCount
	}
	if c.Backend.PageLimit <= 0 {
		c.Backend.PageLimit = constants.DefaultBackendPageLimit
	}
	if c.Backend.PageLimit > constants.MaxBackendPageLimit {
		c.Backend.PageLimit = constants.MaxBackendPageLimit
	}
	if c.Backend.BreakerMaxFailures <= 0 {
		c.Backend.BreakerMaxFailures = constants.DefaultBreakerMaxFailures
	}
	if c.Backend.BreakerTimeoutSec <= 0 {
		c.Backend.BreakerTimeoutSec = constants.DefaultBreakerTimeoutSec
	}

	if c.Transport.DialTimeoutMs <= 0 {
		c.Transport.DialTimeoutMs = constants.DefaultDialTimeoutMs
	}
	if c.Transport.SendTimeoutMs <= 0 {
		c.Transport.SendTimeoutMs = constants.DefaultSendTimeoutMs
	}
	if c.Transport.ReadLimit <= 0 {
		c.Transport.ReadLimit = constants.DefaultReadLimit
	}
	if c.Transport.EventBuffer <= 0 {
		c.Transport.EventBuffer = constants.DefaultEventBufferSize
	}

	if c.Database.Path == "" {
		c.Database.Path = constants.DefaultDatabasePath
	}
	if c.Database.CacheHours <= 0 {
		c.Database.CacheHours = constants.DefaultCacheHours
	}

	if c.Server.Port == 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}
	if c.Server.CleanupIntervalHours <= 0 {
		c.Server.CleanupIntervalHours = constants.DefaultCleanupIntervalHours
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = constants.DefaultTracingService
	}
	if c.Tracing.SampleRate <= 0 {
		c.Tracing.SampleRate = constants.DefaultTracingSampling
	}

	if c.Timeline.LocalSender == "" {
		c.Timeline.LocalSender = constants.DefaultLocalSender
	}
	if c.Timeline.StalePendingSec <= 0 {
		c.Timeline.StalePendingSec = constants.DefaultStalePendingSec
	}

	if c.LogLevel == "" {
		c.LogLevel = constants.DefaultLogLevel
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = constants.DefaultRetentionDays
	}
}

func validate(c *models.Config) error {
	if c.Backend.APIBaseURL == "" {
		return ErrMissingAPIURL
	}
	if c.Transport.WSBaseURL == "" {
		return ErrMissingWSURL
	}
	if err := security.ValidateURL(c.Backend.APIBaseURL, "http", "https"); err != nil {
		return models.ConfigError{Message: fmt.Sprintf("invalid backend API URL: %v", err)}
	}
	if err := security.ValidateURL(c.Transport.WSBaseURL, "ws", "wss"); err != nil {
		return models.ConfigError{Message: fmt.Sprintf("invalid transport WebSocket URL: %v", err)}
	}
	if err := security.ValidateFilePath(c.Database.Path); err != nil {
		return models.ConfigError{Message: fmt.Sprintf("invalid database path: %v", err)}
	}

	if err := validation.ValidateNumericRange(c.Server.Port, "server port", 1, constants.MaxServerPort); err != nil {
		return models.ConfigError{Message: err.Error()}
	}
	for name, sec := range map[string]int{
		"server read timeout":  c.Server.ReadTimeoutSec,
		"server write timeout": c.Server.WriteTimeoutSec,
		"server idle timeout":  c.Server.IdleTimeoutSec,
	} {
		if err := validation.ValidateTimeout(sec, name); err != nil {
			return models.ConfigError{Message: err.Error()}
		}
	}
	if err := validation.ValidateRetentionDays(c.RetentionDays); err != nil {
		return models.ConfigError{Message: err.Error()}
	}
	if c.Tracing.SampleRate > 1 {
		return models.ConfigError{Message: "tracing sample rate must be between 0 and 1"}
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return models.ConfigError{Message: fmt.Sprintf("invalid log level: %s", c.LogLevel)}
	}
	if c.Timeline.Location != "" {
		if _, err := time.LoadLocation(c.Timeline.Location); err != nil {
			return models.ConfigError{Message: fmt.Sprintf("invalid timeline location: %s", c.Timeline.Location)}
		}
	}
	return nil
}
