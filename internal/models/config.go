package models

// Config holds the application configuration
type Config struct {
	Backend   BackendConfig   `json:"backend"`
	Transport TransportConfig `json:"transport"`
	Database  DatabaseConfig  `json:"database"`
	Server    ServerConfig    `json:"server"`
	Retry     RetryConfig     `json:"retry"`
	Tracing   TracingConfig   `json:"tracing"`
	Timeline  TimelineConfig  `json:"timeline"`
	LogLevel  string          `json:"log_level"`
	// RetentionDays bounds how long chat directory entries are kept
	RetentionDays int `json:"retentionDays"`
}

// BackendConfig describes the HTTP API that serves chat history
type BackendConfig struct {
	APIBaseURL string `json:"api_base_url"`
	TimeoutMs  int    `json:"timeout_ms"`
	RetryCount int    `json:"retry_count"`
	PageLimit  int    `json:"page_limit"`
	// BreakerMaxFailures opens the circuit after this many consecutive failures
	BreakerMaxFailures int `json:"breaker_max_failures"`
	BreakerTimeoutSec  int `json:"breaker_timeout_sec"`
}

// TransportConfig describes the WebSocket channel to the chat backend
type TransportConfig struct {
	WSBaseURL     string `json:"ws_base_url"`
	DialTimeoutMs int    `json:"dial_timeout_ms"`
	SendTimeoutMs int    `json:"send_timeout_ms"`
	ReadLimit     int64  `json:"read_limit"`
	EventBuffer   int    `json:"event_buffer"`
	// PingIntervalSec keeps idle connections alive; 0 disables pings
	PingIntervalSec int `json:"ping_interval_sec"`
}

// DatabaseConfig holds the chat directory cache settings
type DatabaseConfig struct {
	Path       string `json:"path"`
	CacheHours int    `json:"cache_hours"`
}

// ServerConfig holds the view server settings
type ServerConfig struct {
	Port                 int `json:"port"`
	ReadTimeoutSec       int `json:"read_timeout_sec"`
	WriteTimeoutSec      int `json:"write_timeout_sec"`
	IdleTimeoutSec       int `json:"idle_timeout_sec"`
	CleanupIntervalHours int `json:"cleanup_interval_hours"`
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	UseStdout      bool    `json:"use_stdout"`
}

// TimelineConfig controls how a conversation timeline is kept
type TimelineConfig struct {
	// LocalSender is the sender name stamped on locally authored messages
	LocalSender string `json:"local_sender"`
	// StalePendingSec is the age after which a pending message is reported as stale
	StalePendingSec int `json:"stale_pending_sec"`
	// Location is the IANA zone used to split messages into days
	Location string `json:"location"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
