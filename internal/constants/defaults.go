package constants

// Default retry configuration values
const (
	DefaultRetryBackoffMs   = 500
	DefaultMaxBackoffMs     = 10000
	DefaultMaxAttempts      = 5
	DefaultRetentionDays    = 30
	DefaultServerPort       = 8082
	DefaultCacheHours       = 24
	DefaultBackendPageLimit = 20
	MaxBackendPageLimit     = 100
)

// Default timeout values
const (
	DefaultBackendTimeoutMs        = 10000
	DefaultBackendRetryCount       = 3
	DefaultDialTimeoutMs           = 10000
	DefaultSendTimeoutMs           = 5000
	DefaultDatabaseRetryAttempts   = 3
	DefaultGracefulShutdownSec     = 30
	DefaultServerReadTimeoutSec    = 15
	DefaultServerWriteTimeoutSec   = 15
	DefaultServerIdleTimeoutSec    = 60
	DefaultCleanupIntervalHours    = 24
	DefaultStalePendingSec         = 60
	DefaultStaleCheckIntervalSec   = 15
	DefaultBreakerMaxFailures      = 5
	DefaultBreakerTimeoutSec       = 30
	DefaultChatSyncDelayMs         = 100
	DefaultTracingShutdownSec      = 5
	DefaultDirectoryLookupTimeoutS = 5
)

// Transport sizing
const (
	DefaultReadLimit       = 64 * 1024
	DefaultEventBufferSize = 256
	ServerErrorChannelSize = 1
)

// Timeline defaults
const (
	DefaultLocalSender = "You"
	MaxContentLength   = 4096
	InvalidDateKey     = "invalid-date"
	InvalidDateLabel   = "Invalid Date"
	InvalidTimeLabel   = "--:--"
)

// Privacy settings
const (
	DefaultPhoneMaskLength = 4
	DefaultMessageIDLength = 8
)

// Encryption parameters for the chat directory cache
const (
	EncryptionSalt       = "chatsync-directory-v1"
	EncryptionLookupSalt = "chatsync-lookup-v1"
	EncryptionKeySize    = 32
	EncryptionNonceSize  = 12
	EncryptionIterations = 100000
)

// Input validation limits
const (
	MinPhoneNumberLength   = 7
	MaxPhoneNumberLength   = 20
	MaxRequestBodyBytes    = 16 * 1024
	MaxRetentionDays       = 3650
	MaxTimeoutSec          = 3600
	MaxServerPort          = 65535
	DefaultDatabasePath    = "chatsync.db"
	DefaultLogLevel        = "info"
	DefaultTracingService  = "chatsync"
	DefaultTracingSampling = 1.0
)
