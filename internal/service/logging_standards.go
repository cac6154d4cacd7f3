package service

// Standard field names for structured logging. Use these instead of ad hoc
// keys so log queries work the same across components.
const (
	// Identifiers
	LogFieldPhone     = "phone"
	LogFieldChatID    = "chat_id"
	LogFieldMessageID = "message_id"
	LogFieldTempID    = "temp_id"
	LogFieldSender    = "sender"
	LogFieldContent   = "content"

	// Component and operation
	LogFieldComponent = "component"
	LogFieldOperation = "operation"
	LogFieldEvent     = "event"
	LogFieldStatus    = "status"

	// Performance and paging
	LogFieldDuration  = "duration_ms"
	LogFieldCount     = "count"
	LogFieldPage      = "page"
	LogFieldThreshold = "threshold"

	// External services
	LogFieldEndpoint   = "endpoint"
	LogFieldStatusCode = "status_code"

	// HTTP requests
	LogFieldRequestID = "request_id"
	LogFieldTraceID   = "trace_id"
	LogFieldMethod    = "method"
	LogFieldURL       = "url"
	LogFieldRemoteIP  = "remote_ip"
	LogFieldUserAgent = "user_agent"
	LogFieldSize      = "size_bytes"

	// Errors
	LogFieldErrorCode = "error_code"
	LogFieldAttempt   = "attempt"
)

// Log levels
//
// DEBUG: per-event reconciliation details, dropped duplicates, stale statuses.
// INFO:  session opened/closed, transport connected, sync and cleanup runs.
// WARN:  unknown events, lost connections, send rejections, stale cache used.
// ERROR: failed operations the user will notice (history fetch, cache writes).
//
// Message patterns: "Starting [operation]", "Completed [operation]",
// "Failed to [operation]", "Skipping [operation]: [reason]".
