package constants

// Default values used by client packages
const (
	DefaultHTTPTimeoutSec  = 30
	DefaultDialTimeoutSec  = 10
	DefaultWriteTimeoutSec = 5
	DefaultReadLimitBytes  = 64 * 1024
	DefaultEventBuffer     = 256
	MaxErrorBodyBytes      = 4096
)

// Backend API paths
const (
	ChatsPath        = "/chats/"
	ChatByPhonePath  = "/chats/phone/%s/"
	ConversationPath = "/ws/chat/%s"
)

// Paging limits enforced on chat listings
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
	MinPageLimit     = 1
)
