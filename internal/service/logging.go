package service

import (
	"context"

	"chatsync/internal/privacy"

	"github.com/sirupsen/logrus"
)

// ContextKey is a package-local type to prevent context key collisions
type ContextKey string

// VerboseContextKey marks contexts where unmasked identifiers may be logged
const VerboseContextKey ContextKey = "verbose"

// WithVerbose returns ctx carrying the verbose logging flag.
func WithVerbose(ctx context.Context, verbose bool) context.Context {
	return context.WithValue(ctx, VerboseContextKey, verbose)
}

// IsVerboseLogging checks if verbose logging is enabled from context
func IsVerboseLogging(ctx context.Context) bool {
	if verbose, ok := ctx.Value(VerboseContextKey).(bool); ok {
		return verbose
	}
	return false
}

// LogWithContext creates a logger entry tagged with the verbose flag
func LogWithContext(ctx context.Context, logger *logrus.Logger) *logrus.Entry {
	return logger.WithField("verbose", IsVerboseLogging(ctx))
}

// LogEventProcessing logs one reconciled event. Identifiers are masked and
// content is reduced to its length unless verbose logging is on.
func LogEventProcessing(ctx context.Context, logger *logrus.Logger, event, chatID, msgID, sender, content string) {
	if IsVerboseLogging(ctx) {
		logger.WithFields(logrus.Fields{
			LogFieldEvent:     event,
			LogFieldChatID:    chatID,
			LogFieldMessageID: msgID,
			LogFieldSender:    sender,
			LogFieldContent:   content,
		}).Debug("Processing conversation event")
		return
	}
	logger.WithFields(logrus.Fields{
		LogFieldEvent:     event,
		LogFieldChatID:    privacy.MaskChatID(chatID),
		LogFieldMessageID: privacy.MaskMessageID(msgID),
		LogFieldSender:    privacy.MaskName(sender),
		LogFieldContent:   privacy.DescribeContent(content),
	}).Debug("Processing conversation event")
}

// phoneField returns the phone as it may appear in logs.
func phoneField(ctx context.Context, phone string) string {
	if IsVerboseLogging(ctx) {
		return phone
	}
	return privacy.MaskPhoneNumber(phone)
}
