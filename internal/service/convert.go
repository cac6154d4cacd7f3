package service

import (
	"time"

	"chatsync/internal/models"
	backendtypes "chatsync/pkg/backend/types"
	transporttypes "chatsync/pkg/transport/types"
)

// MessageFromBackend converts a fetched history entry into a timeline message.
func MessageFromBackend(m backendtypes.Message) models.Message {
	return models.Message{
		ID:        m.ID.String(),
		ChatID:    m.ChatJID,
		Content:   m.Content,
		Sender:    m.Sender,
		IsFromMe:  m.IsFromMe,
		Timestamp: m.Timestamp,
		Status:    models.MessageStatus(m.Status),
	}
}

// ChatFromBackend builds the directory entry for phone. It returns nil when
// the backend did not know the chat.
func ChatFromBackend(phone string, chat *backendtypes.Chat, cachedAt time.Time) *models.Chat {
	if chat == nil {
		return nil
	}
	if chat.Phone != "" {
		phone = chat.Phone
	}
	return &models.Chat{
		Phone:    phone,
		JID:      chat.JID,
		Name:     chat.Name,
		CachedAt: cachedAt,
	}
}

// ChatFromSummary builds the directory entry for one chat listing row.
func ChatFromSummary(summary backendtypes.ChatSummary, cachedAt time.Time) *models.Chat {
	return &models.Chat{
		Phone:    summary.Phone(),
		JID:      summary.JID,
		Name:     summary.Name,
		CachedAt: cachedAt,
	}
}

// IncomingFromEvent maps a receive-message frame onto the fields the
// timeline merges. Absent fields stay empty so they do not overwrite.
func IncomingFromEvent(e transporttypes.MessageEvent) models.IncomingMessage {
	return models.IncomingMessage{
		TempID:    e.TempID,
		ID:        e.ID.String(),
		ChatID:    e.ChatJID,
		Content:   e.Content,
		Sender:    e.Sender,
		IsFromMe:  e.IsFromMe,
		Timestamp: e.Timestamp,
		Status:    models.MessageStatus(e.Status),
		Failed:    e.Failed,
	}
}
