package models

import "time"

// Chat is the directory entry for one conversation partner.
type Chat struct {
	Phone    string    `json:"phone"`
	JID      string    `json:"jid"`
	Name     string    `json:"name"`
	CachedAt time.Time `json:"cached_at"`
}

// DisplayName returns the best available label for the chat header.
func (c *Chat) DisplayName() string {
	if c == nil {
		return ""
	}
	if c.Name != "" {
		return c.Name
	}
	return c.Phone
}

// ChatIDFor returns the chat identifier used for locally created messages.
func ChatIDFor(chat *Chat, phone string) string {
	if chat != nil && chat.JID != "" {
		return chat.JID
	}
	return "unknown-jid-" + phone
}
