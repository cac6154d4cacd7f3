package models

import (
	"strings"
	"time"
)

// MessageStatus is the delivery state of a message as shown to the user.
type MessageStatus string

const (
	StatusSending   MessageStatus = "sending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s MessageStatus) Valid() bool {
	switch s {
	case StatusSending, StatusSent, StatusDelivered, StatusRead, StatusFailed:
		return true
	}
	return false
}

// TempIDPrefix marks identifiers generated locally for unconfirmed messages.
const TempIDPrefix = "temp-"

// IsTemporaryID reports whether id was generated locally.
func IsTemporaryID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// Message is one entry of a conversation timeline, local or remote.
type Message struct {
	ID        string        `json:"id"`
	ChatID    string        `json:"chat_jid"`
	Content   string        `json:"content"`
	Sender    string        `json:"sender"`
	IsFromMe  bool          `json:"is_from_me"`
	Timestamp string        `json:"timestamp"`
	Status    MessageStatus `json:"status,omitempty"`
	Pending   bool          `json:"pending"`
	Failed    bool          `json:"failed"`
}

// Time parses the message timestamp in loc. Timestamps without a zone are
// interpreted in loc.
func (m Message) Time(loc *time.Location) (time.Time, bool) {
	return ParseTimestamp(m.Timestamp, loc)
}

// IncomingMessage is a message delivered by the backend. Empty fields and
// nil pointers mean "not present" and leave the local value untouched on merge.
type IncomingMessage struct {
	TempID    string
	ID        string
	ChatID    string
	Content   string
	Sender    string
	IsFromMe  *bool
	Timestamp string
	Status    MessageStatus
	Failed    *bool
}

// MergeInto overlays the present fields of in on top of m.
func (in IncomingMessage) MergeInto(m Message) Message {
	if in.ID != "" {
		m.ID = in.ID
	}
	if in.ChatID != "" {
		m.ChatID = in.ChatID
	}
	if in.Content != "" {
		m.Content = in.Content
	}
	if in.Sender != "" {
		m.Sender = in.Sender
	}
	if in.IsFromMe != nil {
		m.IsFromMe = *in.IsFromMe
	}
	if in.Timestamp != "" {
		m.Timestamp = in.Timestamp
	}
	if in.Status != "" {
		m.Status = in.Status
	}
	if in.Failed != nil {
		m.Failed = *in.Failed
	}
	return m
}

// ToMessage builds a fresh timeline entry from in.
func (in IncomingMessage) ToMessage() Message {
	return in.MergeInto(Message{})
}

// MessageGroup is the set of messages sharing one calendar day.
type MessageGroup struct {
	DateKey  string    `json:"date"`
	Label    string    `json:"formattedDate"`
	Messages []Message `json:"messages"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp accepts the ISO-8601 variants emitted by the chat backend.
func ParseTimestamp(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
