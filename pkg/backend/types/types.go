package types

import (
	"strings"

	transporttypes "chatsync/pkg/transport/types"
)

// Chat is the conversation partner returned with a chat history.
type Chat struct {
	JID   string `json:"jid"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// Message is a stored message as served by the history endpoint.
type Message struct {
	ID        transporttypes.FlexibleID `json:"id"`
	ChatJID   string                    `json:"chat_jid"`
	Content   string                    `json:"content"`
	Sender    string                    `json:"sender"`
	IsFromMe  bool                      `json:"is_from_me"`
	Timestamp string                    `json:"timestamp"`
	Status    string                    `json:"status,omitempty"`
}

// ChatHistory is the response of GET /chats/phone/{phone}/.
type ChatHistory struct {
	Chat     *Chat     `json:"chat"`
	Messages []Message `json:"messages"`
}

// ChatSummary is one row of the chat listing.
type ChatSummary struct {
	JID             string `json:"jid"`
	Name            string `json:"name"`
	LastMessage     string `json:"last_message"`
	LastSender      string `json:"last_sender"`
	LastIsFromMe    bool   `json:"last_is_from_me"`
	LastMessageTime string `json:"last_message_time"`
}

// Phone is the user part of the chat JID.
func (c ChatSummary) Phone() string {
	phone, _, _ := strings.Cut(c.JID, "@")
	return phone
}

// DisplayName prefers the contact name over the phone.
func (c ChatSummary) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Phone()
}

// Preview renders the last message line shown in chat lists.
func (c ChatSummary) Preview() string {
	if c.LastMessage == "" {
		return "No messages yet"
	}
	switch {
	case c.LastIsFromMe:
		return "You: " + c.LastMessage
	case c.LastSender != "":
		return c.LastSender + ": " + c.LastMessage
	default:
		return c.LastMessage
	}
}
