package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Event types exchanged over the conversation socket.
const (
	TypeSendMessage           = "send-message"
	TypeMessageStatus         = "message_status"
	TypeReceiveMessage        = "receive-message"
	TypeTypingIndicator       = "typing_indicator"
	TypeConnectionEstablished = "connection_established"
)

// Event is a decoded inbound frame or a connection lifecycle notification.
type Event interface {
	EventType() string
}

// FlexibleID accepts identifiers sent either as JSON strings or numbers.
type FlexibleID string

func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = FlexibleID(n.String())
	return nil
}

func (id FlexibleID) String() string {
	return string(id)
}

// OutgoingMessage is the frame sent for a locally submitted message.
type OutgoingMessage struct {
	Type    string `json:"type"`
	ChatID  string `json:"chatId"`
	Content string `json:"content"`
	Sender  string `json:"sender"`
	TempID  string `json:"tempId"`
}

// StatusEvent reports the outcome of a send correlated by temp id.
type StatusEvent struct {
	TempID    string     `json:"tempId"`
	Status    string     `json:"status"`
	MessageID FlexibleID `json:"message_id,omitempty"`
}

func (StatusEvent) EventType() string { return TypeMessageStatus }

// MessageEvent carries a full message, optionally correlated to a local send.
type MessageEvent struct {
	TempID    string     `json:"tempId,omitempty"`
	ID        FlexibleID `json:"id"`
	ChatJID   string     `json:"chat_jid,omitempty"`
	Content   string     `json:"content,omitempty"`
	Sender    string     `json:"sender,omitempty"`
	IsFromMe  *bool      `json:"is_from_me,omitempty"`
	Timestamp string     `json:"timestamp,omitempty"`
	Status    string     `json:"status,omitempty"`
	Failed    *bool      `json:"failed,omitempty"`
}

func (MessageEvent) EventType() string { return TypeReceiveMessage }

// TypingEvent reports whether user is composing a message.
type TypingEvent struct {
	User     string `json:"user"`
	IsTyping bool   `json:"is_typing"`
}

func (TypingEvent) EventType() string { return TypeTypingIndicator }

// ConnectionEstablishedEvent is the server greeting. It carries no fields we use.
type ConnectionEstablishedEvent struct{}

func (ConnectionEstablishedEvent) EventType() string { return TypeConnectionEstablished }

// UnknownEvent holds a frame whose type is not recognized.
type UnknownEvent struct {
	Type string
	Raw  json.RawMessage
}

func (e UnknownEvent) EventType() string { return e.Type }

// OpenEvent is emitted once the socket is connected.
type OpenEvent struct{}

func (OpenEvent) EventType() string { return "open" }

// CloseEvent is emitted when the socket stops; Err is nil on a normal close.
type CloseEvent struct {
	Err error
}

func (CloseEvent) EventType() string { return "close" }
