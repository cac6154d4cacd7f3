package service

import (
	"context"
	"time"

	"chatsync/internal/constants"
	"chatsync/internal/models"
	"chatsync/pkg/transport"
	transporttypes "chatsync/pkg/transport/types"
)

// TransportOutbox delivers locally submitted messages as send-message frames.
type TransportOutbox struct {
	client  transport.Client
	timeout time.Duration
}

func NewTransportOutbox(client transport.Client, timeout time.Duration) *TransportOutbox {
	if timeout <= 0 {
		timeout = constants.DefaultSendTimeoutMs * time.Millisecond
	}
	return &TransportOutbox{client: client, timeout: timeout}
}

// Deliver writes msg to the socket. A closed or not yet opened connection
// fails right away, which marks the message failed.
func (o *TransportOutbox) Deliver(msg models.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	return o.client.Send(ctx, transporttypes.OutgoingMessage{
		Type:    transporttypes.TypeSendMessage,
		ChatID:  msg.ChatID,
		Content: msg.Content,
		Sender:  msg.Sender,
		TempID:  msg.ID,
	})
}
