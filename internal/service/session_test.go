package service

import (
	"context"
	"testing"
	"time"

	apperrors "chatsync/internal/errors"
	"chatsync/internal/metrics"
	"chatsync/internal/models"
	"chatsync/internal/timeline"
	backendtypes "chatsync/pkg/backend/types"
	transporttypes "chatsync/pkg/transport/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testPhone = "5511987654321"

type sessionFixture struct {
	session   *ConversationSession
	transport *mockTransport
	backend   *mockBackend
	recorder  *mockRecorder
	registry  *metrics.Registry
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()

	tr := newMockTransport()
	bc := &mockBackend{}
	recorder := &mockRecorder{}
	registry := metrics.NewRegistry()
	logger := quietLogger()

	reconciler := timeline.NewReconcilerWithConfig(NewTransportOutbox(tr, time.Second), logger, timeline.Config{
		Location: time.UTC,
		Metrics:  registry,
	})
	session := NewConversationSession(SessionConfig{
		Phone:     testPhone,
		Directory: recorder,
		Metrics:   registry,
	}, reconciler, tr, bc, logger)

	t.Cleanup(func() { _ = session.Close() })
	return &sessionFixture{session: session, transport: tr, backend: bc, recorder: recorder, registry: registry}
}

func sampleHistory() *backendtypes.ChatHistory {
	return &backendtypes.ChatHistory{
		Chat: &backendtypes.Chat{JID: testPhone + "@s.whatsapp.net", Name: "Maria"},
		Messages: []backendtypes.Message{
			{ID: "M2", ChatJID: testPhone + "@s.whatsapp.net", Content: "tudo bem?", Sender: "Maria", Timestamp: "2024-06-15T10:05:00Z"},
			{ID: "M1", ChatJID: testPhone + "@s.whatsapp.net", Content: "oi", Sender: "You", IsFromMe: true, Timestamp: "2024-06-15T10:00:00Z"},
		},
	}
}

func (f *sessionFixture) openConnected(t *testing.T) {
	t.Helper()
	f.backend.On("FetchChat", mock.Anything, testPhone).Return(sampleHistory(), nil).Once()
	f.recorder.On("RecordChat", mock.Anything, mock.AnythingOfType("*models.Chat")).Once()
	f.transport.On("Dial", mock.Anything).Run(func(mock.Arguments) {
		f.transport.push(transporttypes.OpenEvent{})
		f.transport.push(transporttypes.ConnectionEstablishedEvent{})
	}).Return(nil).Once()

	require.NoError(t, f.session.Open(context.Background()))
	require.Eventually(t, f.session.Connected, time.Second, 5*time.Millisecond)
}

func (f *sessionFixture) eventually(t *testing.T, cond func(Snapshot) bool) {
	t.Helper()
	require.Eventually(t, func() bool { return cond(f.session.Snapshot()) }, time.Second, 5*time.Millisecond)
}

func TestConversationSession_OpenSeedsSortedHistory(t *testing.T) {
	f := newSessionFixture(t)
	f.openConnected(t)

	snap := f.session.Snapshot()
	assert.Equal(t, "Maria", snap.Title)
	require.NotNil(t, snap.Chat)
	assert.Equal(t, testPhone, snap.Chat.Phone)
	assert.Empty(t, snap.Error)
	assert.True(t, snap.Connected)

	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "M1", snap.Messages[0].ID)
	assert.Equal(t, "M2", snap.Messages[1].ID)
	for _, m := range snap.Messages {
		assert.False(t, m.Pending)
	}

	require.Len(t, snap.Groups, 1)
	assert.Equal(t, "2024-06-15", snap.Groups[0].DateKey)
	assert.Equal(t, testPhone+"@s.whatsapp.net", f.session.ChatID())

	f.backend.AssertExpectations(t)
	f.recorder.AssertExpectations(t)
	f.transport.AssertExpectations(t)
}

func TestConversationSession_SendAndConfirm(t *testing.T) {
	f := newSessionFixture(t)
	f.openConnected(t)

	var sent transporttypes.OutgoingMessage
	f.transport.On("Send", mock.Anything, mock.AnythingOfType("types.OutgoingMessage")).Run(func(args mock.Arguments) {
		sent = args.Get(1).(transporttypes.OutgoingMessage)
	}).Return(nil).Once()

	msg, err := f.session.Send(context.Background(), "  hello  ")
	require.NoError(t, err)
	assert.True(t, models.IsTemporaryID(msg.ID))
	assert.True(t, msg.Pending)
	assert.Equal(t, models.StatusSending, msg.Status)

	assert.Equal(t, transporttypes.TypeSendMessage, sent.Type)
	assert.Equal(t, msg.ID, sent.TempID)
	assert.Equal(t, "hello", sent.Content)
	assert.Equal(t, "You", sent.Sender)
	assert.Equal(t, testPhone+"@s.whatsapp.net", sent.ChatID)

	f.transport.push(transporttypes.StatusEvent{TempID: msg.ID, Status: "sent", MessageID: "M3"})
	f.eventually(t, func(s Snapshot) bool {
		last := s.Messages[len(s.Messages)-1]
		return last.ID == "M3" && last.Status == models.StatusSent && !last.Pending
	})

	// The echo of the confirmed message is a duplicate.
	f.transport.push(transporttypes.MessageEvent{ID: "M3", Content: "hello", Sender: "You"})
	f.transport.push(transporttypes.MessageEvent{ID: "M4", Content: "que bom", Sender: "Maria", Timestamp: "2024-06-15T10:07:00Z"})
	f.eventually(t, func(s Snapshot) bool { return len(s.Messages) == 4 })

	assert.Equal(t, float64(1), f.registry.CounterValue("timeline_duplicates_dropped_total", nil))
	f.transport.AssertExpectations(t)
}

func TestConversationSession_IncomingMessageMergesByTempID(t *testing.T) {
	f := newSessionFixture(t)
	f.openConnected(t)
	f.transport.On("Send", mock.Anything, mock.Anything).Return(nil).Once()

	msg, err := f.session.Send(context.Background(), "hello")
	require.NoError(t, err)

	fromMe := true
	f.transport.push(transporttypes.MessageEvent{TempID: msg.ID, ID: "99", Status: "delivered", IsFromMe: &fromMe})
	f.eventually(t, func(s Snapshot) bool {
		last := s.Messages[len(s.Messages)-1]
		return last.ID == "99" && last.Status == models.StatusDelivered
	})

	snap := f.session.Snapshot()
	require.Len(t, snap.Messages, 3)
	last := snap.Messages[2]
	assert.Equal(t, "hello", last.Content)
	assert.False(t, last.Pending)
}

func TestConversationSession_TypingIndicator(t *testing.T) {
	f := newSessionFixture(t)
	f.openConnected(t)

	f.transport.push(transporttypes.TypingEvent{User: "You", IsTyping: true})
	f.transport.push(transporttypes.TypingEvent{User: "Maria", IsTyping: true})
	f.eventually(t, func(s Snapshot) bool { return s.IsTyping })

	f.transport.push(transporttypes.TypingEvent{User: "Maria", IsTyping: false})
	f.eventually(t, func(s Snapshot) bool { return !s.IsTyping })

	f.transport.push(transporttypes.TypingEvent{User: "Maria", IsTyping: true})
	f.eventually(t, func(s Snapshot) bool { return s.IsTyping })

	f.transport.push(transporttypes.CloseEvent{Err: apperrors.NewTransportError("read", assert.AnError)})
	f.eventually(t, func(s Snapshot) bool { return !s.IsTyping && !s.Connected })
	assert.Equal(t, "Not connected. Please wait or try refreshing.", f.session.Snapshot().Error)
}

func TestConversationSession_SendRejectedByTransport(t *testing.T) {
	f := newSessionFixture(t)
	f.openConnected(t)
	f.transport.On("Send", mock.Anything, mock.Anything).Return(apperrors.NewTransportError("send", assert.AnError)).Once()

	msg, err := f.session.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.True(t, msg.Failed)
	assert.False(t, msg.Pending)
	assert.Equal(t, models.StatusFailed, msg.Status)

	snap := f.session.Snapshot()
	assert.Equal(t, msg, snap.Messages[len(snap.Messages)-1])
}

func TestConversationSession_SendRejectsEmptyContent(t *testing.T) {
	f := newSessionFixture(t)
	f.openConnected(t)

	_, err := f.session.Send(context.Background(), "   ")
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.GetCode(err))
	assert.Len(t, f.session.Snapshot().Messages, 2)
	f.transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestConversationSession_HistoryFailureStillConnects(t *testing.T) {
	f := newSessionFixture(t)
	f.backend.On("FetchChat", mock.Anything, testPhone).
		Return(nil, apperrors.NewBackendError("/chats/phone/x/", 500, assert.AnError)).Once()
	f.transport.On("Dial", mock.Anything).Run(func(mock.Arguments) {
		f.transport.push(transporttypes.OpenEvent{})
	}).Return(nil).Once()

	require.NoError(t, f.session.Open(context.Background()))
	require.Eventually(t, f.session.Connected, time.Second, 5*time.Millisecond)

	snap := f.session.Snapshot()
	assert.Equal(t, "Failed to load chat", snap.Error)
	assert.Empty(t, snap.Messages)
	assert.NotNil(t, snap.Groups)
	assert.Equal(t, testPhone, snap.Title)
	assert.Equal(t, "unknown-jid-"+testPhone, f.session.ChatID())
	f.recorder.AssertNotCalled(t, "RecordChat", mock.Anything, mock.Anything)
}

func TestConversationSession_DialFailureFailsSends(t *testing.T) {
	f := newSessionFixture(t)
	f.backend.On("FetchChat", mock.Anything, testPhone).Return(&backendtypes.ChatHistory{}, nil).Once()
	f.transport.On("Dial", mock.Anything).Return(apperrors.NewTransportError("dial", assert.AnError)).Once()
	f.transport.On("Send", mock.Anything, mock.Anything).Return(apperrors.NewTransportError("send", assert.AnError)).Once()

	err := f.session.Open(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeTransport, apperrors.GetCode(err))
	assert.False(t, f.session.Connected())

	msg, err := f.session.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.True(t, msg.Failed)
}

func TestConversationSession_UnknownEventIsCounted(t *testing.T) {
	f := newSessionFixture(t)
	f.openConnected(t)

	f.transport.push(transporttypes.UnknownEvent{Type: "reaction"})
	require.Eventually(t, func() bool {
		return f.registry.CounterValue("transport_unknown_events_total", map[string]string{"type": "reaction"}) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, f.session.Snapshot().Messages, 2)
}

func TestConversationSession_StaleStatusIsIgnored(t *testing.T) {
	f := newSessionFixture(t)
	f.openConnected(t)
	version := f.session.Snapshot().Version

	f.transport.push(transporttypes.StatusEvent{TempID: "temp-1-abcdefg", Status: "sent", MessageID: "X"})
	f.transport.push(transporttypes.StatusEvent{Status: "sent"})
	require.Eventually(t, func() bool {
		return f.registry.CounterValue("timeline_stale_status_total", nil) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, version, f.session.Snapshot().Version)
}

func TestConversationSession_ChangesSignal(t *testing.T) {
	f := newSessionFixture(t)
	f.openConnected(t)

	// Drain signals from opening.
	for len(f.session.Changes()) > 0 {
		<-f.session.Changes()
	}

	f.transport.push(transporttypes.TypingEvent{User: "Maria", IsTyping: true})
	select {
	case <-f.session.Changes():
	case <-time.After(time.Second):
		t.Fatal("expected a change signal")
	}
}

func TestConversationSession_Close(t *testing.T) {
	f := newSessionFixture(t)
	f.openConnected(t)

	require.NoError(t, f.session.Close())
	require.NoError(t, f.session.Close())

	select {
	case <-f.session.Done():
	default:
		t.Fatal("Done should be closed")
	}
	assert.False(t, f.session.Connected())

	_, err := f.session.Send(context.Background(), "late")
	assert.Equal(t, apperrors.ErrCodeClosed, apperrors.GetCode(err))
	assert.Equal(t, apperrors.ErrCodeClosed, apperrors.GetCode(f.session.Open(context.Background())))
	assert.Len(t, f.session.Snapshot().Messages, 2)
}

func TestConversationSession_CloseWithoutOpen(t *testing.T) {
	f := newSessionFixture(t)
	assert.NoError(t, f.session.Close())
}
