package service

import (
	"context"
	"sync"

	"chatsync/internal/models"
	backendtypes "chatsync/pkg/backend/types"
	transporttypes "chatsync/pkg/transport/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

// Mock chat backend
type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) FetchChat(ctx context.Context, phone string) (*backendtypes.ChatHistory, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backendtypes.ChatHistory), args.Error(1)
}

func (m *mockBackend) ListChats(ctx context.Context, page, limit int) ([]backendtypes.ChatSummary, error) {
	args := m.Called(ctx, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]backendtypes.ChatSummary), args.Error(1)
}

// Mock chat cache
type mockChatStore struct {
	mock.Mock
}

func (m *mockChatStore) SaveChat(ctx context.Context, chat *models.Chat) error {
	args := m.Called(ctx, chat)
	return args.Error(0)
}

func (m *mockChatStore) GetChatByPhone(ctx context.Context, phone string) (*models.Chat, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Chat), args.Error(1)
}

func (m *mockChatStore) CleanupOldChats(ctx context.Context, retentionDays int) (int64, error) {
	args := m.Called(ctx, retentionDays)
	return args.Get(0).(int64), args.Error(1)
}

// Mock transport. Events are pushed by the test through push.
type mockTransport struct {
	mock.Mock
	events    chan transporttypes.Event
	closeOnce sync.Once
}

func newMockTransport() *mockTransport {
	return &mockTransport{events: make(chan transporttypes.Event, 16)}
}

func (m *mockTransport) Dial(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockTransport) Send(ctx context.Context, msg transporttypes.OutgoingMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *mockTransport) Events() <-chan transporttypes.Event {
	return m.events
}

func (m *mockTransport) Connected() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *mockTransport) Close() error {
	m.closeOnce.Do(func() { close(m.events) })
	return nil
}

func (m *mockTransport) push(event transporttypes.Event) {
	m.events <- event
}

// Mock cache cleaner
type mockCleaner struct {
	mock.Mock
}

func (m *mockCleaner) Cleanup(ctx context.Context, retentionDays int) error {
	args := m.Called(ctx, retentionDays)
	return args.Error(0)
}

// Mock chat recorder
type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordChat(ctx context.Context, chat *models.Chat) {
	m.Called(ctx, chat)
}
