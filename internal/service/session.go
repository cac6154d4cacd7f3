package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	apperrors "chatsync/internal/errors"
	"chatsync/internal/metrics"
	"chatsync/internal/models"
	"chatsync/internal/timeline"
	"chatsync/internal/tracing"
	"chatsync/pkg/backend"
	"chatsync/pkg/transport"
	transporttypes "chatsync/pkg/transport/types"

	"github.com/sirupsen/logrus"
)

// ChatRecorder stores chat metadata seen while loading a conversation.
type ChatRecorder interface {
	RecordChat(ctx context.Context, chat *models.Chat)
}

// SessionConfig holds the optional collaborators of a ConversationSession.
type SessionConfig struct {
	Phone     string
	Directory ChatRecorder
	Metrics   *metrics.Registry
	Verbose   bool
}

// Snapshot is the state a view renders for one conversation.
type Snapshot struct {
	Phone     string                `json:"phone"`
	Title     string                `json:"title"`
	Chat      *models.Chat          `json:"chat,omitempty"`
	Messages  []models.Message      `json:"messages"`
	Groups    []models.MessageGroup `json:"groups"`
	IsTyping  bool                  `json:"is_typing"`
	Connected bool                  `json:"connected"`
	Error     string                `json:"error,omitempty"`
	Version   uint64                `json:"version"`
}

// ConversationSession connects one timeline to its backend.
//
// A single goroutine consumes transport events and applies them to the
// timeline in arrival order. Local sends go through the timeline's outbox.
type ConversationSession struct {
	phone      string
	reconciler *timeline.Reconciler
	transport  transport.Client
	backend    backend.Client
	directory  ChatRecorder
	metrics    *metrics.Registry
	verbose    bool
	logger     *logrus.Logger

	mu         sync.RWMutex
	chat       *models.Chat
	historyErr string
	connErr    string
	opened     bool
	closed     bool
	cancel     context.CancelFunc

	connected  atomic.Bool
	dispatched chan struct{}
	stopped    chan struct{}
	changes    chan struct{}
}

func NewConversationSession(cfg SessionConfig, reconciler *timeline.Reconciler, tr transport.Client, bc backend.Client, logger *logrus.Logger) *ConversationSession {
	if logger == nil {
		logger = logrus.New()
	}
	return &ConversationSession{
		phone:      cfg.Phone,
		reconciler: reconciler,
		transport:  tr,
		backend:    bc,
		directory:  cfg.Directory,
		metrics:    cfg.Metrics,
		verbose:    cfg.Verbose,
		logger:     logger,
		dispatched: make(chan struct{}),
		stopped:    make(chan struct{}),
		changes:    make(chan struct{}, 1),
	}
}

// Phone returns the conversation partner's phone number.
func (s *ConversationSession) Phone() string {
	return s.phone
}

// Open loads the history, starts dispatching events and connects the transport.
//
// A failed history load leaves the timeline empty and is reported through
// Snapshot; the socket is still opened. A dial error is returned, and the
// session keeps running disconnected so sends fail immediately.
func (s *ConversationSession) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return apperrors.NewClosedError("session")
	}
	if s.opened {
		s.mu.Unlock()
		return nil
	}
	s.opened = true
	dispatchCtx, cancel := context.WithCancel(WithVerbose(context.Background(), s.verbose))
	s.cancel = cancel
	s.mu.Unlock()

	ctx = WithVerbose(ctx, s.verbose)
	ctx, span := tracing.StartSpan(ctx, "session.open", tracing.AttrChatPhone.String(phoneField(ctx, s.phone)))
	defer span.End()

	if err := s.loadHistory(ctx); err != nil && ctx.Err() != nil {
		cancel()
		close(s.dispatched)
		return err
	}

	go s.dispatch(dispatchCtx, s.transport.Events())

	if err := s.transport.Dial(ctx); err != nil {
		tracing.RecordError(ctx, err)
		s.setConnError(apperrors.GetUserMessage(err))
		return fmt.Errorf("failed to connect conversation transport: %w", err)
	}

	s.logger.WithField(LogFieldPhone, phoneField(ctx, s.phone)).Info("Conversation session opened")
	return nil
}

func (s *ConversationSession) loadHistory(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "backend.fetch_chat")
	defer span.End()

	history, err := s.backend.FetchChat(ctx, s.phone)
	if err != nil {
		tracing.RecordError(ctx, err)
		s.mu.Lock()
		s.historyErr = apperrors.GetUserMessage(err)
		s.mu.Unlock()
		apperrors.WrapLogger(s.logger).LogRetryableError(err, "Failed to load chat history", logrus.Fields{
			LogFieldPhone: phoneField(ctx, s.phone),
		})
		return err
	}

	messages := make([]models.Message, 0, len(history.Messages))
	for _, m := range history.Messages {
		messages = append(messages, MessageFromBackend(m))
	}
	timeline.SortByTimestamp(messages, s.reconciler.Location())
	s.reconciler.Seed(messages)
	span.SetAttributes(tracing.AttrMessageCount.Int(len(messages)))

	chat := ChatFromBackend(s.phone, history.Chat, time.Now())
	s.mu.Lock()
	s.chat = chat
	s.historyErr = ""
	s.mu.Unlock()

	if chat != nil && s.directory != nil {
		s.directory.RecordChat(ctx, chat)
	}

	s.logger.WithFields(logrus.Fields{
		LogFieldPhone: phoneField(ctx, s.phone),
		LogFieldCount: len(messages),
	}).Debug("Loaded chat history")
	s.notify()
	return nil
}

func (s *ConversationSession) dispatch(ctx context.Context, events <-chan transporttypes.Event) {
	defer close(s.dispatched)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				s.connected.Store(false)
				return
			}
			s.handleEvent(ctx, event)
			s.notify()
		}
	}
}

func (s *ConversationSession) handleEvent(ctx context.Context, event transporttypes.Event) {
	_, span := tracing.StartSpan(ctx, "session.event", tracing.AttrEventType.String(event.EventType()))
	defer span.End()

	switch e := event.(type) {
	case transporttypes.StatusEvent:
		LogEventProcessing(ctx, s.logger, e.EventType(), "", e.TempID, "", "")
		s.reconciler.ApplyStatusUpdate(e.TempID, models.MessageStatus(e.Status), e.MessageID.String())

	case transporttypes.MessageEvent:
		LogEventProcessing(ctx, s.logger, e.EventType(), e.ChatJID, e.ID.String(), e.Sender, e.Content)
		s.reconciler.ApplyIncomingMessage(IncomingFromEvent(e))

	case transporttypes.TypingEvent:
		s.reconciler.ApplyTypingIndicator(e.User != s.reconciler.LocalSender() && e.IsTyping)

	case transporttypes.ConnectionEstablishedEvent:
		s.logger.WithField(LogFieldPhone, phoneField(ctx, s.phone)).Debug("Conversation connection established")

	case transporttypes.OpenEvent:
		s.connected.Store(true)
		s.setConnError("")

	case transporttypes.CloseEvent:
		s.connected.Store(false)
		s.reconciler.ApplyTypingIndicator(false)
		if e.Err != nil {
			s.setConnError(apperrors.GetUserMessage(e.Err))
			apperrors.WrapLogger(s.logger).LogRetryableError(e.Err, "Conversation connection closed", logrus.Fields{
				LogFieldPhone: phoneField(ctx, s.phone),
			})
		}

	default:
		s.metrics.IncrementCounter("transport_unknown_events_total", map[string]string{"type": event.EventType()}, "Inbound events with an unrecognized type")
		s.logger.WithField(LogFieldEvent, event.EventType()).Warn("Ignoring unknown conversation event")
	}
}

// Send submits content as a local message. The returned message is already
// failed when the transport rejected it.
func (s *ConversationSession) Send(ctx context.Context, content string) (models.Message, error) {
	ctx = WithVerbose(ctx, s.verbose)
	ctx, span := tracing.StartSpan(ctx, "session.send")
	defer span.End()

	msg, err := s.reconciler.SubmitLocalMessage(content, s.reconciler.LocalSender(), s.ChatID())
	if err != nil {
		tracing.RecordError(ctx, err)
		return msg, err
	}
	LogEventProcessing(ctx, s.logger, transporttypes.TypeSendMessage, msg.ChatID, msg.ID, msg.Sender, msg.Content)
	s.notify()
	return msg, nil
}

// ChatID is the identifier stamped on local messages.
func (s *ConversationSession) ChatID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.ChatIDFor(s.chat, s.phone)
}

// Connected reports whether the transport is open.
func (s *ConversationSession) Connected() bool {
	return s.connected.Load()
}

// Changes signals after the timeline or connection state changed.
// Signals are coalesced; read Snapshot for the current state.
func (s *ConversationSession) Changes() <-chan struct{} {
	return s.changes
}

// Done is closed once the session has been closed.
func (s *ConversationSession) Done() <-chan struct{} {
	return s.stopped
}

// Snapshot returns the current timeline with its day groups.
func (s *ConversationSession) Snapshot() Snapshot {
	s.mu.RLock()
	var chat *models.Chat
	if s.chat != nil {
		c := *s.chat
		chat = &c
	}
	lastErr := s.historyErr
	if lastErr == "" {
		lastErr = s.connErr
	}
	s.mu.RUnlock()

	title := s.phone
	if chat != nil && chat.Name != "" {
		title = chat.Name
	}

	return Snapshot{
		Phone:     s.phone,
		Title:     title,
		Chat:      chat,
		Messages:  s.reconciler.Messages(),
		Groups:    s.reconciler.Groups(),
		IsTyping:  s.reconciler.IsTyping(),
		Connected: s.connected.Load(),
		Error:     lastErr,
		Version:   s.reconciler.Version(),
	}
}

// Close stops dispatching, closes the transport and deactivates the
// timeline. Events or send results arriving afterwards are ignored.
func (s *ConversationSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	opened, cancel := s.opened, s.cancel
	s.mu.Unlock()

	s.reconciler.Close()
	if cancel != nil {
		cancel()
	}
	err := s.transport.Close()
	if opened {
		<-s.dispatched
	}
	s.connected.Store(false)
	close(s.stopped)

	s.logger.WithField(LogFieldPhone, phoneField(WithVerbose(context.Background(), s.verbose), s.phone)).Info("Conversation session closed")
	return err
}

func (s *ConversationSession) setConnError(msg string) {
	s.mu.Lock()
	s.connErr = msg
	s.mu.Unlock()
}

func (s *ConversationSession) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
