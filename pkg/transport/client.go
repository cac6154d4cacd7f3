package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	apperrors "chatsync/internal/errors"
	"chatsync/internal/metrics"
	"chatsync/internal/retry"
	"chatsync/pkg/constants"
	"chatsync/pkg/transport/types"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
)

// ErrNotConnected is returned by Send while no connection is open.
var ErrNotConnected = errors.New("websocket is not connected")

// ErrClientClosed is returned once Close has been called.
var ErrClientClosed = errors.New("transport client is closed")

// Client is a bidirectional event channel for one conversation.
type Client interface {
	Dial(ctx context.Context) error
	Send(ctx context.Context, msg types.OutgoingMessage) error
	Events() <-chan types.Event
	Connected() bool
	Close() error
}

// Config configures a WSClient.
type Config struct {
	BaseURL      string
	Phone        string
	DialTimeout  time.Duration
	SendTimeout  time.Duration
	PingInterval time.Duration
	ReadLimit    int64
	EventBuffer  int
	Backoff      retry.BackoffConfig
	HTTPClient   *http.Client
	Header       http.Header
	Metrics      *metrics.Registry
}

// WSClient talks to the conversation endpoint of the chat backend over WebSocket.
//
// Events are delivered in arrival order on a single channel, which is closed
// after Close returns.
type WSClient struct {
	cfg    Config
	url    string
	logger *logrus.Logger

	mu     sync.RWMutex
	conn   *websocket.Conn
	closed bool
	cancel context.CancelFunc

	events    chan types.Event
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewClient(cfg Config) *WSClient {
	return NewClientWithLogger(cfg, nil)
}

func NewClientWithLogger(cfg Config, logger *logrus.Logger) *WSClient {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = constants.DefaultDialTimeoutSec * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = constants.DefaultWriteTimeoutSec * time.Second
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = constants.DefaultReadLimitBytes
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = constants.DefaultEventBuffer
	}
	if cfg.Backoff.MaxAttempts == 0 {
		cfg.Backoff = retry.DefaultBackoffConfig()
	}

	return &WSClient{
		cfg:    cfg,
		url:    ConversationURL(cfg.BaseURL, cfg.Phone),
		logger: logger,
		events: make(chan types.Event, cfg.EventBuffer),
		done:   make(chan struct{}),
	}
}

// ConversationURL builds the socket address of the conversation with phone.
func ConversationURL(baseURL, phone string) string {
	return strings.TrimSuffix(baseURL, "/") + fmt.Sprintf(constants.ConversationPath, url.PathEscape(phone))
}

// URL returns the address the client dials.
func (c *WSClient) URL() string {
	return c.url
}

// Dial connects to the backend, retrying with backoff, and starts reading.
func (c *WSClient) Dial(ctx context.Context) error {
	c.mu.RLock()
	closed, connected := c.closed, c.conn != nil
	c.mu.RUnlock()
	if closed {
		return apperrors.NewTransportError("dial", ErrClientClosed)
	}
	if connected {
		return nil
	}

	backoff := retry.NewBackoff(c.cfg.Backoff).OnRetry(func(attempt int, delay time.Duration, err error) {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"delay":   delay,
		}).Warn("WebSocket dial failed, retrying")
	})

	var conn *websocket.Conn
	err := backoff.Retry(ctx, func() error {
		dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
		defer cancel()

		var dialErr error
		conn, _, dialErr = websocket.Dial(dialCtx, c.url, &websocket.DialOptions{
			HTTPClient: c.cfg.HTTPClient,
			HTTPHeader: c.cfg.Header,
		})
		return dialErr
	})
	if err != nil {
		return apperrors.NewTransportError("dial", err).WithContext("url", c.url)
	}
	conn.SetReadLimit(c.cfg.ReadLimit)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "client closed")
		return apperrors.NewTransportError("dial", ErrClientClosed)
	}
	readCtx, cancel := context.WithCancel(context.Background())
	c.conn = conn
	c.cancel = cancel
	c.mu.Unlock()

	c.logger.WithField("url", c.url).Info("WebSocket connected")
	c.emit(types.OpenEvent{})

	c.wg.Add(1)
	go c.readLoop(readCtx, conn)
	if c.cfg.PingInterval > 0 {
		c.wg.Add(1)
		go c.pingLoop(readCtx, conn)
	}
	return nil
}

// Send writes msg to the socket. It fails immediately when no connection is open.
func (c *WSClient) Send(ctx context.Context, msg types.OutgoingMessage) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return apperrors.NewTransportError("send", ErrNotConnected)
	}
	if msg.Type == "" {
		msg.Type = types.TypeSendMessage
	}

	writeCtx, cancel := context.WithTimeout(ctx, c.cfg.SendTimeout)
	defer cancel()
	if err := wsjson.Write(writeCtx, conn, msg); err != nil {
		return apperrors.NewTransportError("send", err)
	}
	return nil
}

// Events returns the inbound event stream.
func (c *WSClient) Events() <-chan types.Event {
	return c.events
}

// Connected reports whether a connection is currently open.
func (c *WSClient) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Close shuts the connection down and closes the event channel.
// An incomplete close handshake is logged, not returned.
func (c *WSClient) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		conn, cancel := c.conn, c.cancel
		c.conn = nil
		c.mu.Unlock()

		if conn != nil {
			if err := conn.Close(websocket.StatusNormalClosure, "conversation closed"); err != nil && !isNormalClose(err) {
				c.logger.WithError(err).Debug("WebSocket close handshake incomplete")
			}
		}
		if cancel != nil {
			cancel()
		}
		close(c.done)
		c.wg.Wait()
		close(c.events)
	})
	return nil
}

func (c *WSClient) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			c.disconnected(conn, err)
			return
		}

		event, err := DecodeEvent(data)
		if err != nil {
			c.cfg.Metrics.IncrementCounter("transport_malformed_events_total", nil, "Inbound frames that could not be decoded")
			c.logger.WithError(err).WithField("bytes", len(data)).Warn("Dropping malformed WebSocket frame")
			continue
		}
		c.emit(event)
	}
}

func (c *WSClient) pingLoop(ctx context.Context, conn *websocket.Conn) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, c.cfg.SendTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.logger.WithError(err).Debug("WebSocket ping failed")
				return
			}
		}
	}
}

func (c *WSClient) disconnected(conn *websocket.Conn, err error) {
	c.mu.Lock()
	current := c.conn == conn
	if current {
		c.conn = nil
	}
	closing := c.closed
	c.mu.Unlock()

	if closing || isNormalClose(err) {
		c.logger.Debug("WebSocket closed")
		c.emit(types.CloseEvent{})
		return
	}
	c.logger.WithError(err).Warn("WebSocket connection lost")
	c.emit(types.CloseEvent{Err: apperrors.NewTransportError("read", err)})
}

// emit delivers event unless the client is shutting down.
func (c *WSClient) emit(event types.Event) {
	select {
	case c.events <- event:
	case <-c.done:
	}
}

func isNormalClose(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return errors.Is(err, context.Canceled)
}
