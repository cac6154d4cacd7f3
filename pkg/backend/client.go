package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "chatsync/internal/errors"
	"chatsync/internal/metrics"
	"chatsync/internal/retry"
	"chatsync/pkg/backend/types"
	"chatsync/pkg/circuitbreaker"
	"chatsync/pkg/constants"

	"github.com/sirupsen/logrus"
)

// Client reads chat history and chat listings from the chat backend.
type Client interface {
	FetchChat(ctx context.Context, phone string) (*types.ChatHistory, error)
	ListChats(ctx context.Context, page, limit int) ([]types.ChatSummary, error)
}

// Config configures an HTTPClient.
type Config struct {
	BaseURL            string
	Timeout            time.Duration
	RetryCount         int
	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration
	Backoff            retry.BackoffConfig
	HTTPClient         *http.Client
	Metrics            *metrics.Registry
}

type HTTPClient struct {
	baseURL string
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	backoff *retry.Backoff
	metrics *metrics.Registry
	logger  *logrus.Logger
}

func NewClient(cfg Config) *HTTPClient {
	return NewClientWithLogger(cfg, nil)
}

func NewClientWithLogger(cfg Config, logger *logrus.Logger) *HTTPClient {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultHTTPTimeoutSec * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.BreakerMaxFailures == 0 {
		cfg.BreakerMaxFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	if cfg.Backoff.MaxAttempts == 0 {
		cfg.Backoff = retry.DefaultBackoffConfig()
	}
	if cfg.RetryCount > 0 {
		cfg.Backoff.MaxAttempts = cfg.RetryCount
	}

	registry := cfg.Metrics
	breaker := circuitbreaker.NewWithOptions("chat-backend", cfg.BreakerMaxFailures, cfg.BreakerTimeout, circuitbreaker.Options{
		CountsAsFailure: apperrors.IsRetryable,
		Logger:          logger,
		OnStateChange: func(name string, _, to circuitbreaker.State) {
			registry.SetGauge("backend_circuit_state", float64(to), map[string]string{"breaker": name}, "0 closed, 1 open, 2 half-open")
		},
	})

	return &HTTPClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		client:  cfg.HTTPClient,
		breaker: breaker,
		backoff: retry.NewBackoff(cfg.Backoff),
		metrics: registry,
		logger:  logger,
	}
}

// FetchChat loads the chat metadata and full message history for phone.
func (c *HTTPClient) FetchChat(ctx context.Context, phone string) (*types.ChatHistory, error) {
	if strings.TrimSpace(phone) == "" {
		return nil, apperrors.NewValidationError("phone", "", "must not be empty")
	}

	endpoint := fmt.Sprintf(constants.ChatByPhonePath, url.PathEscape(phone))
	var history types.ChatHistory
	if err := c.getJSON(ctx, "fetch_chat", endpoint, &history); err != nil {
		return nil, err
	}
	if history.Messages == nil {
		history.Messages = []types.Message{}
	}
	return &history, nil
}

// ListChats returns one page of the chat listing. Paging is clamped like the
// listing route does: page >= 0 and 1 <= limit <= 100.
func (c *HTTPClient) ListChats(ctx context.Context, page, limit int) ([]types.ChatSummary, error) {
	page, limit = ClampPaging(page, limit)

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))
	endpoint := constants.ChatsPath + "?" + query.Encode()

	var chats []types.ChatSummary
	if err := c.getJSON(ctx, "list_chats", endpoint, &chats); err != nil {
		return nil, err
	}
	if chats == nil {
		chats = []types.ChatSummary{}
	}
	return chats, nil
}

// BreakerStats exposes the circuit breaker state for health reporting.
func (c *HTTPClient) BreakerStats() circuitbreaker.Stats {
	return c.breaker.GetStats()
}

func (c *HTTPClient) getJSON(ctx context.Context, operation, endpoint string, out interface{}) error {
	start := time.Now()
	defer func() {
		c.metrics.RecordTimer("backend_request_duration", time.Since(start), map[string]string{"operation": operation}, "Chat backend request latency")
	}()

	err := c.backoff.RetryWithPredicate(ctx, func() error {
		return c.breaker.Execute(ctx, func(ctx context.Context) error {
			return c.doGet(ctx, endpoint, out)
		})
	}, apperrors.IsRetryable)

	if err != nil {
		c.metrics.IncrementCounter("backend_request_errors_total", map[string]string{"operation": operation}, "Failed chat backend requests")
		if circuitbreaker.IsCircuitBreakerError(err) {
			return apperrors.NewBackendError(endpoint, 0, err).WithUserMessage("Chat backend temporarily unavailable")
		}
		return err
	}
	return nil
}

func (c *HTTPClient) doGet(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return apperrors.NewBackendError(endpoint, 0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		appErr := apperrors.NewBackendError(endpoint, 0, err)
		appErr.Retryable = true
		return appErr
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, constants.MaxErrorBodyBytes))
		c.logger.WithFields(logrus.Fields{
			"endpoint":    endpoint,
			"status_code": resp.StatusCode,
		}).Debug("Chat backend returned an error")
		return apperrors.NewBackendError(endpoint, resp.StatusCode,
			fmt.Errorf("API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewBackendError(endpoint, resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

// ClampPaging bounds page and limit to the values the backend accepts.
func ClampPaging(page, limit int) (int, int) {
	if page < 0 {
		page = 0
	}
	if limit < constants.MinPageLimit {
		limit = constants.MinPageLimit
	}
	if limit > constants.MaxPageLimit {
		limit = constants.MaxPageLimit
	}
	return page, limit
}

// ParsePaging reads raw query values. Missing values default to page 10 and
// limit 50; values that are not integers fall back to page 0 and limit 20.
func ParsePaging(rawPage, rawLimit string) (int, int) {
	if rawPage == "" {
		rawPage = "10"
	}
	if rawLimit == "" {
		rawLimit = "50"
	}

	page, err := leadingInt(rawPage)
	if err != nil {
		page = 0
	}
	limit, err := leadingInt(rawLimit)
	if err != nil {
		limit = constants.DefaultPageLimit
	}
	return ClampPaging(page, limit)
}

// leadingInt parses the optional sign and digits at the start of s, so
// "25abc" yields 25.
func leadingInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	return strconv.Atoi(s[:end])
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	appErr, ok := apperrors.As(err)
	if !ok || appErr.Code != apperrors.ErrCodeBackendAPI {
		return false
	}
	status, _ := appErr.Context["status_code"].(int)
	return status == http.StatusNotFound
}
