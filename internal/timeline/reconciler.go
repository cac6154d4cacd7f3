package timeline

import (
	"strings"
	"sync"
	"time"

	"chatsync/internal/constants"
	apperrors "chatsync/internal/errors"
	"chatsync/internal/metrics"
	"chatsync/internal/models"
	"chatsync/internal/privacy"

	"github.com/sirupsen/logrus"
)

// localTimestampLayout matches the millisecond ISO-8601 form the backend emits.
const localTimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Outbox hands a locally submitted message to the transport.
// A non-nil error means the message was rejected synchronously.
type Outbox interface {
	Deliver(msg models.Message) error
}

// OutboxFunc adapts a function to the Outbox interface.
type OutboxFunc func(msg models.Message) error

func (f OutboxFunc) Deliver(msg models.Message) error {
	return f(msg)
}

// Config tunes a Reconciler. Zero values fall back to defaults.
type Config struct {
	LocalSender string
	Location    *time.Location
	Metrics     *metrics.Registry
	Now         func() time.Time
}

// Reconciler owns the message timeline of one conversation.
//
// All mutations run under a single writer lock, so events applied from the
// dispatcher and local submits never interleave. Once closed, every event is
// ignored and submits are rejected.
type Reconciler struct {
	mu       sync.RWMutex
	messages []models.Message
	isTyping bool
	version  uint64
	active   bool

	cacheMu      sync.Mutex
	cacheVersion uint64
	cacheDay     string
	cacheGroups  []models.MessageGroup

	outbox      Outbox
	localSender string
	loc         *time.Location
	now         func() time.Time
	metrics     *metrics.Registry
	logger      *logrus.Logger
}

// NewReconciler creates an empty timeline that delivers local messages through outbox.
func NewReconciler(outbox Outbox, logger *logrus.Logger) *Reconciler {
	return NewReconcilerWithConfig(outbox, logger, Config{})
}

func NewReconcilerWithConfig(outbox Outbox, logger *logrus.Logger, cfg Config) *Reconciler {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.LocalSender == "" {
		cfg.LocalSender = constants.DefaultLocalSender
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Reconciler{
		messages:    []models.Message{},
		active:      true,
		outbox:      outbox,
		localSender: cfg.LocalSender,
		loc:         cfg.Location,
		now:         cfg.Now,
		metrics:     cfg.Metrics,
		logger:      logger,
	}
}

// LocalSender is the sender name used for messages authored here.
func (r *Reconciler) LocalSender() string {
	return r.localSender
}

// Location is the zone used for day grouping and labels.
func (r *Reconciler) Location() *time.Location {
	return r.loc
}

// Seed replaces the timeline with an initially fetched history.
// The input order is kept; callers sort beforehand. Entries repeating an
// earlier final id are dropped and all entries are marked confirmed.
func (r *Reconciler) Seed(history []models.Message) {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}

	seen := make(map[string]struct{}, len(history))
	seeded := make([]models.Message, 0, len(history))
	dropped := 0
	for _, msg := range history {
		if msg.ID != "" && !models.IsTemporaryID(msg.ID) {
			if _, dup := seen[msg.ID]; dup {
				dropped++
				continue
			}
			seen[msg.ID] = struct{}{}
		}
		msg.Pending = false
		seeded = append(seeded, msg)
	}
	r.messages = seeded
	r.version++
	total, pending := r.countsLocked()
	r.mu.Unlock()

	if dropped > 0 {
		r.metrics.AddToCounter("timeline_duplicates_dropped_total", float64(dropped), nil, "Duplicate messages discarded")
	}
	r.publishGauges(total, pending)
	r.logger.WithFields(logrus.Fields{
		"messages": total,
		"dropped":  dropped,
	}).Debug("Timeline seeded")
}

// SubmitLocalMessage appends an optimistic message and hands it to the outbox.
//
// A synchronous outbox rejection marks that same entry failed; the returned
// message reflects the state after delivery was attempted. Errors are only
// returned for invalid content or a closed timeline.
func (r *Reconciler) SubmitLocalMessage(content, sender, chatID string) (models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, apperrors.NewValidationError("content", "", "must not be empty")
	}
	if len(content) > constants.MaxContentLength {
		return models.Message{}, apperrors.NewValidationError("content", "", "exceeds maximum length")
	}
	if sender == "" {
		sender = r.localSender
	}

	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return models.Message{}, apperrors.NewClosedError("timeline")
	}
	now := r.now()
	id := NewTempID(now)
	for r.indexLocked(id) >= 0 {
		id = NewTempID(now)
	}
	msg := models.Message{
		ID:        id,
		ChatID:    chatID,
		Content:   content,
		Sender:    sender,
		IsFromMe:  true,
		Timestamp: now.UTC().Format(localTimestampLayout),
		Status:    models.StatusSending,
		Pending:   true,
	}
	r.messages = append(r.messages, msg)
	r.version++
	total, pending := r.countsLocked()
	r.mu.Unlock()

	r.metrics.IncrementCounter("timeline_events_total", map[string]string{"event": "local_submit"}, "Timeline events applied")
	r.publishGauges(total, pending)

	var err error
	if r.outbox == nil {
		err = apperrors.NewTransportError("send", nil)
	} else {
		err = r.outbox.Deliver(msg)
	}
	if err != nil {
		r.logger.WithError(err).WithField("message_id", privacy.MaskMessageID(id)).Warn("Local message rejected by transport")
		if failed, ok := r.markFailed(id); ok {
			return failed, nil
		}
		msg.Pending = false
		msg.Failed = true
		msg.Status = models.StatusFailed
	}
	return msg, nil
}

// markFailed transitions the entry still holding tempID to failed.
func (r *Reconciler) markFailed(tempID string) (models.Message, bool) {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return models.Message{}, false
	}
	idx := r.indexLocked(tempID)
	if idx < 0 {
		r.mu.Unlock()
		return models.Message{}, false
	}
	r.messages[idx].Failed = true
	r.messages[idx].Pending = false
	r.messages[idx].Status = models.StatusFailed
	updated := r.messages[idx]
	r.version++
	total, pending := r.countsLocked()
	r.mu.Unlock()

	r.metrics.IncrementCounter("timeline_send_failures_total", nil, "Local messages rejected by the transport")
	r.publishGauges(total, pending)
	return updated, true
}

// ApplyStatusUpdate resolves the entry identified by tempID.
// Unknown or already resolved temp ids are ignored.
func (r *Reconciler) ApplyStatusUpdate(tempID string, status models.MessageStatus, finalID string) {
	r.metrics.IncrementCounter("timeline_events_total", map[string]string{"event": "status"}, "Timeline events applied")

	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}
	idx := -1
	if tempID != "" {
		idx = r.indexLocked(tempID)
	}
	if idx < 0 {
		r.mu.Unlock()
		r.metrics.IncrementCounter("timeline_stale_status_total", nil, "Status updates without a matching entry")
		r.logger.WithFields(logrus.Fields{
			"temp_id": privacy.MaskMessageID(tempID),
			"status":  status,
		}).Debug("Ignoring status update for unknown message")
		return
	}

	msg := &r.messages[idx]
	msg.Status = status
	msg.Pending = false
	msg.Failed = status == models.StatusFailed
	collision := false
	if finalID != "" {
		collision = r.collidesLocked(finalID, idx)
		msg.ID = finalID
	}
	r.version++
	total, pending := r.countsLocked()
	r.mu.Unlock()

	if collision {
		r.reportCollision(finalID)
	}
	if status == models.StatusFailed {
		r.metrics.IncrementCounter("timeline_send_failures_total", nil, "Local messages rejected by the transport")
	}
	r.publishGauges(total, pending)
}

// ApplyIncomingMessage merges or appends a message delivered by the backend.
//
// A matching temp id consumes the event as an in-place update. Otherwise a
// final id already present drops the event, and anything else is appended.
func (r *Reconciler) ApplyIncomingMessage(in models.IncomingMessage) {
	r.metrics.IncrementCounter("timeline_events_total", map[string]string{"event": "message"}, "Timeline events applied")

	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}

	if in.TempID != "" {
		if idx := r.indexLocked(in.TempID); idx >= 0 {
			merged := in.MergeInto(r.messages[idx])
			merged.Pending = false
			collision := merged.ID != in.TempID && r.collidesLocked(merged.ID, idx)
			r.messages[idx] = merged
			r.version++
			total, pending := r.countsLocked()
			r.mu.Unlock()

			if collision {
				r.reportCollision(merged.ID)
			}
			r.publishGauges(total, pending)
			return
		}
	}

	if in.ID != "" && !models.IsTemporaryID(in.ID) && r.indexLocked(in.ID) >= 0 {
		r.mu.Unlock()
		r.metrics.IncrementCounter("timeline_duplicates_dropped_total", nil, "Duplicate messages discarded")
		r.logger.WithField("message_id", privacy.MaskMessageID(in.ID)).Debug("Dropping duplicate message")
		return
	}

	msg := in.ToMessage()
	msg.Pending = false
	r.messages = append(r.messages, msg)
	r.version++
	total, pending := r.countsLocked()
	r.mu.Unlock()

	r.publishGauges(total, pending)
}

// ApplyTypingIndicator sets whether the remote party is typing.
func (r *Reconciler) ApplyTypingIndicator(isTyping bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	r.isTyping = isTyping
}

// Messages returns a copy of the timeline.
func (r *Reconciler) Messages() []models.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Len returns the number of messages in the timeline.
func (r *Reconciler) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.messages)
}

// IsTyping reports the last typing indicator received.
func (r *Reconciler) IsTyping() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isTyping
}

// Version increases on every change to the message list.
func (r *Reconciler) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Active reports whether the timeline still accepts events.
func (r *Reconciler) Active() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Groups returns the messages grouped by day.
// The result is cached until the message list or the current day changes
// and must not be modified by callers.
func (r *Reconciler) Groups() []models.MessageGroup {
	now := r.now().In(r.loc)
	day := now.Format(dateKeyLayout)

	r.mu.RLock()
	version := r.version
	r.cacheMu.Lock()
	if r.cacheGroups != nil && r.cacheVersion == version && r.cacheDay == day {
		groups := r.cacheGroups
		r.cacheMu.Unlock()
		r.mu.RUnlock()
		return groups
	}
	r.cacheMu.Unlock()
	groups := GroupByDay(r.messages, now, r.loc)
	r.mu.RUnlock()

	r.cacheMu.Lock()
	r.cacheGroups = groups
	r.cacheVersion = version
	r.cacheDay = day
	r.cacheMu.Unlock()
	return groups
}

// StalePending counts messages still pending for longer than threshold.
func (r *Reconciler) StalePending(threshold time.Duration) int {
	now := r.now()

	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, msg := range r.messages {
		if !msg.Pending {
			continue
		}
		if t, ok := msg.Time(r.loc); ok && now.Sub(t) > threshold {
			count++
		}
	}
	return count
}

// Close deactivates the timeline. Later events and sends are ignored.
func (r *Reconciler) Close() {
	r.mu.Lock()
	r.active = false
	r.isTyping = false
	r.mu.Unlock()
}

func (r *Reconciler) indexLocked(id string) int {
	for i := range r.messages {
		if r.messages[i].ID == id {
			return i
		}
	}
	return -1
}

// collidesLocked reports whether another entry than skip already carries id.
func (r *Reconciler) collidesLocked(id string, skip int) bool {
	if id == "" || models.IsTemporaryID(id) {
		return false
	}
	for i := range r.messages {
		if i != skip && r.messages[i].ID == id {
			return true
		}
	}
	return false
}

func (r *Reconciler) countsLocked() (total, pending int) {
	for i := range r.messages {
		if r.messages[i].Pending {
			pending++
		}
	}
	return len(r.messages), pending
}

func (r *Reconciler) publishGauges(total, pending int) {
	r.metrics.SetGauge("timeline_messages", float64(total), nil, "Messages in the timeline")
	r.metrics.SetGauge("timeline_pending_messages", float64(pending), nil, "Messages awaiting confirmation")
}

func (r *Reconciler) reportCollision(finalID string) {
	r.metrics.IncrementCounter("timeline_final_id_collisions_total", nil, "Resolved messages sharing a final id with another entry")
	r.logger.WithField("message_id", privacy.MaskMessageID(finalID)).Warn("Resolved message shares its final id with another entry")
}
