package timeline

import (
	"errors"
	"sync"
	"time"

	"chatsync/internal/metrics"
	"chatsync/internal/models"

	"github.com/sirupsen/logrus"
)

var (
	testLoc = time.FixedZone("BRT", -3*3600)
	testNow = time.Date(2024, time.June, 15, 14, 30, 0, 0, testLoc)
)

type recordingOutbox struct {
	mu        sync.Mutex
	delivered []models.Message
	err       error
}

func (o *recordingOutbox) Deliver(msg models.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.delivered = append(o.delivered, msg)
	return nil
}

func (o *recordingOutbox) Delivered() []models.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]models.Message(nil), o.delivered...)
}

var errNotOpen = errors.New("connection not open")

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func newTestReconciler(outbox Outbox) (*Reconciler, *metrics.Registry) {
	registry := metrics.NewRegistry()
	r := NewReconcilerWithConfig(outbox, quietLogger(), Config{
		Location: testLoc,
		Metrics:  registry,
		Now:      func() time.Time { return testNow },
	})
	return r, registry
}

func boolPtr(b bool) *bool {
	return &b
}

func remote(id, content, timestamp string) models.IncomingMessage {
	return models.IncomingMessage{
		ID:        id,
		ChatID:    "5511987654321@s.whatsapp.net",
		Content:   content,
		Sender:    "Maria",
		IsFromMe:  boolPtr(false),
		Timestamp: timestamp,
	}
}
