package service

import (
	"context"
	"sync"
	"time"

	"chatsync/internal/constants"
	"chatsync/internal/metrics"

	"github.com/sirupsen/logrus"
)

// StalePendingCounter reports how many messages have waited too long for a status.
type StalePendingCounter interface {
	StalePending(threshold time.Duration) int
}

// StalePendingMonitor periodically publishes the number of local messages
// still pending after staleThreshold. It never changes the timeline.
type StalePendingMonitor struct {
	timeline       StalePendingCounter
	checkInterval  time.Duration
	staleThreshold time.Duration
	metrics        *metrics.Registry
	logger         *logrus.Logger
	stopCh         chan struct{}
	stopOnce       sync.Once
}

func NewStalePendingMonitor(timeline StalePendingCounter, checkInterval, staleThreshold time.Duration, registry *metrics.Registry, logger *logrus.Logger) *StalePendingMonitor {
	if checkInterval <= 0 {
		checkInterval = constants.DefaultStaleCheckIntervalSec * time.Second
	}
	if staleThreshold <= 0 {
		staleThreshold = constants.DefaultStalePendingSec * time.Second
	}
	return &StalePendingMonitor{
		timeline:       timeline,
		checkInterval:  checkInterval,
		staleThreshold: staleThreshold,
		metrics:        registry,
		logger:         logger,
		stopCh:         make(chan struct{}),
	}
}

// Start blocks until ctx is done or Stop is called.
func (m *StalePendingMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	m.logger.WithFields(logrus.Fields{
		"check_interval":  m.checkInterval,
		LogFieldThreshold: m.staleThreshold,
	}).Info("Starting stale pending monitor")

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.checkStalePending()
		}
	}
}

func (m *StalePendingMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *StalePendingMonitor) checkStalePending() int {
	count := m.timeline.StalePending(m.staleThreshold)
	m.metrics.SetGauge("timeline_stale_pending_messages", float64(count), nil, "Local messages still pending past the stale threshold")
	if count > 0 {
		m.logger.WithFields(logrus.Fields{
			LogFieldCount:     count,
			LogFieldThreshold: m.staleThreshold,
		}).Warn("Messages still pending without a status update")
	}
	return count
}
