package service

import (
	"context"
	"sync"
	"time"

	"chatsync/internal/constants"

	"github.com/sirupsen/logrus"
)

// CacheCleaner removes cached entries older than a retention period
type CacheCleaner interface {
	Cleanup(ctx context.Context, retentionDays int) error
}

// Scheduler runs the chat cache cleanup on a fixed interval
type Scheduler struct {
	cleaner       CacheCleaner
	retentionDays int
	interval      time.Duration
	logger        *logrus.Logger
	stopCh        chan struct{}
	stopOnce      sync.Once
}

func NewScheduler(cleaner CacheCleaner, retentionDays, intervalHours int, logger *logrus.Logger) *Scheduler {
	if intervalHours <= 0 {
		intervalHours = constants.DefaultCleanupIntervalHours
	}
	if retentionDays <= 0 {
		retentionDays = constants.DefaultRetentionDays
	}
	return &Scheduler{
		cleaner:       cleaner,
		retentionDays: retentionDays,
		interval:      time.Duration(intervalHours) * time.Hour,
		logger:        logger,
		stopCh:        make(chan struct{}),
	}
}

// Start runs one cleanup immediately, then once per interval until stopped.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Starting cleanup scheduler")

	s.runCleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context cancelled, stopping")
			return
		case <-s.stopCh:
			s.logger.Info("Scheduler stop signal received, stopping")
			return
		case <-ticker.C:
			s.runCleanup(ctx)
		}
	}
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	s.logger.WithField("retention_days", s.retentionDays).Info("Running scheduled cleanup")

	if err := s.cleaner.Cleanup(ctx, s.retentionDays); err != nil {
		s.logger.WithError(err).Error("Failed to cleanup chat cache")
	}
}
