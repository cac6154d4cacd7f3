package service

import (
	"context"
	"fmt"
	"time"

	"chatsync/internal/constants"
	"chatsync/internal/models"
	"chatsync/pkg/backend"
	backendtypes "chatsync/pkg/backend/types"

	"github.com/sirupsen/logrus"
)

// ChatDirectoryInterface defines the chat metadata operations used by the views
type ChatDirectoryInterface interface {
	DisplayName(ctx context.Context, phone string) string
	RecordChat(ctx context.Context, chat *models.Chat)
	Refresh(ctx context.Context, phone string) error
	ListChats(ctx context.Context, page, limit int) ([]backendtypes.ChatSummary, error)
	SyncChats(ctx context.Context) (int, error)
	Cleanup(ctx context.Context, retentionDays int) error
}

// ChatStore defines the cache operations needed by ChatDirectory
type ChatStore interface {
	SaveChat(ctx context.Context, chat *models.Chat) error
	GetChatByPhone(ctx context.Context, phone string) (*models.Chat, error)
	CleanupOldChats(ctx context.Context, retentionDays int) (int64, error)
}

// DirectoryConfig tunes a ChatDirectory. Zero values fall back to defaults.
type DirectoryConfig struct {
	CacheHours int
	PageLimit  int
	SyncDelay  time.Duration
}

// ChatDirectory caches chat names and JIDs fetched from the backend
type ChatDirectory struct {
	store      ChatStore
	backend    backend.Client
	cacheValid time.Duration
	pageLimit  int
	syncDelay  time.Duration
	now        func() time.Time
	logger     *logrus.Logger
}

// NewChatDirectory creates a directory with the default cache duration
func NewChatDirectory(store ChatStore, bc backend.Client, logger *logrus.Logger) *ChatDirectory {
	return NewChatDirectoryWithConfig(store, bc, logger, DirectoryConfig{})
}

func NewChatDirectoryWithConfig(store ChatStore, bc backend.Client, logger *logrus.Logger, cfg DirectoryConfig) *ChatDirectory {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.CacheHours <= 0 {
		cfg.CacheHours = constants.DefaultCacheHours
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = constants.DefaultBackendPageLimit
	}
	if cfg.PageLimit > constants.MaxBackendPageLimit {
		cfg.PageLimit = constants.MaxBackendPageLimit
	}
	if cfg.SyncDelay < 0 {
		cfg.SyncDelay = 0
	}
	return &ChatDirectory{
		store:      store,
		backend:    bc,
		cacheValid: time.Duration(cfg.CacheHours) * time.Hour,
		pageLimit:  cfg.PageLimit,
		syncDelay:  cfg.SyncDelay,
		now:        time.Now,
		logger:     logger,
	}
}

// DisplayName returns the header label for phone.
// A fresh cache entry wins; otherwise the backend is asked, falling back to a
// stale entry and finally to the phone itself.
func (d *ChatDirectory) DisplayName(ctx context.Context, phone string) string {
	cached, err := d.store.GetChatByPhone(ctx, phone)
	if err != nil {
		d.logger.WithError(err).Warn("Failed to read chat from cache")
	}
	if cached != nil && d.now().Sub(cached.CachedAt) < d.cacheValid {
		return cached.DisplayName()
	}

	chat, err := d.fetch(ctx, phone)
	if err != nil {
		d.logger.WithError(err).WithField(LogFieldPhone, phoneField(ctx, phone)).Warn("Failed to fetch chat from backend")
		if cached != nil {
			return cached.DisplayName()
		}
		return phone
	}
	if chat == nil {
		return phone
	}

	d.RecordChat(ctx, chat)
	return chat.DisplayName()
}

// RecordChat stores chat, logging instead of failing.
func (d *ChatDirectory) RecordChat(ctx context.Context, chat *models.Chat) {
	if chat == nil || chat.Phone == "" {
		return
	}
	if chat.CachedAt.IsZero() {
		chat.CachedAt = d.now()
	}
	if err := d.store.SaveChat(ctx, chat); err != nil {
		d.logger.WithError(err).WithField(LogFieldPhone, phoneField(ctx, chat.Phone)).Error("Failed to save chat to cache")
	}
}

// Refresh forces a reload of phone from the backend
func (d *ChatDirectory) Refresh(ctx context.Context, phone string) error {
	chat, err := d.fetch(ctx, phone)
	if err != nil {
		return fmt.Errorf("failed to fetch chat from backend: %w", err)
	}
	if chat == nil {
		return fmt.Errorf("chat not found: %s", phoneField(ctx, phone))
	}
	return d.store.SaveChat(ctx, chat)
}

// ListChats returns one page of the chat listing and caches its entries.
// page and limit are clamped to the listing bounds.
func (d *ChatDirectory) ListChats(ctx context.Context, page, limit int) ([]backendtypes.ChatSummary, error) {
	page, limit = backend.ClampPaging(page, limit)
	chats, err := d.backend.ListChats(ctx, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	for _, summary := range chats {
		d.RecordChat(ctx, ChatFromSummary(summary, d.now()))
	}
	return chats, nil
}

// SyncChats pages through the chat listing and caches every entry.
// It stops at the first short page and returns the number of chats saved.
func (d *ChatDirectory) SyncChats(ctx context.Context) (int, error) {
	saved := 0
	for page := 0; ; page++ {
		chats, err := d.backend.ListChats(ctx, page, d.pageLimit)
		if err != nil {
			return saved, fmt.Errorf("failed to fetch chats page %d: %w", page, err)
		}

		for _, summary := range chats {
			chat := ChatFromSummary(summary, d.now())
			if chat.Phone == "" {
				continue
			}
			if err := d.store.SaveChat(ctx, chat); err != nil {
				d.logger.WithError(err).WithField(LogFieldChatID, summary.JID).Error("Failed to save chat to cache")
				continue
			}
			saved++
		}

		d.logger.WithFields(logrus.Fields{
			LogFieldPage:  page,
			LogFieldCount: len(chats),
		}).Debug("Synced chats page")

		if len(chats) < d.pageLimit {
			return saved, nil
		}

		select {
		case <-time.After(d.syncDelay):
		case <-ctx.Done():
			return saved, ctx.Err()
		}
	}
}

// Cleanup removes cache entries older than retentionDays
func (d *ChatDirectory) Cleanup(ctx context.Context, retentionDays int) error {
	removed, err := d.store.CleanupOldChats(ctx, retentionDays)
	if err != nil {
		return fmt.Errorf("failed to cleanup chat cache: %w", err)
	}
	d.logger.WithField(LogFieldCount, removed).Info("Completed chat cache cleanup")
	return nil
}

func (d *ChatDirectory) fetch(ctx context.Context, phone string) (*models.Chat, error) {
	history, err := d.backend.FetchChat(ctx, phone)
	if err != nil {
		return nil, err
	}
	return ChatFromBackend(phone, history.Chat, d.now()), nil
}
