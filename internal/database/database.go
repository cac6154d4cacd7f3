package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	apperrors "chatsync/internal/errors"
	"chatsync/internal/migrations"
	"chatsync/internal/models"
	"chatsync/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

// Database is the local chat directory cache.
type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	enc, err := NewEncryptor()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidConfig, "failed to initialize encryptor")
	}
	return open(dbPath, enc)
}

func open(dbPath string, enc *encryptor) (*Database, error) {
	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseConnection, "failed to ping database")
	}

	if err := migrations.Up(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Database{db: db, encryptor: enc}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Ping checks the connection for health reporting.
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// SaveChat inserts or replaces the cache entry for chat.Phone.
func (d *Database) SaveChat(ctx context.Context, chat *models.Chat) error {
	phone, err := d.encryptor.EncryptForLookup(chat.Phone)
	if err != nil {
		return fmt.Errorf("failed to encrypt phone: %w", err)
	}
	jid, err := d.encryptor.Encrypt(chat.JID)
	if err != nil {
		return fmt.Errorf("failed to encrypt jid: %w", err)
	}
	name, err := d.encryptor.Encrypt(chat.Name)
	if err != nil {
		return fmt.Errorf("failed to encrypt name: %w", err)
	}

	cachedAt := chat.CachedAt
	if cachedAt.IsZero() {
		cachedAt = time.Now()
	}

	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, UpsertChatQuery, phone, jid, name, cachedAt.UTC())
		if err != nil {
			return apperrors.NewDatabaseError("save chat", err)
		}
		return nil
	}, "save chat")
}

// GetChatByPhone returns the cached entry for phone, or nil when absent.
func (d *Database) GetChatByPhone(ctx context.Context, phone string) (*models.Chat, error) {
	key, err := d.encryptor.EncryptForLookup(phone)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt phone: %w", err)
	}

	chat, err := d.scanChat(d.db.QueryRowContext(ctx, SelectChatByPhoneQuery, key))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get chat", err)
	}
	return chat, nil
}

// RecentChats returns up to limit entries, most recently cached first.
func (d *Database) RecentChats(ctx context.Context, limit int) ([]models.Chat, error) {
	rows, err := d.db.QueryContext(ctx, SelectRecentChatsQuery, limit)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list chats", err)
	}
	defer rows.Close()

	chats := []models.Chat{}
	for rows.Next() {
		chat, err := d.scanChat(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseError("list chats", err)
		}
		chats = append(chats, *chat)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("list chats", err)
	}
	return chats, nil
}

// CountChats returns the number of cached entries.
func (d *Database) CountChats(ctx context.Context) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx, CountChatsQuery).Scan(&count); err != nil {
		return 0, apperrors.NewDatabaseError("count chats", err)
	}
	return count, nil
}

// CleanupOldChats removes entries cached more than retentionDays ago.
func (d *Database) CleanupOldChats(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	var removed int64
	err := retryableDBOperation(ctx, func() error {
		result, err := d.db.ExecContext(ctx, DeleteOldChatsQuery, cutoff)
		if err != nil {
			return apperrors.NewDatabaseError("cleanup chats", err)
		}
		removed, err = result.RowsAffected()
		return err
	}, "cleanup chats")
	return removed, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (d *Database) scanChat(row rowScanner) (*models.Chat, error) {
	var phone, jid, name string
	var cachedAt time.Time
	if err := row.Scan(&phone, &jid, &name, &cachedAt); err != nil {
		return nil, err
	}

	chat := &models.Chat{CachedAt: cachedAt}
	var err error
	if chat.Phone, err = d.encryptor.Decrypt(phone); err != nil {
		return nil, fmt.Errorf("failed to decrypt phone: %w", err)
	}
	if chat.JID, err = d.encryptor.Decrypt(jid); err != nil {
		return nil, fmt.Errorf("failed to decrypt jid: %w", err)
	}
	if chat.Name, err = d.encryptor.Decrypt(name); err != nil {
		return nil, fmt.Errorf("failed to decrypt name: %w", err)
	}
	return chat, nil
}
