package database

// Chat cache queries
const (
	UpsertChatQuery = `
		INSERT INTO chats (phone, jid, name, cached_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(phone) DO UPDATE SET
			jid = excluded.jid,
			name = excluded.name,
			cached_at = excluded.cached_at
	`

	SelectChatByPhoneQuery = `
		SELECT phone, jid, name, cached_at
		FROM chats
		WHERE phone = ?
	`

	SelectRecentChatsQuery = `
		SELECT phone, jid, name, cached_at
		FROM chats
		ORDER BY cached_at DESC
		LIMIT ?
	`

	DeleteOldChatsQuery = `
		DELETE FROM chats
		WHERE cached_at < ?
	`

	CountChatsQuery = `SELECT COUNT(*) FROM chats`
)
