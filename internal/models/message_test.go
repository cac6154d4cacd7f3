package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMessageStatus_Valid(t *testing.T) {
	for _, s := range []MessageStatus{StatusSending, StatusSent, StatusDelivered, StatusRead, StatusFailed} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, MessageStatus("").Valid())
	assert.False(t, MessageStatus("queued").Valid())
}

func TestIsTemporaryID(t *testing.T) {
	assert.True(t, IsTemporaryID("temp-1700000000000-abc1234"))
	assert.False(t, IsTemporaryID("M100"))
	assert.False(t, IsTemporaryID(""))
}

func TestIncomingMessage_MergeInto(t *testing.T) {
	local := Message{
		ID:        "temp-1-a",
		ChatID:    "unknown-jid-5511",
		Content:   "hello",
		Sender:    "You",
		IsFromMe:  true,
		Timestamp: "2024-03-01T10:00:00Z",
		Status:    StatusSending,
		Pending:   true,
	}

	fromMe := true
	merged := IncomingMessage{
		TempID:   "temp-1-a",
		ID:       "M100",
		ChatID:   "5511@s.whatsapp.net",
		IsFromMe: &fromMe,
		Status:   StatusSent,
	}.MergeInto(local)

	assert.Equal(t, "M100", merged.ID)
	assert.Equal(t, "5511@s.whatsapp.net", merged.ChatID)
	assert.Equal(t, "hello", merged.Content, "absent fields keep the local value")
	assert.Equal(t, "2024-03-01T10:00:00Z", merged.Timestamp)
	assert.Equal(t, StatusSent, merged.Status)
	assert.True(t, merged.Pending, "pending is owned by the reconciler, not the merge")
}

func TestIncomingMessage_ToMessage(t *testing.T) {
	failed := true
	msg := IncomingMessage{ID: "M1", Content: "hi", Failed: &failed}.ToMessage()
	assert.Equal(t, "M1", msg.ID)
	assert.Equal(t, "hi", msg.Content)
	assert.True(t, msg.Failed)
	assert.False(t, msg.IsFromMe)
}

func TestParseTimestamp(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)

	tests := []struct {
		name  string
		raw   string
		ok    bool
		check func(*testing.T, time.Time)
	}{
		{name: "rfc3339 utc", raw: "2024-03-01T10:00:00Z", ok: true, check: func(t *testing.T, ts time.Time) {
			assert.Equal(t, 10, ts.UTC().Hour())
		}},
		{name: "fractional seconds", raw: "2024-03-01T10:00:00.123456+02:00", ok: true},
		{name: "naive is local to loc", raw: "2024-03-01T23:30:00", ok: true, check: func(t *testing.T, ts time.Time) {
			assert.Equal(t, loc, ts.Location())
			assert.Equal(t, 23, ts.Hour())
		}},
		{name: "space separated", raw: "2024-03-01 08:15:00", ok: true},
		{name: "date only", raw: "2024-03-01", ok: true},
		{name: "surrounding spaces", raw: "  2024-03-01T10:00:00Z ", ok: true},
		{name: "empty", raw: "", ok: false},
		{name: "garbage", raw: "yesterday-ish", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, ok := ParseTimestamp(tt.raw, loc)
			assert.Equal(t, tt.ok, ok)
			if tt.check != nil {
				tt.check(t, ts)
			}
		})
	}
}
