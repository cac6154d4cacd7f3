package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigError_Error(t *testing.T) {
	err := ConfigError{Message: "test error"}
	assert.Equal(t, "test error", err.Error())
}

func TestChat_DisplayName(t *testing.T) {
	tests := []struct {
		name string
		chat *Chat
		want string
	}{
		{name: "nil chat", chat: nil, want: ""},
		{name: "name wins", chat: &Chat{Phone: "5511999990000", Name: "Maria"}, want: "Maria"},
		{name: "falls back to phone", chat: &Chat{Phone: "5511999990000"}, want: "5511999990000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.chat.DisplayName())
		})
	}
}

func TestChatIDFor(t *testing.T) {
	assert.Equal(t, "5511@s.whatsapp.net", ChatIDFor(&Chat{JID: "5511@s.whatsapp.net"}, "5511"))
	assert.Equal(t, "unknown-jid-5511", ChatIDFor(nil, "5511"))
	assert.Equal(t, "unknown-jid-5511", ChatIDFor(&Chat{Name: "x"}, "5511"))
}
