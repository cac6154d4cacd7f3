package privacy

import (
	"fmt"
	"strings"

	"chatsync/internal/models"
)

// MaskPhoneNumber masks a phone number showing only the last 4 digits
// Example: "+5511987654321" -> "+*********4321"
func MaskPhoneNumber(phone string) string {
	if phone == "" {
		return ""
	}

	if strings.HasPrefix(phone, "+") {
		if len(phone) == 1 {
			return phone
		}
		return "+" + maskString(phone[1:], 4)
	}
	return maskString(phone, 4)
}

// MaskChatID masks a chat JID while keeping its server part readable
// Example: "5511987654321@s.whatsapp.net" -> "*********4321@s.whatsapp.net"
func MaskChatID(chatID string) string {
	if chatID == "" {
		return ""
	}

	if local, domain, ok := strings.Cut(chatID, "@"); ok {
		return maskString(local, 4) + "@" + domain
	}

	// "unknown-jid-<phone>" placeholders keep their marker
	const unknownPrefix = "unknown-jid-"
	if strings.HasPrefix(chatID, unknownPrefix) {
		return unknownPrefix + MaskPhoneNumber(strings.TrimPrefix(chatID, unknownPrefix))
	}
	return maskString(chatID, 4)
}

// MaskMessageID masks a message id. Temporary ids keep their prefix so
// optimistic entries stay recognizable in logs.
// Example: "temp-1718000000000-a1b2c3d" -> "temp-***************1b2c3d"
func MaskMessageID(messageID string) string {
	if messageID == "" {
		return ""
	}
	if models.IsTemporaryID(messageID) {
		return models.TempIDPrefix + maskString(strings.TrimPrefix(messageID, models.TempIDPrefix), 6)
	}
	return maskString(messageID, 8)
}

// MaskName masks a contact display name, keeping the first letter
// Example: "Maria Silva" -> "M**********"
func MaskName(name string) string {
	runes := []rune(name)
	if len(runes) <= 1 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[0]) + strings.Repeat("*", len(runes)-1)
}

// DescribeContent replaces message text with its length
func DescribeContent(content string) string {
	return fmt.Sprintf("[%d chars]", len([]rune(content)))
}

// maskString masks a string showing only the last n characters
func maskString(s string, keepLast int) string {
	if s == "" {
		return ""
	}
	if len(s) <= keepLast {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-keepLast) + s[len(s)-keepLast:]
}

// MaskSensitiveFields applies appropriate masking to common logging fields
func MaskSensitiveFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	masked := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		s, isString := v.(string)
		if !isString {
			masked[k] = v
			continue
		}
		switch k {
		case "phone", "phone_number":
			masked[k] = MaskPhoneNumber(s)
		case "chat_id", "chat_jid", "jid":
			masked[k] = MaskChatID(s)
		case "message_id", "temp_id", "final_id":
			masked[k] = MaskMessageID(s)
		case "name", "sender", "user":
			masked[k] = MaskName(s)
		case "content":
			masked[k] = DescribeContent(s)
		default:
			masked[k] = v
		}
	}
	return masked
}
