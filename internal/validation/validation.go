package validation

import (
	"fmt"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"chatsync/internal/constants"
	"chatsync/internal/errors"
)

// Suffixes stripped before a phone number is checked.
var jidSuffixes = []string{"@s.whatsapp.net", "@c.us", "@g.us"}

// ValidatePhoneNumber validates phone number format and length.
// A leading "+" and a chat id suffix are accepted.
func ValidatePhoneNumber(phone string) error {
	if phone == "" {
		return errors.New(errors.ErrCodeInvalidInput, "phone number cannot be empty")
	}

	cleaned := strings.TrimPrefix(phone, "+")
	for _, suffix := range jidSuffixes {
		cleaned = strings.TrimSuffix(cleaned, suffix)
	}

	if len(cleaned) < constants.MinPhoneNumberLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("phone number must be at least %d digits", constants.MinPhoneNumberLength))
	}
	if len(cleaned) > constants.MaxPhoneNumberLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("phone number too long (max %d digits)", constants.MaxPhoneNumberLength))
	}

	for _, char := range cleaned {
		if !unicode.IsDigit(char) {
			return errors.New(errors.ErrCodeInvalidInput, "phone number must contain only digits")
		}
	}

	return nil
}

// ValidateMessageContent checks text typed by the local user before it is submitted.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.NewValidationError("content", "", "message content cannot be empty")
	}
	if !utf8.ValidString(content) {
		return errors.NewValidationError("content", "", "message content must be valid UTF-8")
	}
	if len(content) > constants.MaxContentLength {
		return errors.NewValidationError("content", "",
			fmt.Sprintf("message content too long (max %d bytes)", constants.MaxContentLength))
	}
	return nil
}

// ValidateHTTPRequestSize validates incoming HTTP request size
func ValidateHTTPRequestSize(r *http.Request, maxSizeBytes int64) error {
	if r.ContentLength > maxSizeBytes {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("request too large: %d bytes (max %d bytes)", r.ContentLength, maxSizeBytes))
	}
	return nil
}

// ValidateNumericRange validates numeric values against bounds
func ValidateNumericRange(value int, fieldName string, min, max int) error {
	if value < min {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too small (min %d)", fieldName, min))
	}

	if value > max {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too large (max %d)", fieldName, max))
	}

	return nil
}

// ValidateTimeout validates timeout values
func ValidateTimeout(timeoutSec int, fieldName string) error {
	if timeoutSec < 1 {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s must be at least 1 second", fieldName))
	}

	if timeoutSec > constants.MaxTimeoutSec {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too large (max %d seconds)", fieldName, constants.MaxTimeoutSec))
	}

	return nil
}

// ValidateRetentionDays validates the chat directory retention period
func ValidateRetentionDays(days int) error {
	if days < 1 {
		return errors.New(errors.ErrCodeInvalidInput, "retention days must be at least 1")
	}

	if days > constants.MaxRetentionDays {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("retention days too large (max %d)", constants.MaxRetentionDays))
	}

	return nil
}
