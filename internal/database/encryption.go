package database

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"

	"chatsync/internal/constants"

	"golang.org/x/crypto/pbkdf2"
)

// Environment variables controlling field encryption of the chat cache.
const (
	EnableEncryptionEnv = "CHATSYNC_ENABLE_ENCRYPTION"
	EncryptionSecretEnv = "CHATSYNC_ENCRYPTION_SECRET"
)

// encryptor seals cached chat fields with AES-GCM. A zero encryptor passes
// values through unchanged.
type encryptor struct {
	gcm cipher.AEAD
}

// NewEncryptor reads the encryption settings from the environment.
func NewEncryptor() (*encryptor, error) {
	if os.Getenv(EnableEncryptionEnv) != "true" {
		return &encryptor{}, nil
	}
	return newEncryptorWithSecret(os.Getenv(EncryptionSecretEnv))
}

func newEncryptorWithSecret(secret string) (*encryptor, error) {
	key, err := deriveKey(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &encryptor{gcm: gcm}, nil
}

func (e *encryptor) Enabled() bool {
	return e.gcm != nil
}

// Encrypt seals plaintext with a random nonce.
func (e *encryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" || e.gcm == nil {
		return plaintext, nil
	}

	nonce := make([]byte, constants.EncryptionNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return e.seal(nonce, plaintext), nil
}

// EncryptForLookup seals plaintext deterministically so it can be matched in
// WHERE clauses. The nonce is derived from the plaintext.
// #nosec G407 - deterministic nonce is required for lookups
func (e *encryptor) EncryptForLookup(plaintext string) (string, error) {
	if plaintext == "" || e.gcm == nil {
		return plaintext, nil
	}

	hash := sha256.Sum256([]byte(plaintext + constants.EncryptionLookupSalt))
	return e.seal(hash[:constants.EncryptionNonceSize], plaintext), nil
}

func (e *encryptor) seal(nonce []byte, plaintext string) string {
	sealed := e.gcm.Seal(nil, nonce, []byte(plaintext), nil)
	out := make([]byte, 0, len(nonce)+len(sealed))
	out = append(out, nonce...)
	out = append(out, sealed...)
	return base64.StdEncoding.EncodeToString(out)
}

func (e *encryptor) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" || e.gcm == nil {
		return ciphertext, nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}
	if len(data) < constants.EncryptionNonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, sealed := data[:constants.EncryptionNonceSize], data[constants.EncryptionNonceSize:]
	plaintext, err := e.gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}

func deriveKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("%s is required when encryption is enabled", EncryptionSecretEnv)
	}
	if len(secret) < 32 {
		return nil, fmt.Errorf("encryption secret must be at least 32 characters long")
	}

	salt := []byte(constants.EncryptionSalt)
	return pbkdf2.Key([]byte(secret), salt, constants.EncryptionIterations, constants.EncryptionKeySize, sha256.New), nil
}
