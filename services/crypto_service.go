package services

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"spark_server/models"
)

const gcmTagSize = 16

// KeyService hands out the symmetric key protecting message content. The
// key is fetched once per request and reused for every decrypt in it.
type KeyService struct {
	key []byte
}

// NewKeyServiceFromEnv reads the base64 key from MESSAGE_ENCRYPTION_KEY.
func NewKeyServiceFromEnv() (*KeyService, error) {
	raw := os.Getenv("MESSAGE_ENCRYPTION_KEY")
	if raw == "" {
		return nil, errors.New("MESSAGE_ENCRYPTION_KEY is not set")
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MESSAGE_ENCRYPTION_KEY: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("MESSAGE_ENCRYPTION_KEY must be 32 bytes, got %d", len(key))
	}
	return &KeyService{key: key}, nil
}

// Fetch returns the message encryption key for the current request.
func (ks *KeyService) Fetch(ctx context.Context) ([]byte, error) {
	if len(ks.key) == 0 {
		return nil, errors.New("encryption key unavailable")
	}
	return ks.key, nil
}

// EncryptMessage encrypts plaintext with AES-256-GCM. The GCM tag is
// split off the ciphertext because the mobile client stores it as a
// separate column.
func EncryptMessage(key []byte, plaintext string) (models.EncryptedPayload, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return models.EncryptedPayload{}, fmt.Errorf("failed to init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return models.EncryptedPayload{}, fmt.Errorf("failed to init GCM: %w", err)
	}

	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return models.EncryptedPayload{}, fmt.Errorf("failed to generate iv: %w", err)
	}

	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-gcmTagSize]
	tag := sealed[len(sealed)-gcmTagSize:]

	return models.EncryptedPayload{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		IV:         base64.StdEncoding.EncodeToString(iv),
		Tag:        base64.StdEncoding.EncodeToString(tag),
	}, nil
}

// DecryptMessage reverses EncryptMessage. Any malformed field or a tag
// mismatch yields an error; callers decide whether the row is dropped or
// replaced by a placeholder.
func DecryptMessage(key []byte, payload models.EncryptedPayload) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(payload.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("invalid ciphertext encoding: %w", err)
	}
	iv, err := base64.StdEncoding.DecodeString(payload.IV)
	if err != nil {
		return "", fmt.Errorf("invalid iv encoding: %w", err)
	}
	tag, err := base64.StdEncoding.DecodeString(payload.Tag)
	if err != nil {
		return "", fmt.Errorf("invalid tag encoding: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to init GCM: %w", err)
	}
	if len(iv) != gcm.NonceSize() {
		return "", errors.New("invalid iv length")
	}

	plaintext, err := gcm.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("decrypt failed: %w", err)
	}
	return string(plaintext), nil
}
