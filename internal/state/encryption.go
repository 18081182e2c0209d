package state

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	// EncryptionKeyEnvVar holds the passphrase used to encrypt the ledger.
	EncryptionKeyEnvVar = "ANFCTL_LEDGER_ENCRYPTION_KEY"

	encryptedHeader = "# ANFCTL_ENCRYPTED_LEDGER\n"
)

// ErrNoEncryptionKey is returned when an encrypted ledger is read without a
// passphrase.
var ErrNoEncryptionKey = fmt.Errorf("ledger is encrypted but %s is not set", EncryptionKeyEnvVar)

// EncryptionKeyFromEnv returns the passphrase configured in the environment.
func EncryptionKeyFromEnv() string {
	return os.Getenv(EncryptionKeyEnvVar)
}

// Encrypt seals content with AES-256-GCM under a key derived from
// passphrase. An empty passphrase leaves content untouched.
func Encrypt(content []byte, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return content, nil
	}

	gcm, err := newGCM(passphrase)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, content, nil)
	return []byte(encryptedHeader + base64.StdEncoding.EncodeToString(sealed) + "\n"), nil
}

// Decrypt reverses Encrypt. Content without the encryption header is
// returned as is.
func Decrypt(content []byte, passphrase string) ([]byte, error) {
	if !IsEncrypted(content) {
		return content, nil
	}
	if passphrase == "" {
		return nil, ErrNoEncryptionKey
	}

	encoded := strings.TrimSpace(strings.TrimPrefix(string(content), encryptedHeader))
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encrypted ledger: %w", err)
	}

	gcm, err := newGCM(passphrase)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt ledger (wrong key?): %w", err)
	}
	return plaintext, nil
}

// IsEncrypted checks for the encryption header.
func IsEncrypted(content []byte) bool {
	return strings.HasPrefix(string(content), encryptedHeader)
}

func newGCM(passphrase string) (cipher.AEAD, error) {
	key := sha256.Sum256([]byte(passphrase))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
