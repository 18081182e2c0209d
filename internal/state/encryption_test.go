package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt_NoKey(t *testing.T) {
	content := []byte("version: 1\nserial: 0\n")

	encrypted, err := Encrypt(content, "")
	require.NoError(t, err)
	assert.Equal(t, content, encrypted)

	decrypted, err := Decrypt(content, "")
	require.NoError(t, err)
	assert.Equal(t, content, decrypted)
}

func TestEncryptDecrypt_WithKey(t *testing.T) {
	content := []byte("version: 1\nserial: 42\nlineage: test-uuid\n")

	encrypted, err := Encrypt(content, "my-secret")
	require.NoError(t, err)
	assert.NotEqual(t, content, encrypted)
	assert.True(t, IsEncrypted(encrypted))

	decrypted, err := Decrypt(encrypted, "my-secret")
	require.NoError(t, err)
	assert.Equal(t, content, decrypted)
}

func TestEncrypt_FreshNonce(t *testing.T) {
	a, err := Encrypt([]byte("same"), "k")
	require.NoError(t, err)
	b, err := Encrypt([]byte("same"), "k")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestIsEncrypted(t *testing.T) {
	assert.True(t, IsEncrypted([]byte("# ANFCTL_ENCRYPTED_LEDGER\nbase64data")))
	assert.False(t, IsEncrypted([]byte("version: 1\n")))
	assert.False(t, IsEncrypted(nil))
}

func TestDecrypt_WrongKey(t *testing.T) {
	encrypted, err := Encrypt([]byte("test data"), "correct")
	require.NoError(t, err)

	_, err = Decrypt(encrypted, "wrong")
	assert.Error(t, err)
}

func TestDecrypt_NoKey(t *testing.T) {
	encrypted, err := Encrypt([]byte("test data"), "some-key")
	require.NoError(t, err)

	_, err = Decrypt(encrypted, "")
	assert.ErrorIs(t, err, ErrNoEncryptionKey)
}

func TestDecrypt_Corrupt(t *testing.T) {
	_, err := Decrypt([]byte(encryptedHeader+"!!!not-base64"), "k")
	assert.Error(t, err)

	_, err = Decrypt([]byte(encryptedHeader+"AAAA"), "k")
	assert.Error(t, err)
}

func TestEncryptionKeyFromEnv(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "from-env")
	assert.Equal(t, "from-env", EncryptionKeyFromEnv())
}
