package utils

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
}

func TestSecretCipherRoundTrip(t *testing.T) {
	c, err := NewSecretCipher(testKey())
	require.NoError(t, err)

	sealed, err := c.Encrypt("shared-secret")
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "shared-secret")

	plain, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "shared-secret", plain)
}

func TestSecretCipherRejectsTamperedCiphertext(t *testing.T) {
	c, err := NewSecretCipher(testKey())
	require.NoError(t, err)

	sealed, err := c.Encrypt("shared-secret")
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = c.Decrypt(sealed)
	assert.Error(t, err)

	_, err = c.Decrypt([]byte("short"))
	assert.Error(t, err)
}

func TestNewSecretCipherValidatesKey(t *testing.T) {
	_, err := NewSecretCipher("")
	assert.Error(t, err)

	_, err = NewSecretCipher("not base64!")
	assert.Error(t, err)

	_, err = NewSecretCipher(base64.StdEncoding.EncodeToString([]byte("too short")))
	assert.Error(t, err)
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret(32)
	require.NoError(t, err)
	b, err := GenerateSecret(32)
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}
