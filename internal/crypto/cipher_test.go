package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenCipher_RoundTrip(t *testing.T) {
	c, err := NewTokenCipher("test-secret-key", "test-salt")
	assert.NoError(t, err)

	t.Run("encrypt then decrypt returns original", func(t *testing.T) {
		tokens := []string{
			"AB11700000000XYZrefreshtoken123",
			"",
			"token with spaces and $pecial ch@rs",
		}
		for _, token := range tokens {
			ciphertext, err := c.Encrypt(token)
			assert.NoError(t, err)
			assert.NotEqual(t, token, ciphertext)

			plaintext, err := c.Decrypt(ciphertext)
			assert.NoError(t, err)
			assert.Equal(t, token, plaintext)
		}
	})

	t.Run("two encryptions of the same token differ", func(t *testing.T) {
		a, err := c.Encrypt("same-token")
		assert.NoError(t, err)
		b, err := c.Encrypt("same-token")
		assert.NoError(t, err)
		assert.NotEqual(t, a, b)
	})
}

func TestTokenCipher_RejectsForeignData(t *testing.T) {
	c, err := NewTokenCipher("test-secret-key", "test-salt")
	assert.NoError(t, err)

	t.Run("not base64", func(t *testing.T) {
		_, err := c.Decrypt("%%%not-base64%%%")
		assert.Error(t, err)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := c.Decrypt("c2hvcnQ=") // "short"
		assert.Error(t, err)
	})

	t.Run("encrypted under a different secret", func(t *testing.T) {
		other, err := NewTokenCipher("another-secret", "test-salt")
		assert.NoError(t, err)

		ciphertext, err := other.Encrypt("refresh-token")
		assert.NoError(t, err)

		_, err = c.Decrypt(ciphertext)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "decryption failed")
	})
}

func TestNewTokenCipher_RequiresSecret(t *testing.T) {
	_, err := NewTokenCipher("", "salt")
	assert.Error(t, err)

	_, err = NewTokenCipher("secret", "")
	assert.Error(t, err)
}
