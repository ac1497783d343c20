package security_test

import (
	"testing"

	"github.com/Rrens/nl2sql/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptor_EncryptDecrypt(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}

	encryptor, err := security.NewEncryptor(key)
	require.NoError(t, err)

	tests := []struct {
		name      string
		plaintext string
	}{
		{"empty", ""},
		{"short", "hello"},
		{"json", `{"id":"s1","history":[{"sql":"SELECT 1"}]}`},
		{"unicode", "unicode: 日本語 한국어"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ciphertext, err := encryptor.Encrypt([]byte(tt.plaintext))
			require.NoError(t, err)
			assert.NotEqual(t, []byte(tt.plaintext), ciphertext)

			decrypted, err := encryptor.Decrypt(ciphertext)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, string(decrypted))
		})
	}
}

func TestNewEncryptor_InvalidKeyLength(t *testing.T) {
	for _, n := range []int{0, 8, 31, 33} {
		_, err := security.NewEncryptor(make([]byte, n))
		assert.Error(t, err, "key length %d", n)
	}
}

func TestNewEncryptorFromSecret(t *testing.T) {
	a, err := security.NewEncryptorFromSecret("a-long-enough-secret")
	require.NoError(t, err)
	b, err := security.NewEncryptorFromSecret("a-long-enough-secret")
	require.NoError(t, err)
	other, err := security.NewEncryptorFromSecret("another-secret")
	require.NoError(t, err)

	sealed, err := a.Encrypt([]byte("snapshot"))
	require.NoError(t, err)

	plain, err := b.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "snapshot", string(plain), "same secret derives the same key")

	_, err = other.Decrypt(sealed)
	assert.Error(t, err)

	_, err = security.NewEncryptorFromSecret("")
	assert.Error(t, err)
}

func TestEncryptor_SealOpen(t *testing.T) {
	enc, err := security.NewEncryptorFromSecret("secret")
	require.NoError(t, err)

	type payload struct {
		ID    string   `json:"id"`
		Items []string `json:"items"`
	}

	sealed, err := enc.Seal(payload{ID: "s1", Items: []string{"ORDERS"}})
	require.NoError(t, err)

	var got payload
	require.NoError(t, enc.Open(sealed, &got))
	assert.Equal(t, payload{ID: "s1", Items: []string{"ORDERS"}}, got)

	assert.Error(t, enc.Open([]byte("short"), &got))
}
