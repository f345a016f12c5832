package crypto

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testIterations keeps key derivation fast in tests.
const testIterations = 1000

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := encryptSecret("  sk-live-123  ", "hunter2", testIterations)
	require.NoError(t, err)

	var stored encryptedSecretJSON
	require.NoError(t, json.Unmarshal(blob, &stored))
	assert.Equal(t, currentVersion, stored.Version)
	assert.Equal(t, testIterations, stored.Iterations)
	assert.NotContains(t, string(blob), "sk-live-123")

	got, err := DecryptSecret(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "sk-live-123", got)
}

func TestEncryptUsesFreshSaltAndNonce(t *testing.T) {
	a, err := encryptSecret("key", "pw", testIterations)
	require.NoError(t, err)
	b, err := encryptSecret("key", "pw", testIterations)
	require.NoError(t, err)
	assert.NotEqual(t, string(a), string(b))
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := encryptSecret("key", "right", testIterations)
	require.NoError(t, err)

	_, err = DecryptSecret(blob, "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong password")
}

func TestEncryptRejectsEmptyInputs(t *testing.T) {
	_, err := EncryptSecret("key", "")
	assert.Error(t, err)
	_, err = EncryptSecret("   ", "pw")
	assert.Error(t, err)
	_, err = DecryptSecret([]byte(`{}`), "")
	assert.Error(t, err)
}

func TestDecryptRejectsBadBlobs(t *testing.T) {
	_, err := DecryptSecret([]byte("not json"), "pw")
	assert.ErrorContains(t, err, "parsing")

	_, err = DecryptSecret([]byte(`{"version":9}`), "pw")
	assert.ErrorContains(t, err, "unsupported version 9")

	_, err = DecryptSecret([]byte(`{"version":1,"salt":"!!","nonce":"","ciphertext":""}`), "pw")
	assert.ErrorContains(t, err, "decoding salt")
}

func TestLoadSecret(t *testing.T) {
	got, err := LoadSecret(SecretConfig{Plain: " plain ", EncryptedPath: "/nope"})
	require.NoError(t, err)
	assert.Equal(t, "plain", got)

	_, err = LoadSecret(SecretConfig{})
	assert.ErrorIs(t, err, ErrNoSecretSource)

	path := filepath.Join(t.TempDir(), "api-key.json")
	blob, err := encryptSecret("from-file", "pw", testIterations)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err = LoadSecret(SecretConfig{EncryptedPath: path, Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "from-file", got)

	_, err = LoadSecret(SecretConfig{EncryptedPath: filepath.Join(t.TempDir(), "missing"), Password: "pw"})
	assert.ErrorContains(t, err, "reading encrypted secret file")
}
