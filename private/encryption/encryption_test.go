package encryption

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey(t *testing.T) {
	parent := []byte("parent_key")

	key, err := DeriveKey(parent, "bucket", "file.txt")
	require.NoError(t, err)
	assert.Len(t, key, KeySize)

	same, err := DeriveKey(parent, "bucket", "file.txt")
	require.NoError(t, err)
	assert.Equal(t, key, same)

	other, err := DeriveKey(parent, "bucket", "other.txt")
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestDeriveKeyEmptyParent(t *testing.T) {
	_, err := DeriveKey(nil, "info")
	require.Error(t, err)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)

	data := []byte("some file data")
	aad := []byte("dag_encryption")

	sealed, err := Encrypt(key, data, aad)
	require.NoError(t, err)
	assert.Equal(t, len(data)+Overhead, len(sealed))

	plain, err := Decrypt(key, sealed, aad)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, plain))
}

func TestDecryptWrongAAD(t *testing.T) {
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)

	sealed, err := Encrypt(key, []byte("payload"), []byte("good"))
	require.NoError(t, err)

	_, err = Decrypt(key, sealed, []byte("bad"))
	require.Error(t, err)
}

func TestDecryptTruncated(t *testing.T) {
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)

	_, err = Decrypt(key, []byte{0x01, 0x02}, nil)
	require.Error(t, err)
}
