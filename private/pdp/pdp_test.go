package pdp

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestConfigFromEnv(t *testing.T) {
	t.Setenv("PDP_PRIVATE_KEY", "0xdeadbeef")
	t.Setenv("PDP_SERVER_URL", "http://localhost:8000")

	cfg := TestConfigFromEnv()
	assert.Equal(t, "0xdeadbeef", cfg.PrivateKey)
	assert.Equal(t, "http://localhost:8000", cfg.ServerURL)
}

func TestTestConfigFromEnvOmit(t *testing.T) {
	t.Setenv("PDP_PRIVATE_KEY", "omit")
	assert.Empty(t, TestConfigFromEnv().PrivateKey)

	t.Setenv("PDP_PRIVATE_KEY", "OMIT")
	assert.Empty(t, TestConfigFromEnv().PrivateKey)

	t.Setenv("PDP_PRIVATE_KEY", "")
	assert.Empty(t, TestConfigFromEnv().PrivateKey)
}

func TestCalculatePieceCID(t *testing.T) {
	data := make([]byte, 1024)
	_, err := rand.Read(data)
	require.NoError(t, err)

	pieceCid, err := CalculatePieceCID(data)
	require.NoError(t, err)
	assert.NotEmpty(t, pieceCid.String())

	// same payload, same commitment
	again, err := CalculatePieceCID(data)
	require.NoError(t, err)
	assert.True(t, pieceCid.Equals(again))

	other := bytes.Repeat([]byte{0x7f}, 1024)
	otherCid, err := CalculatePieceCID(other)
	require.NoError(t, err)
	assert.False(t, pieceCid.Equals(otherCid))
}

func TestCalculatePieceCIDTooSmall(t *testing.T) {
	// the commitment hasher needs a minimum payload
	_, err := CalculatePieceCID([]byte("tiny"))
	require.Error(t, err)
}
