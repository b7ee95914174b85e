package sdk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewErasureCodeInvalid(t *testing.T) {
	_, err := NewErasureCode(0, 2)
	require.Error(t, err)

	_, err = NewErasureCode(4, 0)
	require.Error(t, err)

	_, err = NewErasureCode(-1, -1)
	require.Error(t, err)
}

func TestErasureCodeRoundTrip(t *testing.T) {
	ec, err := NewErasureCode(4, 2)
	require.NoError(t, err)
	assert.Equal(t, 6, ec.TotalBlocks())

	data := randomBytes(t, 1000)
	shards, err := ec.Encode(data)
	require.NoError(t, err)
	require.Len(t, shards, 6)

	assert.True(t, ec.Verify(shards))

	out, err := ec.ExtractData(shards, len(data))
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestErasureCodeReconstruct(t *testing.T) {
	ec, err := NewErasureCode(4, 2)
	require.NoError(t, err)

	data := randomBytes(t, 1000)
	shards, err := ec.Encode(data)
	require.NoError(t, err)

	// lose as many shards as there is parity
	shards[0] = nil
	shards[5] = nil
	assert.False(t, ec.Verify(shards))

	out, err := ec.ExtractData(shards, len(data))
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestErasureCodeTooManyLost(t *testing.T) {
	ec, err := NewErasureCode(4, 2)
	require.NoError(t, err)

	shards, err := ec.Encode(randomBytes(t, 1000))
	require.NoError(t, err)

	shards[0] = nil
	shards[1] = nil
	shards[2] = nil

	_, err = ec.ExtractData(shards, 1000)
	require.Error(t, err)
}
