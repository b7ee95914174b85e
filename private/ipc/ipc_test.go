package ipc

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPrivateKey = "0xf4a2b939592564feb35ab10a8e04f6f2fe0943579fb3c9c33505298978b74893"

func TestParsePrivateKey(t *testing.T) {
	withPrefix, err := ParsePrivateKey(testPrivateKey)
	require.NoError(t, err)

	withoutPrefix, err := ParsePrivateKey(testPrivateKey[2:])
	require.NoError(t, err)
	assert.Equal(t, withPrefix.D, withoutPrefix.D)

	_, err = ParsePrivateKey("not-a-key")
	require.Error(t, err)
}

func TestGenerateNonce(t *testing.T) {
	a, err := GenerateNonce()
	require.NoError(t, err)
	b, err := GenerateNonce()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.LessOrEqual(t, a.BitLen(), 256)
}

func TestCalculateBucketID(t *testing.T) {
	address := "0x4e7B1E9c3214C973Ff2fc680A9789E8579a5eD9d"

	id, err := CalculateBucketID("my-bucket", address)
	require.NoError(t, err)

	same, err := CalculateBucketID("my-bucket", address)
	require.NoError(t, err)
	assert.Equal(t, id, same)

	// mixed case address must not change the identifier
	lower, err := CalculateBucketID("my-bucket", "0x4e7b1e9c3214c973ff2fc680a9789e8579a5ed9d")
	require.NoError(t, err)
	assert.Equal(t, id, lower)

	other, err := CalculateBucketID("other-bucket", address)
	require.NoError(t, err)
	assert.NotEqual(t, id, other)

	_, err = CalculateBucketID("my-bucket", "0x1234")
	require.Error(t, err)
}

func TestCalculateFileID(t *testing.T) {
	bucketID, err := CalculateBucketID("my-bucket", "0x4e7B1E9c3214C973Ff2fc680A9789E8579a5eD9d")
	require.NoError(t, err)

	fileID := CalculateFileID(bucketID, "file.txt")
	assert.Equal(t, fileID, CalculateFileID(bucketID, "file.txt"))
	assert.NotEqual(t, fileID, CalculateFileID(bucketID, "other.txt"))
}

func TestSignBlockRoundTrip(t *testing.T) {
	privateKey, err := ParsePrivateKey(testPrivateKey)
	require.NoError(t, err)
	signer := crypto.PubkeyToAddress(privateKey.PublicKey)

	nonce, err := GenerateNonce()
	require.NoError(t, err)

	data := StorageData{
		ChunkCID:   []byte{0x86, 0xb2, 0x58, 0x12, 0x7d, 0x59, 0x9e, 0xb7},
		BlockCID:   [32]byte{0xc0, 0x06, 0x12},
		ChunkIndex: big.NewInt(0),
		BlockIndex: 1,
		NodeID:     [32]byte{0x5a, 0x60},
		Nonce:      nonce,
		Deadline:   1759859212,
		BucketID:   [32]byte{0x93, 0x0c},
	}
	contract := common.HexToAddress("0x4e7B1E9c3214C973Ff2fc680A9789E8579a5eD9d")

	signature, err := SignBlock(testPrivateKey, contract, 31337, data)
	require.NoError(t, err)
	require.Len(t, signature, 65)
	assert.GreaterOrEqual(t, signature[64], byte(27))

	recovered, err := RecoverBlockSigner(signature, contract, 31337, data)
	require.NoError(t, err)
	assert.Equal(t, signer, recovered)
}

func TestSignBlockDomainBindsContract(t *testing.T) {
	nonce, err := GenerateNonce()
	require.NoError(t, err)

	data := StorageData{
		ChunkCID:   []byte{0x01},
		ChunkIndex: big.NewInt(4),
		Nonce:      nonce,
		Deadline:   1700000000,
	}

	sigA, err := SignBlock(testPrivateKey, common.HexToAddress("0x4e7B1E9c3214C973Ff2fc680A9789E8579a5eD9d"), 31337, data)
	require.NoError(t, err)
	sigB, err := SignBlock(testPrivateKey, common.HexToAddress("0x23618e81E3f5cdF7f54C3d65f7FBc0aBf5B21E8f"), 31337, data)
	require.NoError(t, err)

	assert.NotEqual(t, sigA, sigB)
}
