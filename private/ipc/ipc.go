package ipc

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// StorageData is the payload a storage node must present to the contract to
// prove it was asked to hold a block.
type StorageData struct {
	ChunkCID   []byte
	BlockCID   [32]byte
	ChunkIndex *big.Int
	BlockIndex uint8
	NodeID     [32]byte
	Nonce      *big.Int
	Deadline   int64
	BucketID   [32]byte
}

// GenerateNonce returns a random 256-bit nonce.
func GenerateNonce() (*big.Int, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return new(big.Int).SetBytes(b), nil
}

// CalculateBucketID derives the contract's bucket identifier:
// keccak256(bucketName || ownerAddress).
func CalculateBucketID(bucketName, address string) ([32]byte, error) {
	addr := strings.TrimPrefix(strings.ToLower(address), "0x")
	if len(addr) != 40 {
		return [32]byte{}, fmt.Errorf("address must be a 20-byte hex string")
	}
	addressBytes, err := hexutil.Decode("0x" + addr)
	if err != nil {
		return [32]byte{}, fmt.Errorf("invalid address: %w", err)
	}

	return crypto.Keccak256Hash([]byte(bucketName), addressBytes), nil
}

// CalculateFileID derives the contract's file identifier:
// keccak256(bucketID || fileName).
func CalculateFileID(bucketID [32]byte, name string) [32]byte {
	return crypto.Keccak256Hash(bucketID[:], []byte(name))
}

var storageDataTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"StorageData": {
		{Name: "chunkCID", Type: "bytes"},
		{Name: "blockCID", Type: "bytes32"},
		{Name: "chunkIndex", Type: "uint256"},
		{Name: "blockIndex", Type: "uint8"},
		{Name: "nodeId", Type: "bytes32"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
		{Name: "bucketId", Type: "bytes32"},
	},
}

func storageTypedData(storageAddress common.Address, chainID int64, data StorageData) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       storageDataTypes,
		PrimaryType: "StorageData",
		Domain: apitypes.TypedDataDomain{
			Name:              "Storage",
			Version:           "1",
			ChainId:           math.NewHexOrDecimal256(chainID),
			VerifyingContract: storageAddress.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"chunkCID":   hexutil.Encode(data.ChunkCID),
			"blockCID":   hexutil.Encode(data.BlockCID[:]),
			"chunkIndex": (*math.HexOrDecimal256)(data.ChunkIndex),
			"blockIndex": fmt.Sprintf("%d", data.BlockIndex),
			"nodeId":     hexutil.Encode(data.NodeID[:]),
			"nonce":      (*math.HexOrDecimal256)(data.Nonce),
			"deadline":   math.NewHexOrDecimal256(data.Deadline),
			"bucketId":   hexutil.Encode(data.BucketID[:]),
		},
	}
}

// SignBlock signs data with the EIP-712 domain of the storage contract. The
// returned signature uses the contract-style recovery id (27/28).
func SignBlock(privateKeyHex string, storageAddress common.Address, chainID int64, data StorageData) ([]byte, error) {
	privateKey, err := ParsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}

	typedData := storageTypedData(storageAddress, chainID, data)
	sighash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("failed to hash typed data: %w", err)
	}

	signature, err := crypto.Sign(sighash, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign storage data: %w", err)
	}
	if signature[64] < 27 {
		signature[64] += 27
	}
	return signature, nil
}

// RecoverBlockSigner returns the address that produced a SignBlock
// signature over data.
func RecoverBlockSigner(signature []byte, storageAddress common.Address, chainID int64, data StorageData) (common.Address, error) {
	if len(signature) != 65 {
		return common.Address{}, fmt.Errorf("expected 65-byte signature, got %d", len(signature))
	}

	typedData := storageTypedData(storageAddress, chainID, data)
	sighash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to hash typed data: %w", err)
	}

	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pub, err := crypto.SigToPub(sighash, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
