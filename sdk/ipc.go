package sdk

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	cid "github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"

	"github.com/akave-ai/akavesdk/private/ipc"
)

// IPC exposes the on-chain side of the SDK: identifier derivation, block
// upload authorization and transaction tracking against the storage
// contract.
type IPC struct {
	client     *ipc.Client
	batch      *ipc.BatchClient
	privateKey string
}

// IPC dials the chain node and binds the signing key. The SDK's private key
// is used when the config does not carry one.
func (s *SDK) IPC(ctx context.Context, config ipc.Config) (*IPC, error) {
	if config.PrivateKey == "" {
		config.PrivateKey = s.privateKey
	}
	if config.PrivateKey == "" {
		return nil, fmt.Errorf("private key is required for on-chain operations")
	}

	client, err := ipc.Dial(ctx, config)
	if err != nil {
		return nil, err
	}
	return &IPC{
		client:     client,
		batch:      ipc.NewBatchClient(client.RPC),
		privateKey: config.PrivateKey,
	}, nil
}

// Close releases the chain connection.
func (a *IPC) Close() {
	a.client.Close()
}

// Address returns the account the IPC layer signs with.
func (a *IPC) Address() common.Address {
	return a.client.Address()
}

// BucketID derives the on-chain bucket identifier for the signing account.
func (a *IPC) BucketID(name string) ([32]byte, error) {
	if len(name) < MinBucketNameLength {
		return [32]byte{}, fmt.Errorf("invalid bucket name %q, must be at least %d characters", name, MinBucketNameLength)
	}
	return ipc.CalculateBucketID(name, a.client.Address().Hex())
}

// FileID derives the on-chain file identifier inside a bucket.
func (a *IPC) FileID(bucketName, fileName string) ([32]byte, error) {
	bucketID, err := a.BucketID(bucketName)
	if err != nil {
		return [32]byte{}, err
	}
	return ipc.CalculateFileID(bucketID, fileName), nil
}

// SignBlockUpload produces the storage contract's EIP-712 authorization for
// one block of a chunk.
func (a *IPC) SignBlockUpload(chunk IPCFileChunkUpload, blockIndex int, nodeID [32]byte, deadline time.Time) ([]byte, error) {
	if blockIndex < 0 || blockIndex >= len(chunk.Blocks) {
		return nil, fmt.Errorf("block index %d out of range, chunk has %d blocks", blockIndex, len(chunk.Blocks))
	}

	blockCID, err := blockDigest(chunk.Blocks[blockIndex].CID)
	if err != nil {
		return nil, err
	}
	nonce, err := ipc.GenerateNonce()
	if err != nil {
		return nil, err
	}

	data := ipc.StorageData{
		ChunkCID:   chunk.ChunkCID.Bytes(),
		BlockCID:   blockCID,
		ChunkIndex: new(big.Int).SetUint64(chunk.Index),
		BlockIndex: uint8(blockIndex),
		NodeID:     nodeID,
		Nonce:      nonce,
		Deadline:   deadline.Unix(),
		BucketID:   chunk.BucketID,
	}
	return ipc.SignBlock(a.privateKey, a.client.Addresses.Storage, a.client.ChainID().Int64(), data)
}

// WaitForUploads blocks until every pending chunk transaction of the upload
// is mined, marking confirmed chunks as uploaded.
func (a *IPC) WaitForUploads(ctx context.Context, state *UploadState) error {
	for _, pending := range state.ListPreCreatedChunks() {
		if pending.Transaction == nil {
			continue
		}
		if _, err := a.client.WaitForTx(ctx, pending.Transaction.Hash()); err != nil {
			return fmt.Errorf("chunk %d: %w", pending.FileUploadChunk.Index, err)
		}
		state.ChunkUploaded(pending.FileUploadChunk)
	}
	return nil
}

// FileDownload assembles a file's chunk list from the chunk-append
// transactions found in the given block range, ordered by chunk index.
func (a *IPC) FileDownload(ctx context.Context, bucketName, fileName string, fromBlock, toBlock int64) (*IPCFileDownload, error) {
	bucketID, err := a.BucketID(bucketName)
	if err != nil {
		return nil, err
	}

	txChunks, err := a.FileChunks(ctx, bucketID, fileName, fromBlock, toBlock)
	if err != nil {
		return nil, err
	}

	chunks := make([]Chunk, 0, len(txChunks))
	for _, tc := range txChunks {
		var size uint64
		for _, blockSize := range tc.BlockSizes {
			size += blockSize
		}
		chunks = append(chunks, Chunk{
			CID:         tc.CID.String(),
			EncodedSize: tc.EncodedSize,
			Size:        size,
			Index:       tc.Index,
		})
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })

	return &IPCFileDownload{
		BucketName: bucketName,
		Name:       fileName,
		Chunks:     chunks,
	}, nil
}

// FileChunks scans a block range for the file's chunk-append transactions
// sent to the storage contract, in block order.
func (a *IPC) FileChunks(ctx context.Context, bucketID [32]byte, fileName string, fromBlock, toBlock int64) ([]ipc.AddChunkTransactionData, error) {
	if toBlock < fromBlock {
		return nil, fmt.Errorf("invalid block range [%d, %d]", fromBlock, toBlock)
	}

	numbers := make([]int64, 0, toBlock-fromBlock+1)
	for n := fromBlock; n <= toBlock; n++ {
		numbers = append(numbers, n)
	}

	responses, err := a.batch.Blocks(ctx, numbers)
	if err != nil {
		return nil, err
	}

	storageAddr := a.client.Addresses.Storage.Hex()
	var chunks []ipc.AddChunkTransactionData
	for _, resp := range responses {
		if resp.Err != nil || resp.Block == nil {
			continue
		}
		for _, tx := range resp.Block.Transactions {
			if !strings.EqualFold(tx.To, storageAddr) {
				continue
			}
			chunks = append(chunks, matchChunkTx(common.FromHex(tx.Input), bucketID, fileName)...)
		}
	}
	return chunks, nil
}

func matchChunkTx(input []byte, bucketID [32]byte, fileName string) []ipc.AddChunkTransactionData {
	if chunk, err := ipc.ParseAddChunkTx(input); err == nil {
		if chunk.BucketID == bucketID && chunk.FileName == fileName {
			return []ipc.AddChunkTransactionData{*chunk}
		}
		return nil
	}

	parsed, err := ipc.ParseAddChunksTx(input)
	if err != nil {
		return nil
	}
	var matched []ipc.AddChunkTransactionData
	for _, chunk := range parsed {
		if chunk.BucketID == bucketID && chunk.FileName == fileName {
			matched = append(matched, chunk)
		}
	}
	return matched
}

// blockDigest extracts the 32-byte sha2-256 digest the contract stores for
// a block CID.
func blockDigest(cidStr string) ([32]byte, error) {
	c, err := cid.Decode(cidStr)
	if err != nil {
		return [32]byte{}, fmt.Errorf("failed to decode block CID: %w", err)
	}
	decoded, err := mh.Decode(c.Hash())
	if err != nil {
		return [32]byte{}, fmt.Errorf("failed to decode block multihash: %w", err)
	}
	if len(decoded.Digest) != 32 {
		return [32]byte{}, fmt.Errorf("expected 32-byte digest, got %d", len(decoded.Digest))
	}

	var digest [32]byte
	copy(digest[:], decoded.Digest)
	return digest, nil
}
