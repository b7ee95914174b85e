package ipc

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ipfs/go-cid"
)

// contract method selectors are 4 bytes long.
const methodSelectorLen = 4

// addFileChunkABI covers the two chunk-append methods of the storage
// contract; enough to decode their calldata.
const addFileChunkABI = `[
	{
		"type": "function",
		"name": "addFileChunk",
		"inputs": [
			{"name": "chunkCID", "type": "bytes"},
			{"name": "bucketId", "type": "bytes32"},
			{"name": "fileName", "type": "string"},
			{"name": "encodedChunkSize", "type": "uint256"},
			{"name": "cids", "type": "bytes32[]"},
			{"name": "chunkBlocksSizes", "type": "uint256[]"},
			{"name": "chunkIndex", "type": "uint256"}
		]
	},
	{
		"type": "function",
		"name": "addFileChunks",
		"inputs": [
			{"name": "cids", "type": "bytes[]"},
			{"name": "bucketId", "type": "bytes32"},
			{"name": "fileName", "type": "string"},
			{"name": "encodedChunkSizes", "type": "uint256[]"},
			{"name": "chunkBlocksCIDs", "type": "bytes32[][]"},
			{"name": "chunkBlockSizes", "type": "uint256[][]"},
			{"name": "startingChunkIndex", "type": "uint256"}
		]
	}
]`

// AddChunkTransactionData is a decoded addFileChunk calldata entry.
type AddChunkTransactionData struct {
	CID         cid.Cid
	BucketID    [32]byte
	FileName    string
	EncodedSize uint64
	BlockCIDs   []cid.Cid
	BlockSizes  []uint64
	Index       uint64
}

// FromByteArrayCID rebuilds a CIDv1 dag-pb sha2-256 CID from the bare
// 32-byte digest the contract stores.
func FromByteArrayCID(digest [32]byte) (cid.Cid, error) {
	// version, dag-pb codec, sha2-256 multihash header
	raw := append([]byte{0x01, 0x70, 0x12, 0x20}, digest[:]...)
	c, err := cid.Cast(raw)
	if err != nil {
		return cid.Undef, fmt.Errorf("failed to rebuild CID from digest: %w", err)
	}
	return c, nil
}

// ParseAddChunkTx decodes an addFileChunk transaction's calldata.
func ParseAddChunkTx(txData []byte) (*AddChunkTransactionData, error) {
	args, err := unpackMethod("addFileChunk", txData)
	if err != nil {
		return nil, err
	}

	chunkCID, err := cid.Cast(args["chunkCID"].([]byte))
	if err != nil {
		return nil, fmt.Errorf("invalid chunk CID: %w", err)
	}

	blockHashes := args["cids"].([][32]byte)
	blockSizes := bigsToUints(args["chunkBlocksSizes"].([]*big.Int))
	if len(blockHashes) != len(blockSizes) {
		return nil, fmt.Errorf("mismatched block CIDs and sizes lengths")
	}

	blockCIDs := make([]cid.Cid, 0, len(blockHashes))
	for _, digest := range blockHashes {
		c, err := FromByteArrayCID(digest)
		if err != nil {
			return nil, err
		}
		blockCIDs = append(blockCIDs, c)
	}

	return &AddChunkTransactionData{
		CID:         chunkCID,
		BucketID:    args["bucketId"].([32]byte),
		FileName:    args["fileName"].(string),
		EncodedSize: args["encodedChunkSize"].(*big.Int).Uint64(),
		BlockCIDs:   blockCIDs,
		BlockSizes:  blockSizes,
		Index:       args["chunkIndex"].(*big.Int).Uint64(),
	}, nil
}

// ParseAddChunksTx decodes an addFileChunks transaction's calldata into one
// entry per chunk.
func ParseAddChunksTx(txData []byte) ([]AddChunkTransactionData, error) {
	args, err := unpackMethod("addFileChunks", txData)
	if err != nil {
		return nil, err
	}

	chunkCIDs := args["cids"].([][]byte)
	bucketID := args["bucketId"].([32]byte)
	fileName := args["fileName"].(string)
	encodedSizes := args["encodedChunkSizes"].([]*big.Int)
	blockHashes := args["chunkBlocksCIDs"].([][][32]byte)
	blockSizes := args["chunkBlockSizes"].([][]*big.Int)
	startingIndex := args["startingChunkIndex"].(*big.Int).Uint64()

	chunks := make([]AddChunkTransactionData, 0, len(chunkCIDs))
	for i := range chunkCIDs {
		chunkCID, err := cid.Cast(chunkCIDs[i])
		if err != nil {
			return nil, fmt.Errorf("invalid chunk CID at %d: %w", i, err)
		}

		sizes := bigsToUints(blockSizes[i])
		if len(blockHashes[i]) != len(sizes) {
			return nil, fmt.Errorf("mismatched block CIDs and sizes for chunk %d", i)
		}

		blockCIDs := make([]cid.Cid, 0, len(blockHashes[i]))
		for _, digest := range blockHashes[i] {
			c, err := FromByteArrayCID(digest)
			if err != nil {
				return nil, err
			}
			blockCIDs = append(blockCIDs, c)
		}

		chunks = append(chunks, AddChunkTransactionData{
			CID:         chunkCID,
			BucketID:    bucketID,
			FileName:    fileName,
			EncodedSize: encodedSizes[i].Uint64(),
			BlockCIDs:   blockCIDs,
			BlockSizes:  sizes,
			Index:       startingIndex + uint64(i),
		})
	}
	return chunks, nil
}

func unpackMethod(name string, txData []byte) (map[string]any, error) {
	if len(txData) < methodSelectorLen {
		return nil, fmt.Errorf("invalid transaction data length")
	}

	parsed, err := abi.JSON(strings.NewReader(addFileChunkABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI: %w", err)
	}
	method, ok := parsed.Methods[name]
	if !ok {
		return nil, fmt.Errorf("method %s not found in ABI", name)
	}

	args := make(map[string]any)
	if err := method.Inputs.UnpackIntoMap(args, txData[methodSelectorLen:]); err != nil {
		return nil, fmt.Errorf("failed to decode %s calldata: %w", name, err)
	}
	return args, nil
}

func bigsToUints(values []*big.Int) []uint64 {
	out := make([]uint64, 0, len(values))
	for _, v := range values {
		out = append(out, v.Uint64())
	}
	return out
}
