package sdk

import (
	"bytes"
	"fmt"

	"github.com/klauspost/reedsolomon"
)

// ErasureCode wraps a Reed-Solomon codec sized for a file's block layout.
type ErasureCode struct {
	DataBlocks   int
	ParityBlocks int

	enc reedsolomon.Encoder
}

// NewErasureCode builds a codec with the given data and parity shard
// counts, both of which must be positive.
func NewErasureCode(dataBlocks, parityBlocks int) (*ErasureCode, error) {
	if dataBlocks <= 0 || parityBlocks <= 0 {
		return nil, fmt.Errorf("data and parity shards must be > 0")
	}
	enc, err := reedsolomon.New(dataBlocks, parityBlocks)
	if err != nil {
		return nil, fmt.Errorf("failed to create erasure encoder: %w", err)
	}
	return &ErasureCode{
		DataBlocks:   dataBlocks,
		ParityBlocks: parityBlocks,
		enc:          enc,
	}, nil
}

// TotalBlocks is the shard count per encoded stripe.
func (e *ErasureCode) TotalBlocks() int {
	return e.DataBlocks + e.ParityBlocks
}

// Encode splits data into equally sized data shards and appends parity
// shards.
func (e *ErasureCode) Encode(data []byte) ([][]byte, error) {
	shards, err := e.enc.Split(data)
	if err != nil {
		return nil, fmt.Errorf("failed to split data into shards: %w", err)
	}
	if err := e.enc.Encode(shards); err != nil {
		return nil, fmt.Errorf("erasure coding failed: %w", err)
	}
	return shards, nil
}

// Verify reports whether the parity shards are consistent with the data
// shards.
func (e *ErasureCode) Verify(shards [][]byte) bool {
	ok, err := e.enc.Verify(shards)
	return err == nil && ok
}

// Reconstruct rebuilds missing shards in place. Missing shards are passed
// as nil or empty slices.
func (e *ErasureCode) Reconstruct(shards [][]byte) ([][]byte, error) {
	for i, shard := range shards {
		if len(shard) == 0 {
			shards[i] = nil
		}
	}
	if err := e.enc.Reconstruct(shards); err != nil {
		return nil, fmt.Errorf("reconstruction failed: %w", err)
	}
	return shards, nil
}

// ExtractData joins shards back into the original payload, reconstructing
// damaged shards first when verification fails.
func (e *ErasureCode) ExtractData(shards [][]byte, originalDataSize int) ([]byte, error) {
	if !e.Verify(shards) {
		var err error
		shards, err = e.Reconstruct(shards)
		if err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := e.enc.Join(&buf, shards, originalDataSize); err != nil {
		return nil, fmt.Errorf("data extraction failed: %w", err)
	}
	return buf.Bytes(), nil
}
