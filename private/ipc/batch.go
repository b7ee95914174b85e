package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

// ReceiptRequest asks for one transaction receipt, tagged with a caller key
// so responses can be correlated.
type ReceiptRequest struct {
	Hash string
	Key  string
}

// ReceiptResponse carries one receipt or its retrieval error.
type ReceiptResponse struct {
	Receipt *types.Receipt
	Err     error
	Key     string
}

// BlockResponse carries one parsed block or its retrieval error.
type BlockResponse struct {
	Number int64
	Block  *Block
	Err    error
}

// BatchClient fetches receipts and blocks with JSON-RPC batch calls,
// degrading to individual calls when the batch itself fails.
type BatchClient struct {
	rpc *rpc.Client
}

// NewBatchClient wraps an existing RPC connection.
func NewBatchClient(rpcClient *rpc.Client) *BatchClient {
	return &BatchClient{rpc: rpcClient}
}

// TransactionReceipts fetches the receipts for all requests. Items failing
// individually carry their own error; a missing receipt maps to
// ethereum.NotFound.
func (bc *BatchClient) TransactionReceipts(ctx context.Context, requests []ReceiptRequest) ([]ReceiptResponse, error) {
	batch := make([]rpc.BatchElem, len(requests))
	receipts := make([]*types.Receipt, len(requests))
	for i, req := range requests {
		receipts[i] = new(types.Receipt)
		batch[i] = rpc.BatchElem{
			Method: "eth_getTransactionReceipt",
			Args:   []any{normalizeHash(req.Hash)},
			Result: receipts[i],
		}
	}

	if err := bc.rpc.BatchCallContext(ctx, batch); err != nil {
		logger.Debugf("batch receipt call failed, falling back to individual calls: %s", err)
		return bc.receiptsIndividually(ctx, requests), nil
	}

	responses := make([]ReceiptResponse, len(requests))
	for i, req := range requests {
		resp := ReceiptResponse{Key: req.Key}
		switch {
		case batch[i].Error != nil:
			resp.Err = batch[i].Error
		case receipts[i] == nil || receipts[i].TxHash == (common.Hash{}):
			resp.Err = fmt.Errorf("transaction %s: %w", req.Hash, ethereum.NotFound)
		default:
			resp.Receipt = receipts[i]
		}
		responses[i] = resp
	}
	return responses, nil
}

func (bc *BatchClient) receiptsIndividually(ctx context.Context, requests []ReceiptRequest) []ReceiptResponse {
	responses := make([]ReceiptResponse, len(requests))
	for i, req := range requests {
		receipt := new(types.Receipt)
		err := bc.rpc.CallContext(ctx, receipt, "eth_getTransactionReceipt", normalizeHash(req.Hash))
		resp := ReceiptResponse{Key: req.Key}
		switch {
		case err != nil:
			resp.Err = err
		case receipt.TxHash == (common.Hash{}):
			resp.Err = fmt.Errorf("transaction %s: %w", req.Hash, ethereum.NotFound)
		default:
			resp.Receipt = receipt
		}
		responses[i] = resp
	}
	return responses
}

// Blocks fetches the given block numbers with full transactions. A negative
// number requests the latest block.
func (bc *BatchClient) Blocks(ctx context.Context, blockNumbers []int64) ([]BlockResponse, error) {
	batch := make([]rpc.BatchElem, len(blockNumbers))
	raws := make([]json.RawMessage, len(blockNumbers))
	for i, number := range blockNumbers {
		batch[i] = rpc.BatchElem{
			Method: "eth_getBlockByNumber",
			Args:   []any{blockNumberArg(number), true},
			Result: &raws[i],
		}
	}

	if err := bc.rpc.BatchCallContext(ctx, batch); err != nil {
		logger.Debugf("batch block call failed, falling back to individual calls: %s", err)
		return bc.blocksIndividually(ctx, blockNumbers), nil
	}

	responses := make([]BlockResponse, len(blockNumbers))
	for i, number := range blockNumbers {
		resp := BlockResponse{Number: number}
		if batch[i].Error != nil {
			resp.Err = batch[i].Error
		} else {
			resp.Block, resp.Err = parseBlockResponse(number, raws[i])
		}
		responses[i] = resp
	}
	return responses, nil
}

func (bc *BatchClient) blocksIndividually(ctx context.Context, blockNumbers []int64) []BlockResponse {
	responses := make([]BlockResponse, len(blockNumbers))
	for i, number := range blockNumbers {
		var raw json.RawMessage
		err := bc.rpc.CallContext(ctx, &raw, "eth_getBlockByNumber", blockNumberArg(number), true)
		resp := BlockResponse{Number: number, Err: err}
		if err == nil {
			resp.Block, resp.Err = parseBlockResponse(number, raw)
		}
		responses[i] = resp
	}
	return responses
}

func parseBlockResponse(number int64, raw json.RawMessage) (*Block, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("block %d: %w", number, ErrBlockNotFound)
	}
	block, err := ParseBlock(raw)
	if errors.Is(err, ErrBlockNotFound) {
		return nil, fmt.Errorf("block %d: %w", number, ErrBlockNotFound)
	}
	return block, err
}

func blockNumberArg(number int64) string {
	if number < 0 {
		return "latest"
	}
	return hexutil.EncodeUint64(uint64(number))
}

func normalizeHash(hash string) string {
	if !strings.HasPrefix(hash, "0x") {
		return "0x" + hash
	}
	return hash
}
