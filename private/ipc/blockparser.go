package ipc

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrBlockNotFound is returned when the node answers null for a block.
var ErrBlockNotFound = errors.New("block not found")

// Block is the subset of an execution-layer block the SDK consumes.
// Quantity fields arrive hex-encoded and are decoded to integers.
type Block struct {
	Hash             string
	Number           int64
	ParentHash       string
	Nonce            string
	Miner            string
	Difficulty       *big.Int
	TotalDifficulty  *big.Int
	ExtraData        string
	Size             int64
	GasLimit         int64
	GasUsed          int64
	Timestamp        int64
	BaseFeePerGas    *big.Int
	MixHash          string
	TransactionsRoot string
	StateRoot        string
	ReceiptsRoot     string
	Transactions     []Transaction
	Uncles           []string
	Withdrawals      []gjson.Result
}

// Transaction is the subset of a transaction the SDK consumes.
type Transaction struct {
	Hash                 string
	Nonce                int64
	BlockHash            string
	BlockNumber          int64
	TransactionIndex     int64
	From                 string
	To                   string
	Value                *big.Int
	Gas                  int64
	GasPrice             *big.Int
	Input                string
	Type                 int64
	ChainID              int64
	MaxPriorityFeePerGas *big.Int
	MaxFeePerGas         *big.Int
}

// ParseBlock decodes an eth_getBlockByNumber JSON result. A JSON null means
// the block does not exist.
func ParseBlock(raw []byte) (*Block, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("invalid JSON")
	}
	parsed := gjson.ParseBytes(raw)
	if parsed.Type == gjson.Null {
		return nil, ErrBlockNotFound
	}

	block := &Block{
		Hash:             parsed.Get("hash").String(),
		Number:           hexInt(parsed.Get("number")),
		ParentHash:       parsed.Get("parentHash").String(),
		Nonce:            parsed.Get("nonce").String(),
		Miner:            parsed.Get("miner").String(),
		Difficulty:       hexBig(parsed.Get("difficulty")),
		TotalDifficulty:  hexBig(parsed.Get("totalDifficulty")),
		ExtraData:        parsed.Get("extraData").String(),
		Size:             hexInt(parsed.Get("size")),
		GasLimit:         hexInt(parsed.Get("gasLimit")),
		GasUsed:          hexInt(parsed.Get("gasUsed")),
		Timestamp:        hexInt(parsed.Get("timestamp")),
		BaseFeePerGas:    hexBig(parsed.Get("baseFeePerGas")),
		MixHash:          parsed.Get("mixHash").String(),
		TransactionsRoot: parsed.Get("transactionsRoot").String(),
		StateRoot:        parsed.Get("stateRoot").String(),
		ReceiptsRoot:     parsed.Get("receiptsRoot").String(),
	}

	for _, tx := range parsed.Get("transactions").Array() {
		if tx.IsObject() {
			block.Transactions = append(block.Transactions, parseTransaction(tx))
		} else {
			// hash-only transaction listing
			block.Transactions = append(block.Transactions, Transaction{Hash: tx.String()})
		}
	}
	for _, u := range parsed.Get("uncles").Array() {
		block.Uncles = append(block.Uncles, u.String())
	}
	block.Withdrawals = parsed.Get("withdrawals").Array()

	return block, nil
}

func parseTransaction(tx gjson.Result) Transaction {
	return Transaction{
		Hash:                 tx.Get("hash").String(),
		Nonce:                hexInt(tx.Get("nonce")),
		BlockHash:            tx.Get("blockHash").String(),
		BlockNumber:          hexInt(tx.Get("blockNumber")),
		TransactionIndex:     hexInt(tx.Get("transactionIndex")),
		From:                 tx.Get("from").String(),
		To:                   tx.Get("to").String(),
		Value:                hexBig(tx.Get("value")),
		Gas:                  hexInt(tx.Get("gas")),
		GasPrice:             hexBig(tx.Get("gasPrice")),
		Input:                tx.Get("input").String(),
		Type:                 hexInt(tx.Get("type")),
		ChainID:              hexInt(tx.Get("chainId")),
		MaxPriorityFeePerGas: hexBig(tx.Get("maxPriorityFeePerGas")),
		MaxFeePerGas:         hexBig(tx.Get("maxFeePerGas")),
	}
}

func hexInt(r gjson.Result) int64 {
	b := hexBig(r)
	if b == nil {
		return 0
	}
	return b.Int64()
}

func hexBig(r gjson.Result) *big.Int {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	s := r.String()
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			return nil
		}
		return v
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil
	}
	return v
}
