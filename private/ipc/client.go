// Package ipc talks to the on-chain storage contract: dialing, transaction
// waiting, batch retrieval, calldata parsing and EIP-712 block signatures.
package ipc

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	logging "github.com/ipfs/go-log/v2"
)

var logger = logging.Logger("ipc")

// ErrTxFailed is returned when a mined transaction has a failed status.
var ErrTxFailed = errors.New("transaction failed")

const (
	waitTxTimeout  = 120 * time.Second
	txPollInterval = 200 * time.Millisecond
)

// Config holds the connection parameters for the IPC layer.
type Config struct {
	// DialURI is the JSON-RPC endpoint of the chain node.
	DialURI string
	// PrivateKey is the hex-encoded signing key (0x prefix optional).
	PrivateKey string
	// StorageContractAddress is the deployed storage contract.
	StorageContractAddress string
	// AccessContractAddress is the deployed access manager, optional.
	AccessContractAddress string
}

// DefaultConfig returns an empty Config.
func DefaultConfig() Config {
	return Config{}
}

// ContractsAddresses groups the deployed contract addresses.
type ContractsAddresses struct {
	Storage       common.Address
	AccessManager common.Address
}

// Client is a connected IPC client bound to a signing key.
type Client struct {
	Eth       *ethclient.Client
	RPC       *rpc.Client
	Addresses ContractsAddresses

	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
}

// Dial connects to the chain node, loads the signing key and fetches the
// chain ID.
func Dial(ctx context.Context, config Config) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, config.DialURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", config.DialURI, err)
	}
	eth := ethclient.NewClient(rpcClient)

	privateKey, err := ParsePrivateKey(config.PrivateKey)
	if err != nil {
		rpcClient.Close()
		return nil, err
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		rpcClient.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	return &Client{
		Eth: eth,
		RPC: rpcClient,
		Addresses: ContractsAddresses{
			Storage:       common.HexToAddress(config.StorageContractAddress),
			AccessManager: common.HexToAddress(config.AccessContractAddress),
		},
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID:    chainID,
	}, nil
}

// ParsePrivateKey decodes a hex private key, tolerating a 0x prefix.
func ParsePrivateKey(key string) (*ecdsa.PrivateKey, error) {
	trimmed := strings.TrimPrefix(key, "0x")
	privateKey, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("failed to load private key: %w", err)
	}
	return privateKey, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.RPC.Close()
}

// ChainID returns the chain ID fetched at dial time.
func (c *Client) ChainID() *big.Int {
	return c.chainID
}

// Address returns the address of the signing key.
func (c *Client) Address() common.Address {
	return c.address
}

// WaitForTx blocks until the transaction is mined or the wait budget is
// exhausted. A mined transaction with a failed status returns ErrTxFailed.
func (c *Client) WaitForTx(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, err := c.Eth.TransactionReceipt(ctx, hash)
	if err == nil {
		return checkReceipt(receipt)
	}
	if !errors.Is(err, ethereum.NotFound) {
		return nil, fmt.Errorf("error checking transaction receipt: %w", err)
	}

	deadline := time.Now().Add(waitTxTimeout)
	ticker := time.NewTicker(txPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timeout waiting for transaction %s", hash)
		}

		receipt, err = c.Eth.TransactionReceipt(ctx, hash)
		if errors.Is(err, ethereum.NotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("error checking transaction receipt: %w", err)
		}
		return checkReceipt(receipt)
	}
}

func checkReceipt(receipt *types.Receipt) (*types.Receipt, error) {
	if receipt.Status != types.ReceiptStatusSuccessful {
		logger.Debugf("transaction %s mined with failed status", receipt.TxHash)
		return nil, ErrTxFailed
	}
	return receipt, nil
}
