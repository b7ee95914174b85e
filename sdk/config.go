package sdk

import (
	"time"
)

const (
	// BlockSize is the maximum payload of a single DAG block.
	BlockSize = 1 << 20
	// MinBucketNameLength is the shortest accepted bucket name.
	MinBucketNameLength = 3
	// EncryptionOverhead is the per-message cost of the AEAD envelope,
	// nonce plus tag.
	EncryptionOverhead = 28
	// MinFileSize is the smallest payload accepted by the upload pipeline.
	MinFileSize = 127
)

// Config carries the node connection settings of the SDK.
type Config struct {
	// Address is the node RPC endpoint, host:port or a full URL.
	Address string

	// MaxConcurrency caps parallel block transfers per file operation.
	MaxConcurrency int

	// BlockPartSize is the size of a single transfer unit in bytes.
	BlockPartSize int64

	// UseConnectionPool keeps node connections alive between calls.
	UseConnectionPool bool

	// ConnectionTimeout bounds a single node RPC call.
	ConnectionTimeout time.Duration
}

// DefaultConnectionTimeout is applied when a config does not set one.
const DefaultConnectionTimeout = 10 * time.Second
