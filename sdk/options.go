package sdk

import (
	"time"
)

// Option configures an SDK instance.
type Option func(*SDK)

// WithPrivateKey sets the hex private key used for on-chain operations.
func WithPrivateKey(privateKey string) Option {
	return func(s *SDK) {
		s.privateKey = privateKey
	}
}

// WithEncryptionKey sets the parent key for payload encryption.
func WithEncryptionKey(key []byte) Option {
	return func(s *SDK) {
		s.encryptionKey = key
	}
}

// WithMetadataEncryption additionally encrypts file names and metadata.
func WithMetadataEncryption() Option {
	return func(s *SDK) {
		s.useMetadataEncryption = true
	}
}

// WithStreamingMaxBlocksInChunk caps blocks per streamed chunk.
func WithStreamingMaxBlocksInChunk(n int) Option {
	return func(s *SDK) {
		s.streamingMaxBlocksInChunk = n
	}
}

// WithErasureCoding enables Reed-Solomon coding with the given shard
// counts.
func WithErasureCoding(dataBlocks, parityBlocks int) Option {
	return func(s *SDK) {
		s.dataBlocks = dataBlocks
		s.parityBlocks = parityBlocks
	}
}

// WithChunkBuffer sets how many chunks an upload keeps in flight.
func WithChunkBuffer(n int) Option {
	return func(s *SDK) {
		s.chunkBuffer = n
	}
}

// WithRetry overrides the default retry policy for node calls.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(s *SDK) {
		s.retryMaxAttempts = maxAttempts
		s.retryBaseDelay = baseDelay
	}
}

// WithoutRetry disables retries on node calls.
func WithoutRetry() Option {
	return func(s *SDK) {
		s.retryDisabled = true
	}
}
