// Package sdk is the client library for Akave decentralized storage: bucket
// and file metadata over the node RPC, chunked DAG construction for uploads,
// optional payload encryption and erasure coding.
package sdk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/akave-ai/akavesdk/private/encryption"
	"github.com/akave-ai/akavesdk/private/retry"
)

const (
	defaultStreamingMaxBlocksInChunk = 32
	defaultChunkBuffer               = 2
	defaultRetryMaxAttempts          = 3
	defaultRetryBaseDelay            = time.Second
)

// SDK is the entry point for talking to an Akave node.
type SDK struct {
	config Config
	rpc    *nodeRPC
	client *BucketClient

	privateKey            string
	encryptionKey         []byte
	useMetadataEncryption bool

	streamingMaxBlocksInChunk int
	chunkBuffer               int
	dataBlocks                int
	parityBlocks              int
	erasure                   *ErasureCode

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryDisabled    bool
	retrier          retry.WithRetry
}

// New connects an SDK instance to a node RPC address.
func New(address string, maxConcurrency int, blockPartSize int64, useConnectionPool bool, options ...Option) (*SDK, error) {
	if address == "" {
		return nil, fmt.Errorf("empty node address")
	}
	if maxConcurrency <= 0 {
		return nil, fmt.Errorf("max concurrency must be positive")
	}
	if blockPartSize <= 0 || blockPartSize > BlockSize {
		return nil, fmt.Errorf("block part size must be in (0, %d]", BlockSize)
	}

	s := &SDK{
		config: Config{
			Address:           address,
			MaxConcurrency:    maxConcurrency,
			BlockPartSize:     blockPartSize,
			UseConnectionPool: useConnectionPool,
			ConnectionTimeout: DefaultConnectionTimeout,
		},
		streamingMaxBlocksInChunk: defaultStreamingMaxBlocksInChunk,
		chunkBuffer:               defaultChunkBuffer,
		retryMaxAttempts:          defaultRetryMaxAttempts,
		retryBaseDelay:            defaultRetryBaseDelay,
	}
	for _, opt := range options {
		opt(s)
	}

	if len(s.encryptionKey) > 0 && len(s.encryptionKey) != encryption.KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes", encryption.KeySize)
	}
	if s.parityBlocks > 0 {
		erasure, err := NewErasureCode(s.dataBlocks, s.parityBlocks)
		if err != nil {
			return nil, err
		}
		s.erasure = erasure
	}

	s.rpc = newNodeRPC(address, s.config.ConnectionTimeout, useConnectionPool)
	s.client = newBucketClient(s.rpc)
	s.retrier = retry.New(s.retryMaxAttempts, s.retryBaseDelay)

	return s, nil
}

// Config returns the connection settings the SDK was built with.
func (s *SDK) Config() Config {
	return s.config
}

// ErasureCode returns the configured codec, nil when erasure coding is off.
func (s *SDK) ErasureCode() *ErasureCode {
	return s.erasure
}

// CreateBucket registers a new bucket.
func (s *SDK) CreateBucket(ctx context.Context, name string) (*BucketCreateResult, error) {
	var result *BucketCreateResult
	err := s.withRetry(ctx, func() error {
		var err error
		result, err = s.client.Create(ctx, name)
		return err
	})
	return result, err
}

// ViewBucket fetches a bucket's metadata.
func (s *SDK) ViewBucket(ctx context.Context, name string) (*Bucket, error) {
	var bucket *Bucket
	err := s.withRetry(ctx, func() error {
		var err error
		bucket, err = s.client.View(ctx, name)
		return err
	})
	return bucket, err
}

// DeleteBucket removes an empty bucket.
func (s *SDK) DeleteBucket(ctx context.Context, name string) error {
	return s.withRetry(ctx, func() error {
		return s.client.Delete(ctx, name)
	})
}

// ListBuckets returns all buckets of the caller.
func (s *SDK) ListBuckets(ctx context.Context) ([]Bucket, error) {
	var buckets []Bucket
	err := s.withRetry(ctx, func() error {
		var err error
		buckets, err = s.client.List(ctx)
		return err
	})
	return buckets, err
}

// ListFiles returns a bucket's file listing.
func (s *SDK) ListFiles(ctx context.Context, bucketName string) ([]FileListItem, error) {
	var files []FileListItem
	err := s.withRetry(ctx, func() error {
		var err error
		files, err = s.client.ListFiles(ctx, bucketName)
		return err
	})
	return files, err
}

// FileInfo fetches a single file's metadata.
func (s *SDK) FileInfo(ctx context.Context, bucketName, fileName string) (*FileMeta, error) {
	var meta *FileMeta
	err := s.withRetry(ctx, func() error {
		var err error
		meta, err = s.client.FileInfo(ctx, bucketName, fileName)
		return err
	})
	return meta, err
}

// FileDelete removes a file from a bucket.
func (s *SDK) FileDelete(ctx context.Context, bucketName, fileName string) error {
	return s.withRetry(ctx, func() error {
		return s.client.FileDelete(ctx, bucketName, fileName)
	})
}

// Close releases the idle connections held by the node transport.
func (s *SDK) Close() error {
	s.rpc.close()
	return nil
}

// BuildFileDAG splits a file payload into chunks of at most
// streamingMaxBlocksInChunk blocks each and assembles the file root.
func (s *SDK) BuildFileDAG(ctx context.Context, reader io.Reader, fileSize int64) (rootCID string, chunks []ChunkDAG, err error) {
	if fileSize < MinFileSize {
		return "", nil, fmt.Errorf("file size %d below minimum %d", fileSize, MinFileSize)
	}

	chunkSize := s.config.BlockPartSize * int64(s.streamingMaxBlocksInChunk)
	root := NewDAGRoot()

	for {
		chunkDAG, err := BuildDAG(ctx, io.LimitReader(reader, chunkSize), s.config.BlockPartSize, s.encryptionKey)
		if err != nil {
			if strings.Contains(err.Error(), "empty data") && len(chunks) > 0 {
				break
			}
			return "", nil, err
		}

		chunks = append(chunks, *chunkDAG)
		root.AddLink(chunkDAG.CID, chunkDAG.RawDataSize, chunkDAG.ProtoNodeSize)

		if int64(chunkDAG.RawDataSize) < chunkSize {
			break
		}
	}

	rootC, err := root.Build()
	if err != nil {
		return "", nil, err
	}
	return rootC.String(), chunks, nil
}

func (s *SDK) withRetry(ctx context.Context, f func() error) error {
	if s.retryDisabled {
		return f()
	}
	return s.retrier.Do(ctx, func() (bool, error) {
		err := f()
		return isRetryableRPCError(err), err
	})
}

// isRetryableRPCError reports whether a node call is worth repeating.
// Validation failures and explicit RPC errors are final.
func isRetryableRPCError(err error) bool {
	if err == nil {
		return false
	}
	var rpcErr *jsonrpcError
	if errors.As(err, &rpcErr) {
		return false
	}
	// SDKErrors without an underlying cause are client-side validation
	var sdkErr *SDKError
	if errors.As(err, &sdkErr) && sdkErr.Err == nil {
		return false
	}
	if strings.Contains(err.Error(), "invalid bucket name") || strings.Contains(err.Error(), "empty file name") {
		return false
	}
	return true
}

// retryable transaction submission failures
var retryableTxErrors = []string{
	"nonce too low",
	"replacement transaction underpriced",
	"transaction underpriced",
	"already known",
}

// IsRetryableTxError reports whether a transaction submission failure is
// transient nonce or pricing contention.
func IsRetryableTxError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range retryableTxErrors {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// EncryptionKeyDerivation derives a per-object key from a parent key and
// path components.
func EncryptionKeyDerivation(parentKey []byte, info ...string) ([]byte, error) {
	return encryption.DeriveKey(parentKey, info...)
}

// SkipToPosition advances a reader to an absolute position, seeking when
// possible and discarding otherwise.
func SkipToPosition(reader io.Reader, pos int64) error {
	if pos < 0 {
		return fmt.Errorf("negative position %d", pos)
	}
	if pos == 0 {
		return nil
	}

	if seeker, ok := reader.(io.Seeker); ok {
		if _, err := seeker.Seek(pos, io.SeekStart); err != nil {
			return fmt.Errorf("failed to seek to position %d: %w", pos, err)
		}
		return nil
	}

	n, err := io.CopyN(io.Discard, reader, pos)
	if err != nil {
		return fmt.Errorf("failed to skip to position %d, discarded %d: %w", pos, n, err)
	}
	return nil
}
