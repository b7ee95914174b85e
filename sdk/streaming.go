package sdk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/akave-ai/akavesdk/private/encryption"
)

// Upload streams a file into a bucket: the payload is split into chunks,
// each chunk optionally encrypted and erasure-coded, its blocks pushed to
// the nodes the API assigns, and the stream committed under the DAG root
// CID.
func (s *SDK) Upload(ctx context.Context, bucketName, fileName string, reader io.Reader) (*FileMeta, error) {
	chunkSize := s.config.BlockPartSize * int64(s.streamingMaxBlocksInChunk)

	chunkData, err := readChunk(reader, chunkSize)
	if err != nil {
		return nil, err
	}
	if int64(len(chunkData)) < chunkSize && int64(len(chunkData)) < MinFileSize {
		return nil, fmt.Errorf("file size %d below minimum %d", len(chunkData), MinFileSize)
	}

	var upload *FileUpload
	err = s.withRetry(ctx, func() error {
		var err error
		upload, err = s.client.FileUploadCreate(ctx, bucketName, fileName)
		return err
	})
	if err != nil {
		return nil, err
	}

	fileKey, err := s.fileEncryptionKey(bucketName, fileName)
	if err != nil {
		return nil, err
	}

	state := NewUploadState(NewDAGRoot())
	var index uint64
	for len(chunkData) > 0 {
		if err := s.uploadChunk(ctx, upload.StreamID, fileName, index, chunkData, fileKey, state); err != nil {
			return nil, err
		}
		index++
		if int64(len(chunkData)) < chunkSize {
			break
		}
		if chunkData, err = readChunk(reader, chunkSize); err != nil {
			return nil, err
		}
	}

	if !state.Commit() {
		return nil, fmt.Errorf("upload already committed")
	}
	rootCID, err := state.DAGRootCID()
	if err != nil {
		return nil, err
	}
	chunkCount, actualSize, encodedSize := state.Totals()

	var meta *FileMeta
	err = s.withRetry(ctx, func() error {
		var err error
		meta, err = s.client.FileUploadCommit(ctx, upload.StreamID, rootCID.String(), int64(chunkCount), actualSize, encodedSize)
		return err
	})
	return meta, err
}

func (s *SDK) uploadChunk(ctx context.Context, streamID, fileName string, index uint64, data, fileKey []byte, state *UploadState) error {
	chunkDAG, err := s.encodeChunk(ctx, data, fileKey)
	if err != nil {
		return fmt.Errorf("chunk %d: %w", index, err)
	}

	chunkUpload := FileChunkUpload{
		StreamID:    streamID,
		Index:       index,
		ChunkCID:    chunkDAG.CID,
		RawDataSize: uint64(len(data)),
		EncodedSize: chunkDAG.RawDataSize,
		Blocks:      chunkDAG.Blocks,
	}

	var pending []FileBlockUpload
	err = s.withRetry(ctx, func() error {
		var err error
		pending, err = s.client.FileUploadChunk(ctx, chunkUpload)
		return err
	})
	if err != nil {
		return err
	}

	state.PreCreateChunk(IPCFileChunkUpload{
		Index:       index,
		ChunkCID:    chunkDAG.CID,
		ActualSize:  uint64(len(data)),
		RawDataSize: uint64(len(data)),
		EncodedSize: chunkDAG.ProtoNodeSize,
		Blocks:      chunkDAG.Blocks,
		FileName:    fileName,
	}, nil)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.config.MaxConcurrency)
	for _, block := range pending {
		block := block
		group.Go(func() error {
			target := block.NodeAddress
			if target == "" {
				target = s.config.Address
			}
			return s.UploadBlock(groupCtx, target, block)
		})
	}
	if err := group.Wait(); err != nil {
		return fmt.Errorf("chunk %d: %w", index, err)
	}

	state.ChunkUploaded(IPCFileChunkUpload{Index: index})
	return nil
}

// Download streams a file out of a bucket in chunk index order, verifying
// every block CID and undoing erasure coding and encryption on the way.
func (s *SDK) Download(ctx context.Context, bucketName, fileName string, writer io.Writer) error {
	var download *FileDownload
	err := s.withRetry(ctx, func() error {
		var err error
		download, err = s.client.FileDownloadCreate(ctx, bucketName, fileName)
		return err
	})
	if err != nil {
		return err
	}

	fileKey, err := s.fileEncryptionKey(bucketName, fileName)
	if err != nil {
		return err
	}

	chunks := append([]Chunk(nil), download.Chunks...)
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })

	for _, chunk := range chunks {
		var chunkDownload *FileChunkDownload
		err := s.withRetry(ctx, func() error {
			var err error
			chunkDownload, err = s.client.FileDownloadChunk(ctx, download.StreamID, chunk)
			return err
		})
		if err != nil {
			return err
		}

		data, err := s.downloadChunk(ctx, chunkDownload, fileKey)
		if err != nil {
			return err
		}
		if _, err := writer.Write(data); err != nil {
			return fmt.Errorf("failed to write chunk %d: %w", chunk.Index, err)
		}
	}
	return nil
}

func (s *SDK) downloadChunk(ctx context.Context, chunk *FileChunkDownload, fileKey []byte) ([]byte, error) {
	payloads := make([][]byte, len(chunk.Blocks))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.config.MaxConcurrency)
	for i, block := range chunk.Blocks {
		i, block := i, block
		group.Go(func() error {
			data, err := s.DownloadBlock(groupCtx, block)
			if err != nil {
				// with erasure coding a lost block is reconstructed from
				// the surviving shards
				if s.erasure != nil {
					logger.Warnf("block %s unavailable: %s", block.CID, err)
					return nil
				}
				return err
			}
			payloads[i], err = ExtractBlockData(block.CID, data)
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("chunk %s: %w", chunk.CID, err)
	}

	encodedLen := int(chunk.Size)
	if len(fileKey) > 0 {
		encodedLen += EncryptionOverhead
	}

	var data []byte
	if s.erasure != nil {
		extracted, err := s.erasure.ExtractData(payloads, encodedLen)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", chunk.CID, err)
		}
		data = extracted
	} else {
		data = bytes.Join(payloads, nil)
	}

	if len(fileKey) > 0 {
		decrypted, err := encryption.Decrypt(fileKey, data, dagEncryptionInfo)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt chunk %s: %w", chunk.CID, err)
		}
		data = decrypted
	}
	return data, nil
}

// encodeChunk applies the configured transforms to a chunk payload and
// builds its DAG. Erasure shards become the chunk's blocks.
func (s *SDK) encodeChunk(ctx context.Context, data, fileKey []byte) (*ChunkDAG, error) {
	blockSize := s.config.BlockPartSize

	if len(fileKey) > 0 {
		encrypted, err := encryption.Encrypt(fileKey, data, dagEncryptionInfo)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt chunk data: %w", err)
		}
		data = encrypted
	}

	if s.erasure != nil {
		shards, err := s.erasure.Encode(data)
		if err != nil {
			return nil, err
		}
		blockSize = int64(len(shards[0]))
		data = bytes.Join(shards, nil)
	}

	return BuildDAG(ctx, bytes.NewReader(data), blockSize, nil)
}

// fileEncryptionKey derives the per-file key from the configured master
// key, nil when encryption is off.
func (s *SDK) fileEncryptionKey(bucketName, fileName string) ([]byte, error) {
	if len(s.encryptionKey) == 0 {
		return nil, nil
	}
	return encryption.DeriveKey(s.encryptionKey, bucketName, fileName)
}

func readChunk(reader io.Reader, chunkSize int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(reader, chunkSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk data: %w", err)
	}
	return data, nil
}
