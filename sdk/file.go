package sdk

import (
	"context"
	"time"
)

type fileUploadCreateRequest struct {
	BucketName string `json:"bucketName"`
	FileName   string `json:"fileName"`
}

type fileUploadCreateResponse struct {
	BucketName  string    `json:"bucketName"`
	Name        string    `json:"name"`
	StreamID    string    `json:"streamId"`
	CreatedAt   time.Time `json:"createdAt"`
	DataBlocks  int       `json:"dataBlocks"`
	TotalBlocks int       `json:"totalBlocks"`
}

type fileBlockRequest struct {
	CID  string `json:"cid"`
	Size uint64 `json:"size"`
}

type fileUploadChunkRequest struct {
	StreamID    string             `json:"streamId"`
	Index       uint64             `json:"index"`
	ChunkCID    string             `json:"chunkCid"`
	RawDataSize uint64             `json:"rawDataSize"`
	EncodedSize uint64             `json:"encodedSize"`
	Blocks      []fileBlockRequest `json:"blocks"`
}

type fileBlockUploadResponse struct {
	CID           string `json:"cid"`
	Permit        string `json:"permit"`
	NodeAddress   string `json:"nodeAddress"`
	NodeID        string `json:"nodeId"`
	AlreadyStored bool   `json:"alreadyStored"`
}

type fileUploadCommitRequest struct {
	StreamID    string `json:"streamId"`
	RootCID     string `json:"rootCid"`
	ChunkCount  int64  `json:"chunkCount"`
	Size        uint64 `json:"size"`
	EncodedSize uint64 `json:"encodedSize"`
}

type fileDownloadCreateRequest struct {
	BucketName string `json:"bucketName"`
	FileName   string `json:"fileName"`
}

type chunkResponse struct {
	CID         string `json:"cid"`
	EncodedSize uint64 `json:"encodedSize"`
	Size        uint64 `json:"size"`
	Index       uint64 `json:"index"`
}

type fileDownloadCreateResponse struct {
	StreamID    string          `json:"streamId"`
	BucketName  string          `json:"bucketName"`
	Name        string          `json:"name"`
	Chunks      []chunkResponse `json:"chunks"`
	DataBlocks  int             `json:"dataBlocks"`
	TotalBlocks int             `json:"totalBlocks"`
}

type fileDownloadChunkRequest struct {
	StreamID string `json:"streamId"`
	ChunkCID string `json:"chunkCid"`
}

type fileBlockDownloadResponse struct {
	CID      string `json:"cid"`
	Filecoin *struct {
		BaseURL string `json:"baseUrl"`
	} `json:"filecoin,omitempty"`
	Akave *struct {
		Permit      string `json:"permit"`
		NodeAddress string `json:"nodeAddress"`
		NodeID      string `json:"nodeId"`
	} `json:"akave,omitempty"`
}

type fileDeleteRequest struct {
	BucketName string `json:"bucketName"`
	FileName   string `json:"fileName"`
}

// FileUploadCreate opens an upload stream for a new file.
func (c *BucketClient) FileUploadCreate(ctx context.Context, bucketName, fileName string) (*FileUpload, error) {
	if err := validateBucketName("FileUploadCreate", bucketName); err != nil {
		return nil, err
	}
	if fileName == "" {
		return nil, &SDKError{Method: "FileUploadCreate", Detail: "empty file name"}
	}

	var res fileUploadCreateResponse
	req := fileUploadCreateRequest{BucketName: bucketName, FileName: fileName}
	if err := c.rpc.sendRequest(ctx, "FileUploadCreate", req, &res); err != nil {
		return nil, err
	}
	return &FileUpload{
		BucketName:  res.BucketName,
		Name:        res.Name,
		StreamID:    res.StreamID,
		CreatedAt:   res.CreatedAt,
		DataBlocks:  res.DataBlocks,
		TotalBlocks: res.TotalBlocks,
	}, nil
}

// FileUploadChunk announces a chunk's blocks to the node. It returns the
// blocks the node still needs, with the data and the upload permits merged
// in; blocks the node already stores are left out.
func (c *BucketClient) FileUploadChunk(ctx context.Context, chunk FileChunkUpload) ([]FileBlockUpload, error) {
	req := fileUploadChunkRequest{
		StreamID:    chunk.StreamID,
		Index:       chunk.Index,
		ChunkCID:    chunk.ChunkCID.String(),
		RawDataSize: chunk.RawDataSize,
		EncodedSize: chunk.EncodedSize,
		Blocks:      make([]fileBlockRequest, 0, len(chunk.Blocks)),
	}
	for _, block := range chunk.Blocks {
		req.Blocks = append(req.Blocks, fileBlockRequest{CID: block.CID, Size: uint64(len(block.Data))})
	}

	var res []fileBlockUploadResponse
	if err := c.rpc.sendRequest(ctx, "FileUploadChunk", req, &res); err != nil {
		return nil, err
	}

	pending := make([]FileBlockUpload, 0, len(res))
	for _, assigned := range res {
		if assigned.AlreadyStored {
			continue
		}
		block, ok := BlockByCID(chunk.Blocks, assigned.CID)
		if !ok {
			return nil, &SDKError{Method: "FileUploadChunk", Detail: "node assigned unknown block " + assigned.CID}
		}
		block.Permit = assigned.Permit
		block.NodeAddress = assigned.NodeAddress
		block.NodeID = assigned.NodeID
		pending = append(pending, block)
	}
	return pending, nil
}

// FileUploadCommit finalizes an upload stream under its root CID.
func (c *BucketClient) FileUploadCommit(ctx context.Context, streamID, rootCID string, chunkCount int64, size, encodedSize uint64) (*FileMeta, error) {
	commit := fileUploadCommitRequest{
		StreamID:    streamID,
		RootCID:     rootCID,
		ChunkCount:  chunkCount,
		Size:        size,
		EncodedSize: encodedSize,
	}

	var res fileMetaResponse
	if err := c.rpc.sendRequest(ctx, "FileUploadCommit", commit, &res); err != nil {
		return nil, err
	}
	return &FileMeta{
		StreamID:    res.StreamID,
		RootCID:     res.RootCID,
		BucketName:  res.BucketName,
		Name:        res.Name,
		EncodedSize: res.EncodedSize,
		Size:        res.Size,
		CreatedAt:   res.CreatedAt,
		CommittedAt: res.CommittedAt,
		DataBlocks:  res.DataBlocks,
		TotalBlocks: res.TotalBlocks,
	}, nil
}

// FileDownloadCreate opens a download stream and returns the file's chunk
// list.
func (c *BucketClient) FileDownloadCreate(ctx context.Context, bucketName, fileName string) (*FileDownload, error) {
	if err := validateBucketName("FileDownloadCreate", bucketName); err != nil {
		return nil, err
	}
	if fileName == "" {
		return nil, &SDKError{Method: "FileDownloadCreate", Detail: "empty file name"}
	}

	var res fileDownloadCreateResponse
	req := fileDownloadCreateRequest{BucketName: bucketName, FileName: fileName}
	if err := c.rpc.sendRequest(ctx, "FileDownloadCreate", req, &res); err != nil {
		return nil, err
	}

	chunks := make([]Chunk, 0, len(res.Chunks))
	for _, chunk := range res.Chunks {
		chunks = append(chunks, Chunk{
			CID:         chunk.CID,
			EncodedSize: chunk.EncodedSize,
			Size:        chunk.Size,
			Index:       chunk.Index,
		})
	}
	return &FileDownload{
		StreamID:    res.StreamID,
		BucketName:  res.BucketName,
		Name:        res.Name,
		Chunks:      chunks,
		DataBlocks:  res.DataBlocks,
		TotalBlocks: res.TotalBlocks,
	}, nil
}

// FileDownloadChunk resolves a chunk's blocks to their download locations.
func (c *BucketClient) FileDownloadChunk(ctx context.Context, streamID string, chunk Chunk) (*FileChunkDownload, error) {
	var res []fileBlockDownloadResponse
	req := fileDownloadChunkRequest{StreamID: streamID, ChunkCID: chunk.CID}
	if err := c.rpc.sendRequest(ctx, "FileDownloadChunk", req, &res); err != nil {
		return nil, err
	}

	blocks := make([]FileBlockDownload, 0, len(res))
	for _, block := range res {
		download := FileBlockDownload{CID: block.CID}
		if block.Filecoin != nil {
			download.Filecoin = &FilecoinBlockData{BaseURL: block.Filecoin.BaseURL}
		}
		if block.Akave != nil {
			download.Akave = &AkaveBlockData{
				Permit:      block.Akave.Permit,
				NodeAddress: block.Akave.NodeAddress,
				NodeID:      block.Akave.NodeID,
			}
		}
		blocks = append(blocks, download)
	}
	return &FileChunkDownload{
		CID:         chunk.CID,
		Index:       chunk.Index,
		EncodedSize: chunk.EncodedSize,
		Size:        chunk.Size,
		Blocks:      blocks,
	}, nil
}

// FileDelete removes a file from a bucket.
func (c *BucketClient) FileDelete(ctx context.Context, bucketName, fileName string) error {
	if err := validateBucketName("FileDelete", bucketName); err != nil {
		return err
	}
	if fileName == "" {
		return &SDKError{Method: "FileDelete", Detail: "empty file name"}
	}
	return c.rpc.sendRequest(ctx, "FileDelete", fileDeleteRequest{BucketName: bucketName, FileName: fileName}, nil)
}
