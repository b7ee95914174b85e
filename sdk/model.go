package sdk

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ipfs/go-cid"
)

// BucketCreateResult is returned by bucket creation.
type BucketCreateResult struct {
	Name      string
	CreatedAt time.Time
}

// Bucket describes an existing bucket.
type Bucket struct {
	Name      string
	CreatedAt time.Time
}

// Chunk is a piece of metadata of some file.
type Chunk struct {
	CID         string
	EncodedSize uint64
	Size        uint64
	Index       uint64
}

// AkaveBlockData is akavenode block metadata.
type AkaveBlockData struct {
	Permit      string
	NodeAddress string
	NodeID      string
}

// FilecoinBlockData is Filecoin block metadata.
type FilecoinBlockData struct {
	BaseURL string
}

// FileBlockUpload is a piece of metadata of some file used for upload.
type FileBlockUpload struct {
	CID  string
	Data []byte

	Permit      string
	NodeAddress string
	NodeID      string
}

// FileBlockDownload is a piece of metadata of some file used for download.
type FileBlockDownload struct {
	CID  string
	Data []byte

	Filecoin *FilecoinBlockData
	Akave    *AkaveBlockData
}

// FileListItem contains bucket file list file meta information.
type FileListItem struct {
	RootCID   string
	Name      string
	Size      uint64
	CreatedAt time.Time

	DataBlocks  int
	TotalBlocks int
}

// FileUpload contains single file meta information.
type FileUpload struct {
	BucketName string
	Name       string
	StreamID   string
	CreatedAt  time.Time

	DataBlocks  int
	TotalBlocks int
}

// FileChunkUpload contains single file chunk meta information.
type FileChunkUpload struct {
	StreamID    string
	Index       uint64
	ChunkCID    cid.Cid
	RawDataSize uint64
	EncodedSize uint64
	Blocks      []FileBlockUpload
}

// FileDownload contains single file meta information.
type FileDownload struct {
	StreamID   string
	BucketName string
	Name       string
	Chunks     []Chunk

	DataBlocks  int
	TotalBlocks int
}

// FileChunkDownload contains single file chunk meta information.
type FileChunkDownload struct {
	CID         string
	Index       uint64
	EncodedSize uint64
	Size        uint64
	Blocks      []FileBlockDownload
}

// FileMeta contains single file meta information.
type FileMeta struct {
	StreamID    string
	RootCID     string
	BucketName  string
	Name        string
	EncodedSize uint64
	Size        uint64
	CreatedAt   time.Time
	CommittedAt time.Time

	DataBlocks  int
	TotalBlocks int
}

// IPCFileDownload represents an on-chain file download and some metadata.
type IPCFileDownload struct {
	BucketName string
	Name       string
	Chunks     []Chunk
}

// IPCFileChunkUpload contains single on-chain file chunk meta information.
type IPCFileChunkUpload struct {
	Index       uint64
	ChunkCID    cid.Cid
	ActualSize  uint64
	RawDataSize uint64
	EncodedSize uint64
	Blocks      []FileBlockUpload
	BucketID    [32]byte
	FileName    string
}

// TxWaitSignal pairs a pre-created chunk with its pending transaction.
type TxWaitSignal struct {
	FileUploadChunk IPCFileChunkUpload
	Transaction     *types.Transaction
}

type chunkWithTx struct {
	chunk IPCFileChunkUpload
	tx    *types.Transaction
}

// UploadState tracks an in-flight on-chain file upload: chunks whose
// transactions were sent but not yet confirmed, plus running size totals
// feeding the DAG root.
type UploadState struct {
	mu sync.Mutex

	dagRoot          *DAGRoot
	preCreatedChunks map[uint64]chunkWithTx
	isCommitted      bool
	chunkCount       int
	actualFileSize   uint64
	encodedFileSize  uint64
}

// NewUploadState builds an empty upload state around a DAG root.
func NewUploadState(dagRoot *DAGRoot) *UploadState {
	return &UploadState{
		dagRoot:          dagRoot,
		preCreatedChunks: make(map[uint64]chunkWithTx),
	}
}

// PreCreateChunk registers a chunk whose transaction has been sent and links
// it into the DAG root.
func (s *UploadState) PreCreateChunk(chunk IPCFileChunkUpload, tx *types.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.preCreatedChunks[chunk.Index] = chunkWithTx{chunk: chunk, tx: tx}
	s.chunkCount++
	s.actualFileSize += chunk.ActualSize
	s.encodedFileSize += chunk.EncodedSize
	s.dagRoot.AddLink(chunk.ChunkCID, chunk.RawDataSize, chunk.EncodedSize)
}

// ChunkUploaded removes a confirmed chunk from the pending set.
func (s *UploadState) ChunkUploaded(chunk IPCFileChunkUpload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.preCreatedChunks, chunk.Index)
}

// ListPreCreatedChunks returns the chunks still awaiting confirmation.
func (s *UploadState) ListPreCreatedChunks() []TxWaitSignal {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make([]TxWaitSignal, 0, len(s.preCreatedChunks))
	for _, entry := range s.preCreatedChunks {
		pending = append(pending, TxWaitSignal{FileUploadChunk: entry.chunk, Transaction: entry.tx})
	}
	return pending
}

// Commit marks the upload as committed. It returns false when the state was
// already committed.
func (s *UploadState) Commit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isCommitted {
		return false
	}
	s.isCommitted = true
	return true
}

// Totals reports the chunk count and accumulated sizes.
func (s *UploadState) Totals() (chunks int, actualSize, encodedSize uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.chunkCount, s.actualFileSize, s.encodedFileSize
}

// DAGRootCID finalizes the DAG root over all linked chunks.
func (s *UploadState) DAGRootCID() (cid.Cid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.dagRoot.Build()
}

// IPCFileUpload tracks counters of an on-chain streaming upload.
type IPCFileUpload struct {
	BucketName string
	Name       string
	State      *UploadState

	BlocksCounter uint64
	BytesCounter  uint64
	ChunksCounter uint64
}

// NewIPCFileUpload starts a fresh on-chain upload for a bucket file.
func NewIPCFileUpload(bucketName, name string) *IPCFileUpload {
	return &IPCFileUpload{
		BucketName: bucketName,
		Name:       name,
		State:      NewUploadState(NewDAGRoot()),
	}
}
