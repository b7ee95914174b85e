package sdk

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFile struct {
	bucketName string
	name       string
	chunks     []chunkResponse
	rootCID    string
	committed  bool
}

// fakeStorageNode serves the node RPC API and the block store from one
// endpoint, so the SDK's base-URL fallback lands back on it.
type fakeStorageNode struct {
	t *testing.T

	mu          sync.Mutex
	blocks      map[string][]byte
	chunkBlocks map[string][]fileBlockDownloadResponse
	files       map[string]*fakeFile
	streams     map[string]*fakeFile
	streamSeq   int
	putCount    int
}

func newFakeStorageNode(t *testing.T) *fakeStorageNode {
	return &fakeStorageNode{
		t:           t,
		blocks:      make(map[string][]byte),
		chunkBlocks: make(map[string][]fileBlockDownloadResponse),
		files:       make(map[string]*fakeFile),
		streams:     make(map[string]*fakeFile),
	}
}

func (n *fakeStorageNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, blocksPath) {
		n.serveBlock(w, r)
		return
	}
	n.serveRPC(w, r)
}

func (n *fakeStorageNode) serveBlock(w http.ResponseWriter, r *http.Request) {
	blockCID := strings.TrimPrefix(r.URL.Path, blocksPath)
	n.mu.Lock()
	defer n.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		require.Equal(n.t, "Bearer permit-"+blockCID, r.Header.Get("Authorization"))
		data, err := io.ReadAll(r.Body)
		require.NoError(n.t, err)
		n.blocks[blockCID] = data
		n.putCount++
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := n.blocks[blockCID]
		if !ok {
			http.Error(w, "block not found", http.StatusNotFound)
			return
		}
		_, _ = w.Write(data)
	default:
		http.Error(w, "bad method", http.StatusMethodNotAllowed)
	}
}

func (n *fakeStorageNode) serveRPC(w http.ResponseWriter, r *http.Request) {
	var req jsonrpcMessage
	require.NoError(n.t, json.NewDecoder(r.Body).Decode(&req))

	var params []json.RawMessage
	require.NoError(n.t, json.Unmarshal(req.Params, &params))
	require.Len(n.t, params, 1)

	n.mu.Lock()
	result, rpcErr := n.dispatch(req.Method, params[0])
	n.mu.Unlock()

	resp := jsonrpcMessage{Version: "2.0", ID: req.ID}
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		raw, err := json.Marshal(result)
		require.NoError(n.t, err)
		resp.Result = raw
	}
	require.NoError(n.t, json.NewEncoder(w).Encode(resp))
}

func (n *fakeStorageNode) dispatch(method string, param json.RawMessage) (any, *jsonrpcError) {
	switch method {
	case "FileUploadCreate":
		var req fileUploadCreateRequest
		require.NoError(n.t, json.Unmarshal(param, &req))
		n.streamSeq++
		streamID := fmt.Sprintf("stream-%d", n.streamSeq)
		file := &fakeFile{bucketName: req.BucketName, name: req.FileName}
		n.streams[streamID] = file
		return fileUploadCreateResponse{
			BucketName: req.BucketName,
			Name:       req.FileName,
			StreamID:   streamID,
		}, nil

	case "FileUploadChunk":
		var req fileUploadChunkRequest
		require.NoError(n.t, json.Unmarshal(param, &req))
		file, ok := n.streams[req.StreamID]
		if !ok {
			return nil, &jsonrpcError{Code: -32000, Message: "unknown stream"}
		}
		file.chunks = append(file.chunks, chunkResponse{
			CID:         req.ChunkCID,
			EncodedSize: req.EncodedSize,
			Size:        req.RawDataSize,
			Index:       req.Index,
		})
		res := make([]fileBlockUploadResponse, 0, len(req.Blocks))
		locations := make([]fileBlockDownloadResponse, 0, len(req.Blocks))
		for _, block := range req.Blocks {
			_, stored := n.blocks[block.CID]
			res = append(res, fileBlockUploadResponse{
				CID:           block.CID,
				Permit:        "permit-" + block.CID,
				AlreadyStored: stored,
			})
			locations = append(locations, fileBlockDownloadResponse{CID: block.CID})
		}
		n.chunkBlocks[req.ChunkCID] = locations
		return res, nil

	case "FileUploadCommit":
		var req fileUploadCommitRequest
		require.NoError(n.t, json.Unmarshal(param, &req))
		file, ok := n.streams[req.StreamID]
		if !ok {
			return nil, &jsonrpcError{Code: -32000, Message: "unknown stream"}
		}
		file.rootCID = req.RootCID
		file.committed = true
		n.files[file.bucketName+"/"+file.name] = file
		return fileMetaResponse{
			RootCID:    req.RootCID,
			BucketName: file.bucketName,
			Name:       file.name,
			Size:       req.Size,
		}, nil

	case "FileDownloadCreate":
		var req fileDownloadCreateRequest
		require.NoError(n.t, json.Unmarshal(param, &req))
		file, ok := n.files[req.BucketName+"/"+req.FileName]
		if !ok {
			return nil, &jsonrpcError{Code: -32000, Message: "file not found"}
		}
		n.streamSeq++
		streamID := fmt.Sprintf("stream-%d", n.streamSeq)
		n.streams[streamID] = file
		return fileDownloadCreateResponse{
			StreamID:   streamID,
			BucketName: file.bucketName,
			Name:       file.name,
			Chunks:     file.chunks,
		}, nil

	case "FileDownloadChunk":
		var req fileDownloadChunkRequest
		require.NoError(n.t, json.Unmarshal(param, &req))
		file, ok := n.streams[req.StreamID]
		if !ok {
			return nil, &jsonrpcError{Code: -32000, Message: "unknown stream"}
		}
		for _, chunk := range file.chunks {
			if chunk.CID == req.ChunkCID {
				return n.chunkBlocks[req.ChunkCID], nil
			}
		}
		return nil, &jsonrpcError{Code: -32000, Message: "unknown chunk"}

	case "FileDelete":
		var req fileDeleteRequest
		require.NoError(n.t, json.Unmarshal(param, &req))
		key := req.BucketName + "/" + req.FileName
		if _, ok := n.files[key]; !ok {
			return nil, &jsonrpcError{Code: -32000, Message: "file not found"}
		}
		delete(n.files, key)
		return map[string]bool{"success": true}, nil
	}

	return nil, &jsonrpcError{Code: -32601, Message: "method not found"}
}

func newStreamingSDK(t *testing.T, server *httptest.Server, options ...Option) *SDK {
	t.Helper()
	options = append([]Option{WithStreamingMaxBlocksInChunk(2), WithoutRetry()}, options...)
	sdk, err := New(server.URL, 2, 1024, true, options...)
	require.NoError(t, err)
	return sdk
}

func deterministicPayload(size int) []byte {
	payload := make([]byte, size)
	seed := sha256.Sum256([]byte("streaming test payload"))
	for i := 0; i < size; i += len(seed) {
		copy(payload[i:], seed[:])
		seed = sha256.Sum256(seed[:])
	}
	return payload
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	node := newFakeStorageNode(t)
	server := httptest.NewServer(node)
	defer server.Close()

	sdk := newStreamingSDK(t, server)
	defer func() { require.NoError(t, sdk.Close()) }()

	// chunk size is 2048, so this spans three chunks
	payload := deterministicPayload(5000)
	meta, err := sdk.Upload(context.Background(), "test-bucket", "movie.bin", bytes.NewReader(payload))
	require.NoError(t, err)
	require.NotEmpty(t, meta.RootCID)
	assert.Equal(t, uint64(len(payload)), meta.Size)

	file := node.files["test-bucket/movie.bin"]
	require.NotNil(t, file)
	assert.True(t, file.committed)
	require.Len(t, file.chunks, 3)

	var out bytes.Buffer
	require.NoError(t, sdk.Download(context.Background(), "test-bucket", "movie.bin", &out))
	assert.Equal(t, payload, out.Bytes())
}

func TestUploadSingleChunkRootCollapses(t *testing.T) {
	node := newFakeStorageNode(t)
	server := httptest.NewServer(node)
	defer server.Close()

	sdk := newStreamingSDK(t, server)

	payload := deterministicPayload(1500)
	meta, err := sdk.Upload(context.Background(), "test-bucket", "one-chunk.bin", bytes.NewReader(payload))
	require.NoError(t, err)

	file := node.files["test-bucket/one-chunk.bin"]
	require.NotNil(t, file)
	require.Len(t, file.chunks, 1)
	assert.Equal(t, file.chunks[0].CID, meta.RootCID)
}

func TestUploadTooSmall(t *testing.T) {
	node := newFakeStorageNode(t)
	server := httptest.NewServer(node)
	defer server.Close()

	sdk := newStreamingSDK(t, server)

	_, err := sdk.Upload(context.Background(), "test-bucket", "tiny.bin", bytes.NewReader([]byte("tiny")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "below minimum")
	assert.Empty(t, node.files)
}

func TestUploadSkipsAlreadyStoredBlocks(t *testing.T) {
	node := newFakeStorageNode(t)
	server := httptest.NewServer(node)
	defer server.Close()

	sdk := newStreamingSDK(t, server)

	payload := deterministicPayload(3000)
	_, err := sdk.Upload(context.Background(), "test-bucket", "first.bin", bytes.NewReader(payload))
	require.NoError(t, err)
	putsAfterFirst := node.putCount
	require.Greater(t, putsAfterFirst, 0)

	// identical content addresses to identical blocks
	_, err = sdk.Upload(context.Background(), "test-bucket", "second.bin", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, putsAfterFirst, node.putCount)
}

func TestUploadDownloadEncrypted(t *testing.T) {
	node := newFakeStorageNode(t)
	server := httptest.NewServer(node)
	defer server.Close()

	key := bytes.Repeat([]byte{7}, 32)
	sdk := newStreamingSDK(t, server, WithEncryptionKey(key))

	payload := deterministicPayload(4000)
	_, err := sdk.Upload(context.Background(), "test-bucket", "secret.bin", bytes.NewReader(payload))
	require.NoError(t, err)

	for _, stored := range node.blocks {
		assert.False(t, bytes.Contains(payload, stored), "stored blocks must not expose plaintext")
	}

	var out bytes.Buffer
	require.NoError(t, sdk.Download(context.Background(), "test-bucket", "secret.bin", &out))
	assert.Equal(t, payload, out.Bytes())
}

func TestDownloadEncryptedNeedsSameKey(t *testing.T) {
	node := newFakeStorageNode(t)
	server := httptest.NewServer(node)
	defer server.Close()

	sdk := newStreamingSDK(t, server, WithEncryptionKey(bytes.Repeat([]byte{7}, 32)))
	payload := deterministicPayload(1000)
	_, err := sdk.Upload(context.Background(), "test-bucket", "secret.bin", bytes.NewReader(payload))
	require.NoError(t, err)

	other := newStreamingSDK(t, server, WithEncryptionKey(bytes.Repeat([]byte{8}, 32)))
	var out bytes.Buffer
	err = other.Download(context.Background(), "test-bucket", "secret.bin", &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decrypt")
}

func TestUploadDownloadErasureSurvivesLostBlocks(t *testing.T) {
	node := newFakeStorageNode(t)
	server := httptest.NewServer(node)
	defer server.Close()

	sdk := newStreamingSDK(t, server, WithErasureCoding(4, 2))

	payload := deterministicPayload(2000)
	_, err := sdk.Upload(context.Background(), "test-bucket", "coded.bin", bytes.NewReader(payload))
	require.NoError(t, err)

	// drop two of the six shards of the first chunk
	file := node.files["test-bucket/coded.bin"]
	require.NotNil(t, file)
	shardCIDs := node.chunkBlocks[file.chunks[0].CID]
	require.Len(t, shardCIDs, 6)
	node.mu.Lock()
	delete(node.blocks, shardCIDs[0].CID)
	delete(node.blocks, shardCIDs[3].CID)
	node.mu.Unlock()

	var out bytes.Buffer
	require.NoError(t, sdk.Download(context.Background(), "test-bucket", "coded.bin", &out))
	assert.Equal(t, payload, out.Bytes())
}

func TestDownloadDetectsCorruptedBlock(t *testing.T) {
	node := newFakeStorageNode(t)
	server := httptest.NewServer(node)
	defer server.Close()

	sdk := newStreamingSDK(t, server)

	payload := deterministicPayload(1500)
	_, err := sdk.Upload(context.Background(), "test-bucket", "tamper.bin", bytes.NewReader(payload))
	require.NoError(t, err)

	node.mu.Lock()
	for blockCID, data := range node.blocks {
		corrupted := append([]byte(nil), data...)
		corrupted[0] ^= 0xff
		node.blocks[blockCID] = corrupted
		break
	}
	node.mu.Unlock()

	var out bytes.Buffer
	err = sdk.Download(context.Background(), "test-bucket", "tamper.bin", &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CID mismatch")
}

func TestFileDeleteRemovesFile(t *testing.T) {
	node := newFakeStorageNode(t)
	server := httptest.NewServer(node)
	defer server.Close()

	sdk := newStreamingSDK(t, server)

	payload := deterministicPayload(1000)
	_, err := sdk.Upload(context.Background(), "test-bucket", "gone.bin", bytes.NewReader(payload))
	require.NoError(t, err)

	require.NoError(t, sdk.FileDelete(context.Background(), "test-bucket", "gone.bin"))

	err = sdk.Download(context.Background(), "test-bucket", "gone.bin", io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")

	err = sdk.FileDelete(context.Background(), "test-bucket", "gone.bin")
	require.Error(t, err)
}
