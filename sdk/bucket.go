package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	logging "github.com/ipfs/go-log/v2"
)

var logger = logging.Logger("sdk")

type jsonrpcMessage struct {
	Version string          `json:"jsonrpc,omitempty"`
	ID      int             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *jsonrpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func wrapJsonRpc(method string, param []byte) []byte {
	// compose json-rpc request
	request := &jsonrpcMessage{
		Version: "2.0",
		ID:      1,
		Method:  method,
		Params:  json.RawMessage(param),
	}
	r, e := json.Marshal(request)
	if e != nil {
		logger.Error("json marshal error", e)
		return nil
	}
	return r
}

type nodeRPC struct {
	httpRpcURL string
	timeout    time.Duration
	client     *http.Client
}

func newNodeRPC(address string, timeout time.Duration, useConnectionPool bool) *nodeRPC {
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	if timeout <= 0 {
		timeout = DefaultConnectionTimeout
	}

	transport := http.DefaultTransport
	if !useConnectionPool {
		transport = &http.Transport{DisableKeepAlives: true}
	}

	return &nodeRPC{
		httpRpcURL: address,
		timeout:    timeout,
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

func (rpc *nodeRPC) close() {
	rpc.client.CloseIdleConnections()
}

func (rpc *nodeRPC) sendRequest(ctx context.Context, method string, param any, res any) error {
	var params []any
	params = append(params, param)
	pm, err := json.Marshal(params)
	if err != nil {
		logger.Error("failed marshal param for " + method)
		return err
	}

	// wrap to the json-rpc message
	request := wrapJsonRpc(method, pm)

	if len(request) < 300 {
		logger.Debug("--> ", string(request))
	} else {
		logger.Debug("--> ", string(request[:230]), "... \"}]}")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", rpc.httpRpcURL, bytes.NewBuffer(request))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := rpc.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			logger.Warnf("%s timed out after %s", method, rpc.timeout)
			return &SDKError{
				Method: method,
				Detail: fmt.Sprintf("request timed out after %s", rpc.timeout),
				Err:    err,
			}
		}
		return err
	}

	body, _ := io.ReadAll(resp.Body)
	if len(body) < 300 {
		logger.Debug("<-- ", string(body))
	} else {
		logger.Debug("<-- ", string(body[:230]), "... \"}]}")
	}

	resp.Body.Close()

	if len(body) == 0 {
		logger.Error("empty body after read buffer")
		return fmt.Errorf("empty response body")
	}

	var rsp jsonrpcMessage
	if err := json.Unmarshal(body, &rsp); err != nil {
		return err
	}
	if rsp.Error != nil {
		return &SDKError{Method: method, Detail: rsp.Error.Message, Err: rsp.Error}
	}

	if res == nil {
		return nil
	}
	if err := json.Unmarshal(rsp.Result, res); err != nil {
		logger.Error("unmarshal failed")
		return err
	}
	return nil
}

type bucketCreateRequest struct {
	Name string `json:"name"`
}

type bucketViewRequest struct {
	BucketName string `json:"bucketName"`
}

type bucketDeleteRequest struct {
	Name string `json:"name"`
}

type bucketResponse struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type fileListRequest struct {
	BucketName string `json:"bucketName"`
}

type fileViewRequest struct {
	BucketName string `json:"bucketName"`
	FileName   string `json:"fileName"`
}

type fileListItemResponse struct {
	RootCID     string    `json:"rootCid"`
	Name        string    `json:"name"`
	Size        uint64    `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
	DataBlocks  int       `json:"dataBlocks"`
	TotalBlocks int       `json:"totalBlocks"`
}

type fileMetaResponse struct {
	StreamID    string    `json:"streamId"`
	RootCID     string    `json:"rootCid"`
	BucketName  string    `json:"bucketName"`
	Name        string    `json:"name"`
	EncodedSize uint64    `json:"encodedSize"`
	Size        uint64    `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
	CommittedAt time.Time `json:"committedAt"`
	DataBlocks  int       `json:"dataBlocks"`
	TotalBlocks int       `json:"totalBlocks"`
}

// BucketClient talks to a node's bucket and file metadata API.
type BucketClient struct {
	rpc *nodeRPC
}

func newBucketClient(rpc *nodeRPC) *BucketClient {
	return &BucketClient{rpc: rpc}
}

// Create registers a new bucket under the given name.
func (c *BucketClient) Create(ctx context.Context, name string) (*BucketCreateResult, error) {
	if err := validateBucketName("BucketCreate", name); err != nil {
		return nil, err
	}

	var res bucketResponse
	if err := c.rpc.sendRequest(ctx, "BucketCreate", bucketCreateRequest{Name: name}, &res); err != nil {
		return nil, err
	}
	return &BucketCreateResult{Name: res.Name, CreatedAt: res.CreatedAt}, nil
}

// View fetches a bucket's metadata.
func (c *BucketClient) View(ctx context.Context, name string) (*Bucket, error) {
	if err := validateBucketName("BucketView", name); err != nil {
		return nil, err
	}

	var res bucketResponse
	if err := c.rpc.sendRequest(ctx, "BucketView", bucketViewRequest{BucketName: name}, &res); err != nil {
		return nil, err
	}
	return &Bucket{Name: res.Name, CreatedAt: res.CreatedAt}, nil
}

// Delete removes an empty bucket.
func (c *BucketClient) Delete(ctx context.Context, name string) error {
	if err := validateBucketName("BucketDelete", name); err != nil {
		return err
	}
	return c.rpc.sendRequest(ctx, "BucketDelete", bucketDeleteRequest{Name: name}, nil)
}

// List returns all buckets of the caller.
func (c *BucketClient) List(ctx context.Context) ([]Bucket, error) {
	var res []bucketResponse
	if err := c.rpc.sendRequest(ctx, "BucketList", struct{}{}, &res); err != nil {
		return nil, err
	}

	buckets := make([]Bucket, 0, len(res))
	for _, b := range res {
		buckets = append(buckets, Bucket{Name: b.Name, CreatedAt: b.CreatedAt})
	}
	return buckets, nil
}

// ListFiles returns the file listing of a bucket.
func (c *BucketClient) ListFiles(ctx context.Context, bucketName string) ([]FileListItem, error) {
	if err := validateBucketName("FileList", bucketName); err != nil {
		return nil, err
	}

	var res []fileListItemResponse
	if err := c.rpc.sendRequest(ctx, "FileList", fileListRequest{BucketName: bucketName}, &res); err != nil {
		return nil, err
	}

	files := make([]FileListItem, 0, len(res))
	for _, f := range res {
		files = append(files, FileListItem{
			RootCID:     f.RootCID,
			Name:        f.Name,
			Size:        f.Size,
			CreatedAt:   f.CreatedAt,
			DataBlocks:  f.DataBlocks,
			TotalBlocks: f.TotalBlocks,
		})
	}
	return files, nil
}

// FileInfo fetches a single file's metadata.
func (c *BucketClient) FileInfo(ctx context.Context, bucketName, fileName string) (*FileMeta, error) {
	if err := validateBucketName("FileView", bucketName); err != nil {
		return nil, err
	}
	if fileName == "" {
		return nil, &SDKError{Method: "FileView", Detail: "empty file name"}
	}

	var res fileMetaResponse
	if err := c.rpc.sendRequest(ctx, "FileView", fileViewRequest{BucketName: bucketName, FileName: fileName}, &res); err != nil {
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

func validateBucketName(method, name string) error {
	if len(name) < MinBucketNameLength {
		return &SDKError{
			Method: method,
			Detail: fmt.Sprintf("invalid bucket name %q, must be at least %d characters (got %d)",
				name, MinBucketNameLength, len(name)),
		}
	}
	return nil
}
