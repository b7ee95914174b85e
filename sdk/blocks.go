package sdk

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/akave-ai/akavesdk/private/cids"
	"github.com/akave-ai/akavesdk/private/httpext"
)

const blocksPath = "/v1/blocks/"

func ensureHTTPScheme(address string) string {
	if strings.Contains(address, "://") {
		return address
	}
	return "http://" + address
}

func (s *SDK) blockHTTPClient(baseURL string) *httpext.Client {
	opts := []httpext.Option{httpext.WithTimeout(s.config.ConnectionTimeout)}
	if s.retryDisabled {
		opts = append(opts, httpext.WithMaxRetries(0))
	} else {
		opts = append(opts, httpext.WithMaxRetries(s.retryMaxAttempts))
	}
	return httpext.NewClient(ensureHTTPScheme(baseURL), opts...)
}

func blockBaseURL(block FileBlockDownload, fallback string) (string, error) {
	switch {
	case block.Filecoin != nil && block.Filecoin.BaseURL != "":
		return block.Filecoin.BaseURL, nil
	case block.Akave != nil && block.Akave.NodeAddress != "":
		return block.Akave.NodeAddress, nil
	case fallback != "":
		return fallback, nil
	}
	return "", fmt.Errorf("block %q carries no download location", block.CID)
}

// UploadBlock pushes a block payload to its assigned node.
func (s *SDK) UploadBlock(ctx context.Context, baseURL string, block FileBlockUpload) error {
	client := s.blockHTTPClient(baseURL)
	defer client.Close()

	headers := http.Header{}
	if block.Permit != "" {
		headers.Set("Authorization", "Bearer "+block.Permit)
	}

	if _, _, err := client.PutRaw(ctx, blocksPath+block.CID, block.Data, headers); err != nil {
		return fmt.Errorf("failed to upload block %q: %w", block.CID, err)
	}
	return nil
}

// DownloadBlock fetches a whole block from its source and verifies the
// payload against the block CID.
func (s *SDK) DownloadBlock(ctx context.Context, block FileBlockDownload) ([]byte, error) {
	baseURL, err := blockBaseURL(block, s.config.Address)
	if err != nil {
		return nil, err
	}

	client := s.blockHTTPClient(baseURL)
	defer client.Close()

	_, body, err := client.Get(ctx, blocksPath+block.CID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download block %q: %w", block.CID, err)
	}
	if err := cids.VerifyRaw(block.CID, body); err != nil {
		return nil, err
	}
	return body, nil
}

// DownloadBlockRange fetches length bytes of a block starting at offset.
// Partial content cannot be verified against the CID.
func (s *SDK) DownloadBlockRange(ctx context.Context, block FileBlockDownload, offset, length int64) ([]byte, error) {
	baseURL, err := blockBaseURL(block, s.config.Address)
	if err != nil {
		return nil, err
	}

	url := ensureHTTPScheme(baseURL) + blocksPath + block.CID
	client := &http.Client{Timeout: s.config.ConnectionTimeout}
	return httpext.RangeDownload(ctx, client, url, offset, length)
}
