package sdk

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawCIDOf(t *testing.T, data []byte) string {
	t.Helper()

	c, err := rawCidBuilder.Sum(data)
	require.NoError(t, err)
	return c.String()
}

func TestUploadBlock(t *testing.T) {
	payload := randomBytes(t, 512)
	blockCID := rawCIDOf(t, payload)

	var gotBody []byte
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, blocksPath+blockCID, r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		var err error
		gotBody, err = io.ReadAll(r.Body)
		require.NoError(t, err)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	s := newTestSDK(t, WithoutRetry())
	err := s.UploadBlock(context.Background(), server.URL, FileBlockUpload{
		CID:    blockCID,
		Data:   payload,
		Permit: "permit-token",
	})
	require.NoError(t, err)
	assert.Equal(t, payload, gotBody)
	assert.Equal(t, "Bearer permit-token", gotAuth)
}

func TestDownloadBlockVerifiesCID(t *testing.T) {
	payload := randomBytes(t, 512)
	blockCID := rawCIDOf(t, payload)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, blocksPath+blockCID, r.URL.Path)
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	s := newTestSDK(t, WithoutRetry())
	data, err := s.DownloadBlock(context.Background(), FileBlockDownload{
		CID:      blockCID,
		Filecoin: &FilecoinBlockData{BaseURL: server.URL},
	})
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestDownloadBlockCorruptedPayload(t *testing.T) {
	payload := randomBytes(t, 512)
	blockCID := rawCIDOf(t, payload)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("tampered"))
	}))
	defer server.Close()

	s := newTestSDK(t, WithoutRetry())
	_, err := s.DownloadBlock(context.Background(), FileBlockDownload{
		CID:   blockCID,
		Akave: &AkaveBlockData{NodeAddress: server.URL},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CID mismatch")
}

func TestDownloadBlockRange(t *testing.T) {
	payload := []byte("0123456789abcdef")
	blockCID := rawCIDOf(t, payload)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bytes=4-7", r.Header.Get("Range"))
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(payload[4:8])
	}))
	defer server.Close()

	s := newTestSDK(t, WithoutRetry())
	data, err := s.DownloadBlockRange(context.Background(), FileBlockDownload{
		CID:      blockCID,
		Filecoin: &FilecoinBlockData{BaseURL: server.URL},
	}, 4, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("4567"), data)
}

func TestDownloadBlockFallsBackToNodeAddress(t *testing.T) {
	payload := randomBytes(t, 64)
	blockCID := rawCIDOf(t, payload)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	s, err := New(server.URL, 1, 1024, false, WithoutRetry())
	require.NoError(t, err)

	data, err := s.DownloadBlock(context.Background(), FileBlockDownload{CID: blockCID})
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}
