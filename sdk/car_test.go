package sdk

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkCARRoundTrip(t *testing.T) {
	ctx := context.Background()
	data := randomBytes(t, 2560)

	dag, err := BuildDAG(ctx, bytes.NewReader(data), 1024, nil)
	require.NoError(t, err)
	require.Len(t, dag.Blocks, 3)

	var buf bytes.Buffer
	require.NoError(t, dag.WriteCAR(ctx, &buf))

	store, roots, err := ImportCAR(ctx, &buf)
	require.NoError(t, err)

	require.Len(t, roots, 1)
	assert.True(t, dag.CID.Equals(roots[0]))
	// chunk node plus three leaf blocks
	assert.Equal(t, 4, store.Len())

	block, err := store.Get(ctx, dag.CID)
	require.NoError(t, err)
	assert.Equal(t, dag.protoNodeData, block.RawData())
}

func TestChunkCARSingleBlock(t *testing.T) {
	ctx := context.Background()

	dag, err := BuildDAG(ctx, bytes.NewReader(randomBytes(t, 100)), 1024, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, dag.WriteCAR(ctx, &buf))

	store, roots, err := ImportCAR(ctx, &buf)
	require.NoError(t, err)

	require.Len(t, roots, 1)
	assert.True(t, dag.CID.Equals(roots[0]))
	assert.Equal(t, 1, store.Len())

	block, err := store.Get(ctx, dag.CID)
	require.NoError(t, err)
	assert.Equal(t, dag.Blocks[0].Data, block.RawData())
}

func TestImportCARInvalidStream(t *testing.T) {
	_, _, err := ImportCAR(context.Background(), bytes.NewReader([]byte("not a car stream")))
	require.Error(t, err)
}

func TestCARStoreMissingBlock(t *testing.T) {
	ctx := context.Background()
	store := NewCARStore()

	dag, err := BuildDAG(ctx, bytes.NewReader(randomBytes(t, 64)), 1024, nil)
	require.NoError(t, err)

	_, err = store.Get(ctx, dag.CID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
