package sdk

import (
	"context"
	"fmt"
	"io"

	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	gocar "github.com/ipld/go-car"
	gocarv2 "github.com/ipld/go-car/v2"
	selectorparse "github.com/ipld/go-ipld-prime/traversal/selector/parse"
)

// SoftBlockLimit caps a single block carried in a CAR stream.
const SoftBlockLimit = 1024 * 1024

// CARStore is an in-memory block source for CAR import and export.
type CARStore struct {
	blocks map[string]blocks.Block
}

// NewCARStore returns an empty store.
func NewCARStore() *CARStore {
	return &CARStore{blocks: make(map[string]blocks.Block)}
}

// Put adds a block under its CID.
func (s *CARStore) Put(c cid.Cid, data []byte) error {
	block, err := blocks.NewBlockWithCid(data, c)
	if err != nil {
		return fmt.Errorf("failed to wrap block %q: %w", c, err)
	}
	s.blocks[c.KeyString()] = block
	return nil
}

// Get returns the block stored under a CID.
func (s *CARStore) Get(_ context.Context, c cid.Cid) (blocks.Block, error) {
	block, ok := s.blocks[c.KeyString()]
	if !ok {
		return nil, fmt.Errorf("block %q not found", c)
	}
	return block, nil
}

// Len reports the number of stored blocks.
func (s *CARStore) Len() int {
	return len(s.blocks)
}

// ExportCAR writes the DAG under root as a CARv1 stream, traversing every
// link exactly once.
func ExportCAR(ctx context.Context, store *CARStore, root cid.Cid, w io.Writer) error {
	dag := gocar.Dag{Root: root, Selector: selectorparse.CommonSelector_ExploreAllRecursively}
	// TraverseLinksOnlyOnce is safe for an exhaustive selector
	car := gocar.NewSelectiveCar(ctx, store, []gocar.Dag{dag}, gocar.TraverseLinksOnlyOnce())
	if err := car.Write(w); err != nil {
		return fmt.Errorf("failed to write CAR: %w", err)
	}
	return nil
}

// ImportCAR reads a CAR stream into a store and returns it with the
// stream's roots.
func ImportCAR(ctx context.Context, r io.Reader) (*CARStore, []cid.Cid, error) {
	// remember last valid block and provide a meaningful error message
	// when a truncated/mangled CAR is being imported
	importError := func(previous blocks.Block, current blocks.Block, err error) error {
		if current != nil {
			return fmt.Errorf("import failed at block %q: %w", current.Cid(), err)
		}
		if previous != nil {
			return fmt.Errorf("import failed after block %q: %w", previous.Cid(), err)
		}
		return fmt.Errorf("import failed: %w", err)
	}

	car, err := gocarv2.NewBlockReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open CAR stream: %w", err)
	}

	store := NewCARStore()
	var previous blocks.Block

	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		block, err := car.Next()
		if err != nil && err != io.EOF {
			return nil, nil, importError(previous, block, err)
		} else if block == nil {
			break
		}
		if len(block.RawData()) > SoftBlockLimit {
			return nil, nil, importError(previous, block, fmt.Errorf("block is over 1MiB"))
		}

		store.blocks[block.Cid().KeyString()] = block
		previous = block
	}

	return store, car.Roots, nil
}

// WriteCAR serializes the chunk's DAG as a CARv1 stream rooted at the chunk
// CID.
func (d *ChunkDAG) WriteCAR(ctx context.Context, w io.Writer) error {
	store := NewCARStore()
	for _, block := range d.Blocks {
		c, err := cid.Decode(block.CID)
		if err != nil {
			return fmt.Errorf("failed to decode block CID: %w", err)
		}
		if err := store.Put(c, block.Data); err != nil {
			return err
		}
	}
	if len(d.protoNodeData) > 0 {
		if err := store.Put(d.CID, d.protoNodeData); err != nil {
			return err
		}
	}
	return ExportCAR(ctx, store, d.CID, w)
}
