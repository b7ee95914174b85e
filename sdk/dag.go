package sdk

import (
	"context"
	"fmt"
	"io"

	merkledag "github.com/ipfs/boxo/ipld/merkledag"
	ft "github.com/ipfs/boxo/ipld/unixfs"
	cid "github.com/ipfs/go-cid"
	ipld "github.com/ipfs/go-ipld-format"
	mh "github.com/multiformats/go-multihash"

	"github.com/akave-ai/akavesdk/private/encryption"
)

var (
	rawCidBuilder   = cid.V1Builder{Codec: cid.Raw, MhType: mh.SHA2_256}
	dagPBCidBuilder = cid.V1Builder{Codec: cid.DagProtobuf, MhType: mh.SHA2_256}
)

// encryption context bound into every encrypted DAG payload
var dagEncryptionInfo = []byte("dag_encryption")

type dagLink struct {
	cid           cid.Cid
	protoNodeSize uint64
}

// DAGRoot accumulates chunk links and finalizes them into the file's root
// node. A single-chunk file collapses to the chunk CID itself.
type DAGRoot struct {
	links         []dagLink
	totalFileSize uint64
}

// NewDAGRoot returns an empty root builder.
func NewDAGRoot() *DAGRoot {
	return &DAGRoot{}
}

// AddLink appends a chunk link. rawDataSize is the chunk payload as read
// from disk, protoNodeSize the encoded size recorded as the link Tsize.
func (r *DAGRoot) AddLink(chunkCID cid.Cid, rawDataSize, protoNodeSize uint64) {
	r.links = append(r.links, dagLink{cid: chunkCID, protoNodeSize: protoNodeSize})
	r.totalFileSize += rawDataSize
}

// Build finalizes the root CID over all added chunks.
func (r *DAGRoot) Build() (cid.Cid, error) {
	switch len(r.links) {
	case 0:
		return cid.Undef, fmt.Errorf("no chunks added")
	case 1:
		return r.links[0].cid, nil
	}

	node := merkledag.NodeWithData(ft.FilePBData(nil, r.totalFileSize))
	node.SetCidBuilder(dagPBCidBuilder)
	for i, link := range r.links {
		if err := node.AddRawLink("", &ipld.Link{Size: link.protoNodeSize, Cid: link.cid}); err != nil {
			return cid.Undef, fmt.Errorf("failed to link chunk %d: %w", i, err)
		}
	}
	return node.Cid(), nil
}

// ChunkDAG is a single chunk's DAG: its CID, blocks and sizes.
type ChunkDAG struct {
	CID           cid.Cid
	RawDataSize   uint64
	ProtoNodeSize uint64
	Blocks        []FileBlockUpload

	// encoded chunk node, empty when the chunk collapsed to its only block
	protoNodeData []byte
}

// BuildDAG reads the whole chunk payload, optionally encrypts it, splits it
// into blocks of at most blockSize and computes the chunk CID. A one-block
// chunk collapses to the block CID.
func BuildDAG(ctx context.Context, reader io.Reader, blockSize int64, encryptionKey []byte) (*ChunkDAG, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk data: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty data")
	}
	rawDataSize := uint64(len(data))

	if len(encryptionKey) > 0 {
		data, err = encryption.Encrypt(encryptionKey, data, dagEncryptionInfo)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt chunk data: %w", err)
		}
	}

	var (
		blocks    []FileBlockUpload
		blockCIDs []cid.Cid
	)
	for offset := int64(0); offset < int64(len(data)); offset += blockSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := offset + blockSize
		if end > int64(len(data)) {
			end = int64(len(data))
		}
		blockData := data[offset:end]

		blockCID, err := rawCidBuilder.Sum(blockData)
		if err != nil {
			return nil, fmt.Errorf("failed to hash block: %w", err)
		}
		blockCIDs = append(blockCIDs, blockCID)
		blocks = append(blocks, FileBlockUpload{CID: blockCID.String(), Data: blockData})
	}

	if len(blocks) == 1 {
		return &ChunkDAG{
			CID:           blockCIDs[0],
			RawDataSize:   rawDataSize,
			ProtoNodeSize: uint64(len(blocks[0].Data)),
			Blocks:        blocks,
		}, nil
	}

	node := merkledag.NodeWithData(nil)
	node.SetCidBuilder(dagPBCidBuilder)
	for i, blockCID := range blockCIDs {
		if err := node.AddRawLink("", &ipld.Link{Size: uint64(len(blocks[i].Data)), Cid: blockCID}); err != nil {
			return nil, fmt.Errorf("failed to link block %d: %w", i, err)
		}
	}

	return &ChunkDAG{
		CID:           node.Cid(),
		RawDataSize:   rawDataSize,
		ProtoNodeSize: uint64(len(node.RawData())),
		Blocks:        blocks,
		protoNodeData: node.RawData(),
	}, nil
}

// ExtractBlockData unwraps a downloaded block back to its payload. Raw
// blocks pass through, dag-pb blocks yield their UnixFS data field.
func ExtractBlockData(blockCID string, data []byte) ([]byte, error) {
	c, err := cid.Decode(blockCID)
	if err != nil {
		return nil, fmt.Errorf("failed to decode block CID: %w", err)
	}

	switch c.Prefix().Codec {
	case cid.Raw:
		return data, nil
	case cid.DagProtobuf:
		node, err := merkledag.DecodeProtobuf(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode dag-pb block: %w", err)
		}
		fsNode, err := ft.FSNodeFromBytes(node.Data())
		if err != nil {
			return nil, fmt.Errorf("failed to decode unixfs data: %w", err)
		}
		return fsNode.Data(), nil
	default:
		return nil, fmt.Errorf("unknown CID type: %d", c.Prefix().Codec)
	}
}

// BlockByCID finds a block by CID in an upload's block list.
func BlockByCID(blocks []FileBlockUpload, cidStr string) (FileBlockUpload, bool) {
	for _, block := range blocks {
		if block.CID == cidStr {
			return block, true
		}
	}
	return FileBlockUpload{}, false
}
