package ipld

import (
	"iter"

	"github.com/ipld/go-ipld-prime"

	"github.com/candorlabs/go-ucankit/core/ipld/block"
)

type Link = ipld.Link
type Block = block.Block
type Node = ipld.Node

// Builder can be converted to an IPLD node.
type Builder interface {
	ToIPLD() (Node, error)
}

// View represents a materialized IPLD DAG view, which provides a generic
// traversal API. It is useful for encoding (potentially partial) IPLD DAGs
// into content archives (e.g. CARs).
type View interface {
	// Root is the root block of the IPLD DAG this is the view of. This is the
	// block from which all other blocks are linked directly or transitively.
	Root() Block
	// Blocks returns an iterator of all the IPLD blocks that are included in
	// this view.
	//
	// It is RECOMMENDED that implementations return blocks in bottom up order
	// (i.e. leaf blocks first, root block last).
	//
	// Iterator MUST include the root block otherwise it will lead encoders into
	// omitting it when encoding the view into a CAR archive.
	Blocks() iter.Seq2[Block, error]
}
