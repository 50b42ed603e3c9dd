package block

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	"github.com/ipld/go-ipld-prime/node/bindnode"
	"github.com/ipld/go-ipld-prime/schema"

	"github.com/candorlabs/go-ucankit/core/ipld/codec"
	"github.com/candorlabs/go-ucankit/core/ipld/hash"
)

type Block interface {
	Link() ipld.Link
	Bytes() []byte
}

type block struct {
	link  ipld.Link
	bytes []byte
}

func (b *block) Link() ipld.Link {
	return b.link
}

func (b *block) Bytes() []byte {
	return b.bytes
}

// NewBlock creates a block from a link and its bytes. No verification is
// performed that the link is a valid content address for the bytes.
func NewBlock(link ipld.Link, bytes []byte) Block {
	return &block{link, bytes}
}

// Encode serializes a bindnode compatible value under the given codec, hashes
// the bytes and returns the content addressed block.
func Encode(value any, typ schema.Type, enc codec.Encoder, hasher hash.Hasher, opts ...bindnode.Option) (Block, error) {
	b, err := enc.Encode(value, typ, opts...)
	if err != nil {
		return nil, fmt.Errorf("encoding block: %w", err)
	}
	d, err := hasher.Sum(b)
	if err != nil {
		return nil, fmt.Errorf("hashing block bytes: %w", err)
	}
	c := cid.NewCidV1(enc.Code(), d.Bytes())
	return &block{cidlink.Link{Cid: c}, b}, nil
}

// Decode deserializes a block's bytes into a bindnode compatible value.
func Decode(b Block, bind any, typ schema.Type, dec codec.Decoder, hasher hash.Hasher, opts ...bindnode.Option) error {
	return dec.Decode(b.Bytes(), bind, typ, opts...)
}
