package codec

import (
	"github.com/ipld/go-ipld-prime/node/bindnode"
	"github.com/ipld/go-ipld-prime/schema"
)

// Encoder encodes a bindnode compatible value to bytes under a multicodec.
type Encoder interface {
	// Code is the multicodec code of the encoding.
	Code() uint64
	Encode(val any, typ schema.Type, opts ...bindnode.Option) ([]byte, error)
}

// Decoder decodes bytes into a bindnode compatible value.
type Decoder interface {
	Decode(b []byte, bind any, typ schema.Type, opts ...bindnode.Option) error
}

type Codec interface {
	Encoder
	Decoder
}
