package car

import (
	"bufio"
	"fmt"
	"io"
	"iter"

	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	"github.com/ipld/go-car/util"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"

	"github.com/candorlabs/go-ucankit/core/ipld"
	"github.com/candorlabs/go-ucankit/core/ipld/block"
)

// ContentType is the value the HTTP Content-Type header should have for CARs.
// See https://www.iana.org/assignments/media-types/application/vnd.ipld.car
const ContentType = "application/vnd.ipld.car"

func init() {
	cbor.RegisterCborType(carHeader{})
}

type carHeader struct {
	Roots   []cid.Cid
	Version uint64
}

// Encode writes a CARv1 formatted stream with the given roots and blocks.
func Encode(roots []ipld.Link, blocks iter.Seq2[ipld.Block, error]) io.Reader {
	reader, writer := io.Pipe()
	go func() {
		var rts []cid.Cid
		for _, r := range roots {
			l, ok := r.(cidlink.Link)
			if !ok {
				writer.CloseWithError(fmt.Errorf("unsupported root link type: %T", r))
				return
			}
			rts = append(rts, l.Cid)
		}
		h := carHeader{Roots: rts, Version: 1}
		hb, err := cbor.DumpObject(&h)
		if err != nil {
			writer.CloseWithError(fmt.Errorf("writing CAR header: %s", err))
			return
		}
		if err := util.LdWrite(writer, hb); err != nil {
			writer.CloseWithError(fmt.Errorf("writing CAR header: %s", err))
			return
		}
		for blk, err := range blocks {
			if err != nil {
				writer.CloseWithError(fmt.Errorf("iterating CAR blocks: %s", err))
				return
			}
			if err := util.LdWrite(writer, []byte(blk.Link().Binary()), blk.Bytes()); err != nil {
				writer.CloseWithError(fmt.Errorf("writing CAR block: %s", err))
				return
			}
		}
		writer.Close()
	}()
	return reader
}

// Decode reads a CARv1 formatted stream, returning the roots and an iterator
// over the blocks. Block content is verified against the block's CID as it is
// read.
func Decode(reader io.Reader) ([]ipld.Link, iter.Seq2[ipld.Block, error], error) {
	br := bufio.NewReader(reader)

	hb, err := util.LdRead(br)
	if err != nil {
		return nil, nil, fmt.Errorf("reading CAR header: %w", err)
	}

	var ch carHeader
	if err := cbor.DecodeInto(hb, &ch); err != nil {
		return nil, nil, fmt.Errorf("invalid CAR header: %w", err)
	}

	if ch.Version != 1 {
		return nil, nil, fmt.Errorf("invalid CAR version: %d", ch.Version)
	}

	var roots []ipld.Link
	for _, r := range ch.Roots {
		roots = append(roots, cidlink.Link{Cid: r})
	}

	return roots, func(yield func(ipld.Block, error) bool) {
		for {
			c, bytes, err := util.ReadNode(br)
			if err != nil {
				if err != io.EOF {
					yield(nil, err)
				}
				return
			}

			hashed, err := c.Prefix().Sum(bytes)
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			if !hashed.Equals(c) {
				err := fmt.Errorf("content integrity mismatch, name: %s, data: %s", c, hashed)
				if !yield(nil, err) {
					return
				}
				continue
			}

			if !yield(block.NewBlock(cidlink.Link{Cid: c}, bytes), nil) {
				return
			}
		}
	}, nil
}
