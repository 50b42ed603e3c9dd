package car

import (
	gobytes "bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/candorlabs/go-ucankit/core/dag/blockstore"
	"github.com/candorlabs/go-ucankit/core/ipld"
	"github.com/candorlabs/go-ucankit/core/ipld/block"
	"github.com/candorlabs/go-ucankit/core/ipld/hash/sha256"
	"github.com/candorlabs/go-ucankit/testing/helpers"

	"github.com/ipfs/go-cid"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	"github.com/multiformats/go-multicodec"
)

func rawBlock(t *testing.T, data []byte) ipld.Block {
	t.Helper()
	d, err := sha256.Hasher.Sum(data)
	require.NoError(t, err)
	c := cid.NewCidV1(uint64(multicodec.Raw), d.Bytes())
	return block.NewBlock(cidlink.Link{Cid: c}, data)
}

func TestRoundTripCAR(t *testing.T) {
	b0 := rawBlock(t, []byte("first block"))
	b1 := rawBlock(t, []byte("second block"))

	bs := helpers.Must(blockstore.NewBlockStore(blockstore.WithBlocks([]ipld.Block{b0, b1})))

	r := Encode([]ipld.Link{b1.Link()}, bs.Iterator())
	bytes, err := io.ReadAll(r)
	require.NoError(t, err)

	roots, blocks, err := Decode(gobytes.NewReader(bytes))
	require.NoError(t, err)
	require.Len(t, roots, 1)
	require.Equal(t, b1.Link().String(), roots[0].String())

	var links []string
	for blk, err := range blocks {
		require.NoError(t, err)
		links = append(links, blk.Link().String())
	}
	require.Equal(t, []string{b0.Link().String(), b1.Link().String()}, links)
}

func TestDecodeCorruptBlock(t *testing.T) {
	b0 := rawBlock(t, []byte("first block"))
	// claim the CID of b0 but provide different bytes
	bad := block.NewBlock(b0.Link(), []byte("tampered bytes"))

	bs := helpers.Must(blockstore.NewBlockStore(blockstore.WithBlocks([]ipld.Block{bad})))
	bytes, err := io.ReadAll(Encode([]ipld.Link{bad.Link()}, bs.Iterator()))
	require.NoError(t, err)

	_, blocks, err := Decode(gobytes.NewReader(bytes))
	require.NoError(t, err)

	for _, err := range blocks {
		require.Error(t, err)
		return
	}
	t.Fatal("expected a content integrity error")
}
