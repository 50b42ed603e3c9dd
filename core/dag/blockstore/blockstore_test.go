package blockstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/candorlabs/go-ucankit/core/ipld"
	"github.com/candorlabs/go-ucankit/core/ipld/block"
	"github.com/candorlabs/go-ucankit/core/ipld/hash/sha256"

	"github.com/ipfs/go-cid"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	"github.com/multiformats/go-multicodec"
)

func rawBlock(t *testing.T, data []byte) ipld.Block {
	t.Helper()
	d, err := sha256.Hasher.Sum(data)
	require.NoError(t, err)
	return block.NewBlock(cidlink.Link{Cid: cid.NewCidV1(uint64(multicodec.Raw), d.Bytes())}, data)
}

func TestPutGet(t *testing.T) {
	bs, err := NewBlockStore()
	require.NoError(t, err)

	b := rawBlock(t, []byte("some data"))
	require.NoError(t, bs.Put(b))

	got, ok, err := bs.Get(b.Link())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, b.Bytes(), got.Bytes())

	_, ok, err = bs.Get(rawBlock(t, []byte("other")).Link())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPutIdempotent(t *testing.T) {
	bs, err := NewBlockStore()
	require.NoError(t, err)

	b := rawBlock(t, []byte("some data"))
	require.NoError(t, bs.Put(b))
	require.NoError(t, bs.Put(b))

	var count int
	for _, err := range bs.Iterator() {
		require.NoError(t, err)
		count++
	}
	require.Equal(t, 1, count)
}

func TestIterationOrder(t *testing.T) {
	b0 := rawBlock(t, []byte("zero"))
	b1 := rawBlock(t, []byte("one"))
	b2 := rawBlock(t, []byte("two"))

	bs, err := NewBlockStore(WithBlocks([]ipld.Block{b0, b1, b2}))
	require.NoError(t, err)

	var links []string
	for b, err := range bs.Iterator() {
		require.NoError(t, err)
		links = append(links, b.Link().String())
	}
	require.Equal(t, []string{b0.Link().String(), b1.Link().String(), b2.Link().String()}, links)
}

func TestNewBlockReaderDedupes(t *testing.T) {
	b := rawBlock(t, []byte("dup"))
	br, err := NewBlockReader(WithBlocks([]ipld.Block{b, b}))
	require.NoError(t, err)

	var count int
	for _, err := range br.Iterator() {
		require.NoError(t, err)
		count++
	}
	require.Equal(t, 1, count)
}
