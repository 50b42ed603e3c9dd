package datamodel_test

import (
	"testing"

	"github.com/ipfs/go-cid"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	"github.com/stretchr/testify/require"

	adm "github.com/candorlabs/go-ucankit/core/delegation/datamodel"
	"github.com/candorlabs/go-ucankit/core/ipld/block"
	"github.com/candorlabs/go-ucankit/core/ipld/codec/cbor"
	"github.com/candorlabs/go-ucankit/core/ipld/hash/sha256"
)

func TestEncodeDecode(t *testing.T) {
	l := cidlink.Link{Cid: cid.MustParse("bafkreiem4twkqzsq2aj4shbycd4yvoj2cx72vezicletlhi7dijjciqpui")}
	m0 := adm.ArchiveModel{
		Ucan0_9_1: l,
	}
	mblk, err := block.Encode(&m0, adm.Type(), cbor.Codec, sha256.Hasher)
	require.NoError(t, err)

	m1 := adm.ArchiveModel{}
	err = block.Decode(mblk, &m1, adm.Type(), cbor.Codec, sha256.Hasher)
	require.NoError(t, err)
	require.Equal(t, l.String(), m1.Ucan0_9_1.String())
}
