package block

import (
	"testing"

	"github.com/ipld/go-ipld-prime"
	"github.com/ipld/go-ipld-prime/schema"
	"github.com/stretchr/testify/require"

	"github.com/candorlabs/go-ucankit/core/ipld/codec/cbor"
	"github.com/candorlabs/go-ucankit/core/ipld/hash/sha256"
)

type testModel struct {
	Name  string
	Count int64
}

var testTyp = func() *schema.TypeSystem {
	ts, err := ipld.LoadSchemaBytes([]byte(`
		type TestModel struct {
			name String
			count Int
		}
	`))
	if err != nil {
		panic(err)
	}
	return ts
}()

func TestEncodeDecodeBlock(t *testing.T) {
	m0 := testModel{Name: "thing", Count: 3}
	blk, err := Encode(&m0, testTyp.TypeByName("TestModel"), cbor.Codec, sha256.Hasher)
	require.NoError(t, err)
	require.NotEmpty(t, blk.Bytes())

	m1 := testModel{}
	err = Decode(blk, &m1, testTyp.TypeByName("TestModel"), cbor.Codec, sha256.Hasher)
	require.NoError(t, err)
	require.Equal(t, m0, m1)
}

func TestEncodeDeterministic(t *testing.T) {
	m := testModel{Name: "thing", Count: 3}
	b0, err := Encode(&m, testTyp.TypeByName("TestModel"), cbor.Codec, sha256.Hasher)
	require.NoError(t, err)
	b1, err := Encode(&m, testTyp.TypeByName("TestModel"), cbor.Codec, sha256.Hasher)
	require.NoError(t, err)
	require.Equal(t, b0.Link().String(), b1.Link().String())
	require.Equal(t, b0.Bytes(), b1.Bytes())
}
