package absentee

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/candorlabs/go-ucankit/did"
	"github.com/candorlabs/go-ucankit/ucan/crypto/signature"
)

func TestAbsenteeSigner(t *testing.T) {
	id, err := did.Parse("did:mailto:example.com:alice")
	require.NoError(t, err)

	s := From(id)
	require.Equal(t, id, s.DID())

	sig := s.Sign([]byte("whatever"))
	require.Equal(t, uint64(signature.NonStandard), sig.Code())
	require.Empty(t, sig.Raw())
}
