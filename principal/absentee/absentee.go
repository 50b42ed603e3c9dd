package absentee

import (
	"github.com/candorlabs/go-ucankit/did"
	"github.com/candorlabs/go-ucankit/ucan"
	"github.com/candorlabs/go-ucankit/ucan/crypto/signature"
)

type absentee struct {
	id did.DID
}

func (a absentee) DID() did.DID {
	return a.id
}

func (a absentee) Sign(msg []byte) signature.SignatureView {
	return signature.NewSignatureView(signature.NewNonStandard(a.SignatureAlgorithm(), []byte{}))
}

func (a absentee) SignatureAlgorithm() string {
	return ""
}

func (a absentee) SignatureCode() uint64 {
	return signature.NonStandard
}

// From creates a special type of signer that produces an absent signature,
// which signals that the verifier needs to verify authorization via an
// attestation session instead.
func From(id did.DID) ucan.Signer {
	return absentee{id}
}
