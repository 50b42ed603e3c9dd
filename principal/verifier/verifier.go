package verifier

import (
	"fmt"

	"github.com/candorlabs/go-ucankit/did"
	"github.com/candorlabs/go-ucankit/principal"
	"github.com/candorlabs/go-ucankit/ucan/crypto/signature"
)

type wrapped struct {
	id  did.DID
	key principal.Verifier
}

func (w wrapped) Code() uint64 {
	return w.key.Code()
}

func (w wrapped) DID() did.DID {
	return w.id
}

func (w wrapped) Verify(msg []byte, sig signature.Signature) bool {
	return w.key.Verify(msg, sig)
}

func (w wrapped) Encode() []byte {
	return w.key.Encode()
}

func (w wrapped) Unwrap() principal.Verifier {
	return w.key
}

// Wrap creates a verifier that represents an identity of the passed DID but
// verifies signatures with the passed key verifier. It is used when a
// principal is identified by a DID method other than did:key, after the key
// for it has been resolved.
func Wrap(key principal.Verifier, id did.DID) (principal.Verifier, error) {
	if !id.Defined() {
		return nil, fmt.Errorf("undefined DID")
	}
	return wrapped{id, key}, nil
}
