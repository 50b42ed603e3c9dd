package signature

import "github.com/candorlabs/go-ucankit/did"

// Verifier validates that signatures were produced by the corresponding
// signer.
type Verifier interface {
	DID() did.DID
	// Verify takes a byte encoded message and verifies that it is signed by
	// the corresponding signer.
	Verify(msg []byte, sig Signature) bool
}
