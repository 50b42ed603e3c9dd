package principal

import "github.com/candorlabs/go-ucankit/ucan"

// Signer is a signing key pair that can be encoded to its multiformat byte
// representation.
type Signer interface {
	ucan.Signer
	Code() uint64
	Verifier() Verifier
	Encode() []byte
}
