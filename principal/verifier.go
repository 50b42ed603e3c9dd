package principal

import "github.com/candorlabs/go-ucankit/ucan"

// Verifier is a public key that can be encoded to its multiformat byte
// representation.
type Verifier interface {
	ucan.Verifier
	Code() uint64
	Encode() []byte
}
