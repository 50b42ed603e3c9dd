package verifier

import (
	"crypto/ed25519"
	"fmt"

	"github.com/multiformats/go-multibase"

	"github.com/candorlabs/go-ucankit/did"
	"github.com/candorlabs/go-ucankit/principal"
	"github.com/candorlabs/go-ucankit/principal/multiformat"
	"github.com/candorlabs/go-ucankit/ucan/crypto/signature"
)

// Code is the ed25519-pub multicodec code.
const Code = 0xed
const Name = "Ed25519"

const SignatureCode = signature.EdDSA
const SignatureAlgorithm = "EdDSA"

// Parse converts a did:key formatted string to an Ed25519 verifier.
func Parse(str string) (principal.Verifier, error) {
	d, err := did.Parse(str)
	if err != nil {
		return nil, fmt.Errorf("parsing DID: %w", err)
	}
	return Decode(d.Bytes())
}

// Decode converts the multiformat tagged public key to an Ed25519 verifier.
func Decode(b []byte) (principal.Verifier, error) {
	key, err := multiformat.UntagWith(Code, b, 0)
	if err != nil {
		return nil, err
	}
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key length: %d wanted: %d", len(key), ed25519.PublicKeySize)
	}
	v := make(Ed25519Verifier, len(b))
	copy(v, b)
	return v, nil
}

// FromRaw creates an Ed25519 verifier from raw public key bytes.
func FromRaw(key []byte) (principal.Verifier, error) {
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key length: %d wanted: %d", len(key), ed25519.PublicKeySize)
	}
	return Ed25519Verifier(multiformat.TagWith(Code, key)), nil
}

// Ed25519Verifier is a multiformat tagged Ed25519 public key.
type Ed25519Verifier []byte

func (v Ed25519Verifier) Code() uint64 {
	return Code
}

func (v Ed25519Verifier) DID() did.DID {
	d, _ := did.Decode(v)
	return d
}

func (v Ed25519Verifier) Verify(msg []byte, sig signature.Signature) bool {
	if sig.Code() != SignatureCode {
		return false
	}
	key, err := multiformat.UntagWith(Code, v, 0)
	if err != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(key), msg, sig.Raw())
}

func (v Ed25519Verifier) Encode() []byte {
	return v
}

// Format returns the did:key string representation of the verifier.
func Format(v principal.Verifier) (string, error) {
	str, err := multibase.Encode(multibase.Base58BTC, v.Encode())
	if err != nil {
		return "", err
	}
	return did.KeyPrefix + str, nil
}
