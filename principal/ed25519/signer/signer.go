package signer

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-varint"

	"github.com/candorlabs/go-ucankit/did"
	"github.com/candorlabs/go-ucankit/principal"
	"github.com/candorlabs/go-ucankit/principal/ed25519/verifier"
	"github.com/candorlabs/go-ucankit/principal/multiformat"
	"github.com/candorlabs/go-ucankit/ucan/crypto/signature"
)

// Code is the ed25519-priv multicodec code.
const Code = 0x1300
const Name = verifier.Name

const SignatureCode = verifier.SignatureCode
const SignatureAlgorithm = verifier.SignatureAlgorithm

var privateTagSize = varint.UvarintSize(Code)
var publicTagSize = varint.UvarintSize(verifier.Code)

const keySize = 32

var size = privateTagSize + keySize + publicTagSize + keySize
var pubKeyOffset = privateTagSize + keySize

func Generate() (principal.Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating Ed25519 key: %s", err)
	}
	s := make(Ed25519Signer, size)
	varint.PutUvarint(s, Code)
	copy(s[privateTagSize:], priv.Seed())
	varint.PutUvarint(s[pubKeyOffset:], verifier.Code)
	copy(s[pubKeyOffset+publicTagSize:], pub)
	return s, nil
}

// Parse converts a multibase encoded private key string to a signer.
func Parse(str string) (principal.Signer, error) {
	_, bytes, err := multibase.Decode(str)
	if err != nil {
		return nil, fmt.Errorf("decoding multibase string: %s", err)
	}
	return Decode(bytes)
}

// Format returns the multibase (base64pad) string representation of the
// signer.
func Format(s principal.Signer) (string, error) {
	return multibase.Encode(multibase.Base64pad, s.Encode())
}

func Decode(b []byte) (principal.Signer, error) {
	if len(b) != size {
		return nil, fmt.Errorf("invalid length: %d wanted: %d", len(b), size)
	}

	_, err := multiformat.UntagWith(Code, b, 0)
	if err != nil {
		return nil, fmt.Errorf("reading private key codec: %s", err)
	}

	if _, err := verifier.Decode(b[pubKeyOffset:]); err != nil {
		return nil, fmt.Errorf("decoding public key: %s", err)
	}

	s := make(Ed25519Signer, size)
	copy(s, b)

	return s, nil
}

// FromSeed creates a signer from a raw 32 byte Ed25519 seed.
func FromSeed(seed []byte) (principal.Signer, error) {
	if len(seed) != keySize {
		return nil, fmt.Errorf("invalid seed length: %d wanted: %d", len(seed), keySize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	s := make(Ed25519Signer, size)
	varint.PutUvarint(s, Code)
	copy(s[privateTagSize:], seed)
	varint.PutUvarint(s[pubKeyOffset:], verifier.Code)
	copy(s[pubKeyOffset+publicTagSize:], priv.Public().(ed25519.PublicKey))
	return s, nil
}

// Ed25519Signer is a multiformat tagged private key seed followed by the
// multiformat tagged public key.
type Ed25519Signer []byte

func (s Ed25519Signer) Code() uint64 {
	return Code
}

func (s Ed25519Signer) SignatureCode() uint64 {
	return SignatureCode
}

func (s Ed25519Signer) SignatureAlgorithm() string {
	return SignatureAlgorithm
}

func (s Ed25519Signer) DID() did.DID {
	d, _ := did.Decode(s[pubKeyOffset:])
	return d
}

func (s Ed25519Signer) Sign(msg []byte) signature.SignatureView {
	priv := ed25519.NewKeyFromSeed(s[privateTagSize:pubKeyOffset])
	return signature.NewSignatureView(signature.NewSignature(SignatureCode, ed25519.Sign(priv, msg)))
}

func (s Ed25519Signer) Verifier() principal.Verifier {
	return verifier.Ed25519Verifier(s[pubKeyOffset:])
}

func (s Ed25519Signer) Encode() []byte {
	return s
}
