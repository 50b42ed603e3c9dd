package ucan

import (
	"github.com/ipld/go-ipld-prime"

	"github.com/candorlabs/go-ucankit/did"
	"github.com/candorlabs/go-ucankit/ucan/crypto/signature"
)

// Resource is a string that represents a resource a UCAN holder can act upon.
// It MUST have format `${string}:${string}`.
type Resource = string

// Ability is a string that represents some action that a UCAN holder can do.
// It MUST have format `${string}/${string}` | "*"
type Ability = string

// Capability represents an ability that a UCAN holder can perform on some
// resource.
type Capability[Caveats any] interface {
	Can() Ability
	With() Resource
	Nb() Caveats
}

// UnknownCapability is a capability whose caveats have not been parsed into a
// concrete type.
type UnknownCapability interface {
	Capability[any]
	MarshalJSON() ([]byte, error)
}

// Principal is a DID object representation with a `DID` accessor for the DID.
type Principal interface {
	DID() did.DID
}

// Link is an IPLD link to UCAN data.
type Link = ipld.Link

// Version of the UCAN spec used to produce a specific UCAN.
// It MUST have format `${number}.${number}.${number}`
type Version = string

// UTCUnixTimestamp is a timestamp in seconds since the Unix epoch.
type UTCUnixTimestamp = uint64

// Nonce is a randomly generated string used to ensure uniqueness of the
// signed payload.
type Nonce = string

// Fact is a map of arbitrary facts and proofs of knowledge. The enclosed data
// MUST be self-evident and externally verifiable. It MAY include information
// such as hash preimages, server challenges, a Merkle proof, dictionary data,
// etc.
type Fact = map[string]any

// Signer is an entity that can sign UCANs with keys from a Principal.
type Signer interface {
	Principal

	// Sign takes a byte encoded message and produces a verifiable signature.
	Sign(msg []byte) signature.SignatureView

	// SignatureCode is an integer corresponding to the byteprefix of the
	// signature algorithm. It is used to tag the signature so it can self
	// describe what algorithm was used.
	SignatureCode() uint64

	// SignatureAlgorithm is the name of the signature algorithm. It is a
	// human readable equivalent of the SignatureCode and is used as the `alg`
	// field of the JWT header.
	SignatureAlgorithm() string
}

// Verifier is an entity that can verify UCAN signatures produced by a given
// principal.
type Verifier interface {
	Principal

	// Verify takes a byte encoded message and verifies that it is signed by
	// the corresponding signer.
	Verify(msg []byte, sig signature.Signature) bool
}
