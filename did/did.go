package did

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multicodec"
	"github.com/multiformats/go-varint"
)

const Prefix = "did:"
const KeyPrefix = Prefix + "key:"

// Code is the multicodec code for DID methods that are not did:key. The
// method specific identifier is carried verbatim after the tag.
const Code = 0x0d1d

// Ed25519 and RSA public key multicodec codes, the two key types that may
// appear in a did:key.
const Ed25519 = uint64(multicodec.Ed25519Pub)
const RSA = uint64(multicodec.RsaPub)

// DID is a decentralized identifier. The zero value is Undef. Values are
// comparable with ==.
type DID struct {
	str string
}

var Undef = DID{}

// DID implements the Principal interface, allowing a DID to be used where a
// principal is expected.
func (d DID) DID() DID {
	return d
}

func (d DID) Defined() bool {
	return d.str != ""
}

// Bytes returns the multiformat tagged byte representation.
func (d DID) Bytes() []byte {
	return []byte(d.str)
}

func (d DID) String() string {
	if d.str == "" {
		return ""
	}
	b := []byte(d.str)
	code, err := varint.ReadUvarint(bytes.NewReader(b))
	if err != nil {
		return ""
	}
	if code == Code {
		return Prefix + string(b[varint.UvarintSize(code):])
	}
	str, err := multibase.Encode(multibase.Base58BTC, b)
	if err != nil {
		return ""
	}
	return KeyPrefix + str
}

func (d DID) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *DID) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	did, err := Parse(str)
	if err != nil {
		return err
	}
	*d = did
	return nil
}

// Parse converts a DID string into a DID.
func Parse(str string) (DID, error) {
	if !strings.HasPrefix(str, Prefix) {
		return Undef, fmt.Errorf("must start with 'did:', got: %s", str)
	}
	if strings.HasPrefix(str, KeyPrefix) {
		_, b, err := multibase.Decode(str[len(KeyPrefix):])
		if err != nil {
			return Undef, fmt.Errorf("decoding multibase did:key: %w", err)
		}
		return Decode(b)
	}
	suffix := str[len(Prefix):]
	b := make([]byte, varint.UvarintSize(Code)+len(suffix))
	n := varint.PutUvarint(b, Code)
	copy(b[n:], suffix)
	return DID{string(b)}, nil
}

// Decode converts a multiformat tagged byte representation into a DID.
func Decode(b []byte) (DID, error) {
	code, err := varint.ReadUvarint(bytes.NewReader(b))
	if err != nil {
		return Undef, fmt.Errorf("reading DID codec: %w", err)
	}
	switch code {
	case Ed25519, RSA, Code:
		return DID{string(b)}, nil
	default:
		return Undef, fmt.Errorf("unsupported DID codec: 0x%x", code)
	}
}
