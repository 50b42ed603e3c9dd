package ucan

import (
	"github.com/candorlabs/go-ucankit/did"
	"github.com/candorlabs/go-ucankit/ucan/crypto/signature"
	udm "github.com/candorlabs/go-ucankit/ucan/datamodel/ucan"
)

type UCAN interface {
	// Issuer is the signer of the UCAN.
	Issuer() Principal
	// Audience is the principal delegated to.
	Audience() Principal
	// Version is the spec version the UCAN conforms to.
	Version() Version
	// Capabilities are claimed abilities that can be performed on a resource.
	Capabilities() []Capability[any]
	// Expiration is the time in seconds since the Unix epoch that the UCAN
	// becomes invalid. It is nil when the UCAN never expires.
	Expiration() *UTCUnixTimestamp
	// NotBefore is the time in seconds since the Unix epoch that the UCAN
	// becomes valid, or zero when valid from issuance.
	NotBefore() UTCUnixTimestamp
	// Nonce is a randomly generated string used to ensure the uniqueness of
	// the token.
	Nonce() Nonce
	// Facts are arbitrary facts and proofs of knowledge.
	Facts() []Fact
	// Proofs of delegation.
	Proofs() []Link
	// Signature of the UCAN issuer.
	Signature() signature.SignatureView
}

// View represents a decoded "view" of a UCAN that can be used in your domain
// logic, etc.
type View interface {
	UCAN
	// Model references the underlying IPLD datamodel instance.
	Model() *udm.UCANModel
}

type ucanView struct {
	model *udm.UCANModel
}

var _ View = (*ucanView)(nil)

func (v *ucanView) Issuer() Principal {
	d, _ := did.Decode(v.model.Iss)
	return d
}

func (v *ucanView) Audience() Principal {
	d, _ := did.Decode(v.model.Aud)
	return d
}

func (v *ucanView) Capabilities() []Capability[any] {
	caps := []Capability[any]{}
	for _, c := range v.model.Att {
		caps = append(caps, NewCapability[any](c.Can, c.With, any(c.Nb)))
	}
	return caps
}

func (v *ucanView) Expiration() *uint64 {
	return v.model.Exp
}

func (v *ucanView) NotBefore() uint64 {
	if v.model.Nbf == nil {
		return 0
	}
	return *v.model.Nbf
}

func (v *ucanView) Nonce() string {
	if v.model.Nnc == nil {
		return ""
	}
	return *v.model.Nnc
}

func (v *ucanView) Facts() []map[string]any {
	facts := []map[string]any{}
	for _, f := range v.model.Fct {
		fact := map[string]any{}
		for k, n := range f.Values {
			fact[k] = n
		}
		facts = append(facts, fact)
	}
	return facts
}

func (v *ucanView) Proofs() []Link {
	return v.model.Prf
}

func (v *ucanView) Signature() signature.SignatureView {
	return signature.NewSignatureView(signature.Decode(v.model.S))
}

func (v *ucanView) Version() string {
	return v.model.V
}

func (v *ucanView) Model() *udm.UCANModel {
	return v.model
}

// NewUCAN creates a UCAN view from the underlying data model. Please note
// that this function does no verification of the model and it is the callers
// responsibility to ensure the model contains all required fields and that
// the signature was produced over the canonical serialization.
//
// In other words you should never use this function unless you've parsed or
// decoded a valid UCAN and want to wrap it into a view.
func NewUCAN(model *udm.UCANModel) (View, error) {
	return &ucanView{model}, nil
}
