package validator

import (
	"github.com/candorlabs/go-ucankit/core/delegation"
	"github.com/candorlabs/go-ucankit/ucan"
)

// Authorization is a valid proof chain for a claimed capability. Proofs run
// from the claim toward the self issued delegation at the root of the chain.
type Authorization[Caveats any] interface {
	Capability() ucan.Capability[Caveats]
	// Delegation is the delegation the capability was claimed from.
	Delegation() delegation.Delegation
	Issuer() ucan.Principal
	Audience() ucan.Principal
	// Proofs are the authorizations of the next step up the chain. Empty for
	// a self issued capability.
	Proofs() []Authorization[Caveats]
}

type authorization[Caveats any] struct {
	match  Match[Caveats]
	proofs []Authorization[Caveats]
}

func (a authorization[Caveats]) Capability() ucan.Capability[Caveats] {
	return a.match.Value()
}

func (a authorization[Caveats]) Delegation() delegation.Delegation {
	return a.match.Proofs()[0]
}

func (a authorization[Caveats]) Issuer() ucan.Principal {
	return a.Delegation().Issuer()
}

func (a authorization[Caveats]) Audience() ucan.Principal {
	return a.Delegation().Audience()
}

func (a authorization[Caveats]) Proofs() []Authorization[Caveats] {
	return a.proofs
}

func NewAuthorization[Caveats any](match Match[Caveats], proofs []Authorization[Caveats]) Authorization[Caveats] {
	return authorization[Caveats]{match, proofs}
}

type anyAuthorization struct {
	capability ucan.Capability[any]
	delegation delegation.Delegation
	proofs     []Authorization[any]
}

func (a anyAuthorization) Capability() ucan.Capability[any] {
	return a.capability
}

func (a anyAuthorization) Delegation() delegation.Delegation {
	return a.delegation
}

func (a anyAuthorization) Issuer() ucan.Principal {
	return a.delegation.Issuer()
}

func (a anyAuthorization) Audience() ucan.Principal {
	return a.delegation.Audience()
}

func (a anyAuthorization) Proofs() []Authorization[any] {
	return a.proofs
}

// ConvertUnknownAuthorization erases the caveat type of an authorization,
// allowing it to be passed to an untyped revocation checker.
func ConvertUnknownAuthorization[Caveats any](auth Authorization[Caveats]) Authorization[any] {
	cap := auth.Capability()
	var proofs []Authorization[any]
	for _, p := range auth.Proofs() {
		proofs = append(proofs, ConvertUnknownAuthorization(p))
	}
	return anyAuthorization{
		capability: ucan.NewCapability[any](cap.Can(), cap.With(), any(cap.Nb())),
		delegation: auth.Delegation(),
		proofs:     proofs,
	}
}
