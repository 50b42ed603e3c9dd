package validator

import (
	"strings"

	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/node/basicnode"

	"github.com/candorlabs/go-ucankit/core/delegation"
	"github.com/candorlabs/go-ucankit/ucan"
)

// Redelegation is the meta resource that stands for "everything the issuer
// was delegated" - a capability with this resource re-delegates matching
// capabilities from the delegation's own proofs.
const Redelegation = "ucan:*"

// MatchAbility matches a `provided` ability pattern from a proof against a
// `claimed` pattern from a re-delegation filter. It returns the more
// specific of two compatible patterns and "" when they are incompatible.
// Equal patterns match themselves, including two identical segment
// wildcards; unequal segment wildcards do not match.
func MatchAbility(provided, claimed ucan.Ability) ucan.Ability {
	if provided == claimed {
		return provided
	}
	if strings.HasSuffix(provided, "/*") && strings.HasSuffix(claimed, "/*") {
		return ""
	}
	if provided == "*" {
		return claimed
	}
	if claimed == "*" {
		return provided
	}
	if strings.HasSuffix(claimed, "/*") && strings.HasPrefix(provided, claimed[0:len(claimed)-1]) {
		return provided
	}
	if strings.HasSuffix(provided, "/*") && strings.HasPrefix(claimed, provided[0:len(provided)-1]) {
		return claimed
	}
	return ""
}

// ExpandCapabilities yields the canonical, expanded capability stream of a
// delegation. A capability on the Redelegation meta resource is emitted
// first with the resource rewritten to the issuer's own DID, then once per
// compatible capability of each proof included in the delegation, carrying
// the more specific ability of the two and the delegator's caveats overlaid
// on the proof capability's caveats. Every other capability is emitted
// verbatim.
func ExpandCapabilities(d delegation.Delegation) []ucan.Capability[any] {
	var caps []ucan.Capability[any]
	for _, cap := range d.Capabilities() {
		if cap.With() != Redelegation {
			caps = append(caps, cap)
			continue
		}

		caps = append(caps, ucan.NewCapability(cap.Can(), d.Issuer().DID().String(), cap.Nb()))

		for _, p := range d.ProofsView() {
			sub, ok := p.Delegation()
			if !ok {
				continue
			}
			for _, pcap := range sub.Capabilities() {
				can := MatchAbility(pcap.Can(), cap.Can())
				if can == "" {
					continue
				}
				caps = append(caps, ucan.NewCapability(can, pcap.With(), mergeCaveats(cap.Nb(), pcap.Nb())))
			}
		}
	}
	return caps
}

// mergeCaveats overlays the delegator's caveats onto a proof capability's
// caveats, key by key. The merge is a conservative widening - it may produce
// a claim the derives predicate later rejects, which is acceptable because
// the final derivation step is the source of truth.
func mergeCaveats(own any, child any) any {
	ownNode, ownOk := own.(datamodel.Node)
	childNode, childOk := child.(datamodel.Node)
	if !ownOk || ownNode == nil || ownNode.Length() == 0 {
		return child
	}
	if !childOk || childNode == nil || childNode.Length() == 0 {
		return own
	}

	np := basicnode.Prototype.Any
	nb := np.NewBuilder()
	ma, err := nb.BeginMap(childNode.Length() + ownNode.Length())
	if err != nil {
		return own
	}

	overridden := map[string]struct{}{}
	it := ownNode.MapIterator()
	for it != nil && !it.Done() {
		k, _, err := it.Next()
		if err != nil {
			return own
		}
		key, err := k.AsString()
		if err != nil {
			return own
		}
		overridden[key] = struct{}{}
	}

	cit := childNode.MapIterator()
	for cit != nil && !cit.Done() {
		k, v, err := cit.Next()
		if err != nil {
			return own
		}
		key, err := k.AsString()
		if err != nil {
			return own
		}
		if _, ok := overridden[key]; ok {
			continue
		}
		if err := ma.AssembleKey().AssignString(key); err != nil {
			return own
		}
		if err := ma.AssembleValue().AssignNode(v); err != nil {
			return own
		}
	}

	oit := ownNode.MapIterator()
	for oit != nil && !oit.Done() {
		k, v, err := oit.Next()
		if err != nil {
			return own
		}
		key, err := k.AsString()
		if err != nil {
			return own
		}
		if err := ma.AssembleKey().AssignString(key); err != nil {
			return own
		}
		if err := ma.AssembleValue().AssignNode(v); err != nil {
			return own
		}
	}

	if err := ma.Finish(); err != nil {
		return own
	}
	return nb.Build()
}
