package validator

import (
	"fmt"

	"github.com/candorlabs/go-ucankit/core/delegation"
	"github.com/candorlabs/go-ucankit/core/invocation"
	"github.com/candorlabs/go-ucankit/ucan"
)

// Or matches with each parser in turn, returning the first match. When no
// parser matches, the most informative failure is returned - a malformed
// capability beats an unknown one. Matching a single source never produces a
// derivation failure, so no such failure is ranked here.
func Or[Caveats any](parsers ...CapabilityParser[Caveats]) CapabilityParser[Caveats] {
	if len(parsers) == 0 {
		panic("or requires at least one capability parser")
	}
	return orParser[Caveats]{parsers}
}

type orParser[Caveats any] struct {
	parsers []CapabilityParser[Caveats]
}

func (o orParser[Caveats]) Can() ucan.Ability {
	return o.parsers[0].Can()
}

func (o orParser[Caveats]) Match(source Source) (Match[Caveats], InvalidCapability) {
	var failed InvalidCapability
	for _, p := range o.parsers {
		m, err := p.Match(source)
		if err != nil {
			if moreInformative(err, failed) {
				failed = err
			}
			continue
		}
		return m, nil
	}
	return nil, failed
}

// moreInformative reports whether candidate carries more information than
// current. Malformed capabilities rank above unknown ones.
func moreInformative(candidate, current InvalidCapability) bool {
	if current == nil {
		return true
	}
	_, candidateUnknown := candidate.(UnknownCapability)
	_, currentUnknown := current.(UnknownCapability)
	return currentUnknown && !candidateUnknown
}

func (o orParser[Caveats]) Select(sources []Source) ([]Match[Caveats], []DelegationError, []ucan.Capability[any]) {
	return Select[Caveats](o, sources)
}

func (o orParser[Caveats]) New(with ucan.Resource, nb Caveats) ucan.Capability[Caveats] {
	return o.parsers[0].New(with, nb)
}

func (o orParser[Caveats]) Delegate(issuer ucan.Signer, audience ucan.Principal, with ucan.Resource, nb Caveats, options ...delegation.Option) (delegation.Delegation, error) {
	return o.parsers[0].Delegate(issuer, audience, with, nb, options...)
}

func (o orParser[Caveats]) Invoke(issuer ucan.Signer, audience ucan.Principal, with ucan.Resource, nb Caveats, options ...delegation.Option) (invocation.IssuedInvocation, error) {
	return o.parsers[0].Invoke(issuer, audience, with, nb, options...)
}

func (o orParser[Caveats]) String() string {
	return fmt.Sprintf("or(%v)", o.parsers)
}

// And matches a source only when every parser matches it. Selecting over a
// capability list yields the cartesian product combinations of per parser
// matches.
func And[Caveats any](parsers ...CapabilityParser[Caveats]) CapabilityParser[Caveats] {
	if len(parsers) == 0 {
		panic("and requires at least one capability parser")
	}
	return andParser[Caveats]{parsers}
}

type andParser[Caveats any] struct {
	parsers []CapabilityParser[Caveats]
}

func (a andParser[Caveats]) Can() ucan.Ability {
	return a.parsers[0].Can()
}

func (a andParser[Caveats]) Match(source Source) (Match[Caveats], InvalidCapability) {
	matches := make([]Match[Caveats], 0, len(a.parsers))
	for _, p := range a.parsers {
		m, err := p.Match(source)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return groupMatch[Caveats]{matches}, nil
}

func (a andParser[Caveats]) Select(sources []Source) (matches []Match[Caveats], errors []DelegationError, unknowns []ucan.Capability[any]) {
	all := make([][]Match[Caveats], 0, len(a.parsers))
	for i, p := range a.parsers {
		ms, errs, unks := p.Select(sources)
		errors = append(errors, errs...)
		if i == 0 {
			unknowns = unks
		} else {
			unknowns = intersection(unknowns, unks)
		}
		if len(ms) == 0 {
			return nil, errors, unknowns
		}
		all = append(all, ms)
	}
	for _, tuple := range combine(all) {
		matches = append(matches, groupMatch[Caveats]{tuple})
	}
	return
}

func (a andParser[Caveats]) New(with ucan.Resource, nb Caveats) ucan.Capability[Caveats] {
	return a.parsers[0].New(with, nb)
}

func (a andParser[Caveats]) Delegate(issuer ucan.Signer, audience ucan.Principal, with ucan.Resource, nb Caveats, options ...delegation.Option) (delegation.Delegation, error) {
	return a.parsers[0].Delegate(issuer, audience, with, nb, options...)
}

func (a andParser[Caveats]) Invoke(issuer ucan.Signer, audience ucan.Principal, with ucan.Resource, nb Caveats, options ...delegation.Option) (invocation.IssuedInvocation, error) {
	return a.parsers[0].Invoke(issuer, audience, with, nb, options...)
}

// groupMatch is the match produced by an And group. Its value is the value
// of the first member; Values exposes them all.
type groupMatch[Caveats any] struct {
	matches []Match[Caveats]
}

func (g groupMatch[Caveats]) Source() []Source {
	var sources []Source
	for _, m := range g.matches {
		sources = append(sources, m.Source()...)
	}
	return sources
}

func (g groupMatch[Caveats]) Value() ucan.Capability[Caveats] {
	return g.matches[0].Value()
}

func (g groupMatch[Caveats]) Values() []ucan.Capability[Caveats] {
	values := make([]ucan.Capability[Caveats], 0, len(g.matches))
	for _, m := range g.matches {
		values = append(values, m.Value())
	}
	return values
}

func (g groupMatch[Caveats]) Proofs() []delegation.Delegation {
	var proofs []delegation.Delegation
	seen := map[string]struct{}{}
	for _, m := range g.matches {
		for _, p := range m.Proofs() {
			key := p.Link().String()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			proofs = append(proofs, p)
		}
	}
	return proofs
}

func (g groupMatch[Caveats]) Prune(context CanIssuer[Caveats]) Match[Caveats] {
	var remaining []Match[Caveats]
	for _, m := range g.matches {
		if p := m.Prune(context); p != nil {
			remaining = append(remaining, p)
		}
	}
	if len(remaining) == 0 {
		return nil
	}
	return groupMatch[Caveats]{remaining}
}

func (g groupMatch[Caveats]) Select(sources []Source) (matches []Match[Caveats], errors []DelegationError, unknowns []ucan.Capability[any]) {
	all := make([][]Match[Caveats], 0, len(g.matches))
	for i, m := range g.matches {
		ms, errs, unks := m.Select(sources)
		errors = append(errors, errs...)
		if i == 0 {
			unknowns = unks
		} else {
			unknowns = intersection(unknowns, unks)
		}
		if len(ms) == 0 {
			return nil, errors, unknowns
		}
		all = append(all, ms)
	}
	for _, tuple := range combine(all) {
		matches = append(matches, groupMatch[Caveats]{tuple})
	}
	return
}

// Derive matches `to` directly. A derived match additionally selects parent
// capabilities through the `from` parser, gating each transition with the
// derives predicate applied to the claimed value and the parent match value.
func Derive[Caveats any](from, to CapabilityParser[Caveats], derives DerivesFunc[Caveats]) CapabilityParser[Caveats] {
	if derives == nil {
		derives = DefaultDerives
	}
	return derivedParser[Caveats]{from, to, derives}
}

type derivedParser[Caveats any] struct {
	from    CapabilityParser[Caveats]
	to      CapabilityParser[Caveats]
	derives DerivesFunc[Caveats]
}

func (d derivedParser[Caveats]) Can() ucan.Ability {
	return d.to.Can()
}

func (d derivedParser[Caveats]) Match(source Source) (Match[Caveats], InvalidCapability) {
	m, err := d.to.Match(source)
	if err != nil {
		return nil, err
	}
	return derivedMatch[Caveats]{m, d}, nil
}

func (d derivedParser[Caveats]) Select(sources []Source) ([]Match[Caveats], []DelegationError, []ucan.Capability[any]) {
	return Select[Caveats](d, sources)
}

func (d derivedParser[Caveats]) New(with ucan.Resource, nb Caveats) ucan.Capability[Caveats] {
	return d.to.New(with, nb)
}

func (d derivedParser[Caveats]) Delegate(issuer ucan.Signer, audience ucan.Principal, with ucan.Resource, nb Caveats, options ...delegation.Option) (delegation.Delegation, error) {
	return d.to.Delegate(issuer, audience, with, nb, options...)
}

func (d derivedParser[Caveats]) Invoke(issuer ucan.Signer, audience ucan.Principal, with ucan.Resource, nb Caveats, options ...delegation.Option) (invocation.IssuedInvocation, error) {
	return d.to.Invoke(issuer, audience, with, nb, options...)
}

type derivedMatch[Caveats any] struct {
	direct Match[Caveats]
	parser derivedParser[Caveats]
}

func (d derivedMatch[Caveats]) Source() []Source {
	return d.direct.Source()
}

func (d derivedMatch[Caveats]) Value() ucan.Capability[Caveats] {
	return d.direct.Value()
}

func (d derivedMatch[Caveats]) Proofs() []delegation.Delegation {
	return d.direct.Proofs()
}

func (d derivedMatch[Caveats]) Prune(context CanIssuer[Caveats]) Match[Caveats] {
	if p := d.direct.Prune(context); p == nil {
		return nil
	}
	return d
}

func (d derivedMatch[Caveats]) Select(sources []Source) (matches []Match[Caveats], errors []DelegationError, unknowns []ucan.Capability[any]) {
	direct, derrs, dunks := d.direct.Select(sources)
	for _, m := range direct {
		matches = append(matches, derivedMatch[Caveats]{m, d.parser})
	}
	errors = append(errors, derrs...)

	parents, perrs, punks := d.parser.from.Select(sources)
	errors = append(errors, perrs...)
	for _, m := range parents {
		if err := d.parser.derives(d.Value(), m.Value()); err != nil {
			errors = append(errors, NewDelegationError([]DelegationSubError{NewEscalatedCapabilityError(d.Value(), m.Value(), err)}, d))
			continue
		}
		matches = append(matches, m)
	}

	// A capability is unknown to the derivation only if neither shape
	// recognizes it.
	unknowns = intersection(dunks, punks)
	return
}

func (d derivedMatch[Caveats]) String() string {
	return fmt.Sprintf("derive(%v)", d.direct)
}
