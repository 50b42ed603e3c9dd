package delegation

import (
	"github.com/candorlabs/go-ucankit/core/dag/blockstore"
	"github.com/candorlabs/go-ucankit/core/ipld"
	"github.com/candorlabs/go-ucankit/ucan"
)

// Proof is either a resolved delegation or a link to one that was not
// included in the block store.
type Proof struct {
	delegation Delegation
	link       ucan.Link
}

func (p Proof) Delegation() (Delegation, bool) {
	return p.delegation, p.delegation != nil
}

func (p Proof) Link() ucan.Link {
	if p.delegation != nil {
		return p.delegation.Link()
	}
	return p.link
}

func FromDelegation(delegation Delegation) Proof {
	return Proof{delegation, nil}
}

func FromLink(link ucan.Link) Proof {
	return Proof{nil, link}
}

type Proofs []Proof

// NewProofsView materializes a proof view for each link. Links present in the
// block store become delegation views sharing the same store, others stay
// bare links.
func NewProofsView(links []ipld.Link, bs blockstore.BlockReader) Proofs {
	proofs := make(Proofs, 0, len(links))
	for _, link := range links {
		if delegation, err := NewDelegationView(link, bs); err == nil {
			proofs = append(proofs, FromDelegation(delegation))
		} else {
			proofs = append(proofs, FromLink(link))
		}
	}
	return proofs
}

// WriteInto writes the blocks of resolved proofs to a block writer and
// returns the list of proof links.
func (proofs Proofs) WriteInto(bs blockstore.BlockWriter) ([]ipld.Link, error) {
	links := make([]ucan.Link, 0, len(proofs))
	for _, p := range proofs {
		links = append(links, p.Link())
		if delegation, ok := p.Delegation(); ok {
			if err := blockstore.WriteInto(delegation, bs); err != nil {
				return nil, err
			}
		}
	}
	return links, nil
}
