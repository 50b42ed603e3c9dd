package delegation

import (
	"fmt"
	"io"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/candorlabs/go-ucankit/core/dag/blockstore"
	"github.com/candorlabs/go-ucankit/core/ipld"
	"github.com/candorlabs/go-ucankit/ucan"
	"github.com/candorlabs/go-ucankit/ucan/crypto/signature"
)

// Delegation is a materialized view of a UCAN delegation, which can be
// encoded into a UCAN token and used as proof for an invocation or further
// delegations.
type Delegation interface {
	ipld.View
	ucan.UCAN
	// Link returns the IPLD link of the root block of the delegation.
	Link() ucan.Link
	// Data returns the decoded UCAN token view of the root block.
	Data() ucan.View
	// ProofsView returns the proofs of the delegation. Proofs whose blocks
	// are present in the delegation's block store are returned as resolved
	// Delegation views sharing this delegation's block store, others as bare
	// links.
	ProofsView() Proofs
	// Iterate walks every resolved ancestor delegation in post order -
	// proofs are yielded before the delegation that references them. The
	// receiver itself is not yielded.
	Iterate() iter.Seq[Delegation]
	// Attach adds a block referenced from the delegation's caveats to the
	// underlying block store so it travels inside the archive. Attaching is
	// not allowed after the delegation has been archived.
	Attach(block ipld.Block) error
	// Archive writes the delegation and all blocks reachable from it to a
	// Content Addressed aRchive (CAR).
	Archive() io.Reader
}

type delegation struct {
	rt   ipld.Block
	blks blockstore.BlockReader

	dataOnce sync.Once
	data     ucan.View

	proofsOnce sync.Once
	proofs     Proofs

	archived atomic.Bool
}

var _ Delegation = (*delegation)(nil)

func (d *delegation) Root() ipld.Block {
	return d.rt
}

func (d *delegation) Link() ucan.Link {
	return d.rt.Link()
}

func (d *delegation) Data() ucan.View {
	d.dataOnce.Do(func() {
		data, err := ucan.Decode(d.rt.Bytes())
		if err != nil {
			return
		}
		d.data = data
	})
	return d.data
}

func (d *delegation) Issuer() ucan.Principal {
	return d.Data().Issuer()
}

func (d *delegation) Audience() ucan.Principal {
	return d.Data().Audience()
}

func (d *delegation) Version() ucan.Version {
	return d.Data().Version()
}

func (d *delegation) Capabilities() []ucan.Capability[any] {
	return d.Data().Capabilities()
}

func (d *delegation) Expiration() *ucan.UTCUnixTimestamp {
	return d.Data().Expiration()
}

func (d *delegation) NotBefore() ucan.UTCUnixTimestamp {
	return d.Data().NotBefore()
}

func (d *delegation) Nonce() ucan.Nonce {
	return d.Data().Nonce()
}

func (d *delegation) Facts() []ucan.Fact {
	return d.Data().Facts()
}

func (d *delegation) Proofs() []ucan.Link {
	return d.Data().Proofs()
}

func (d *delegation) Signature() signature.SignatureView {
	return d.Data().Signature()
}

func (d *delegation) ProofsView() Proofs {
	d.proofsOnce.Do(func() {
		d.proofs = NewProofsView(d.Data().Proofs(), d.blks)
	})
	return d.proofs
}

func (d *delegation) Iterate() iter.Seq[Delegation] {
	return func(yield func(Delegation) bool) {
		iterate(d, yield)
	}
}

func iterate(d Delegation, yield func(Delegation) bool) bool {
	for _, p := range d.ProofsView() {
		if sub, ok := p.Delegation(); ok {
			if !iterate(sub, yield) {
				return false
			}
			if !yield(sub) {
				return false
			}
		}
	}
	return true
}

func (d *delegation) Blocks() iter.Seq2[ipld.Block, error] {
	return func(yield func(ipld.Block, error) bool) {
		rtkey := d.rt.Link().String()
		for b, err := range d.blks.Iterator() {
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			// the root block is yielded last
			if b.Link().String() == rtkey {
				continue
			}
			if !yield(b, nil) {
				return
			}
		}
		yield(d.rt, nil)
	}
}

func (d *delegation) Attach(block ipld.Block) error {
	if d.archived.Load() {
		return fmt.Errorf("delegation has already been archived: %s", d.Link())
	}
	bw, ok := d.blks.(blockstore.BlockWriter)
	if !ok {
		return fmt.Errorf("delegation block store is not writable")
	}
	return bw.Put(block)
}

func (d *delegation) Archive() io.Reader {
	d.archived.Store(true)
	return Archive(d)
}

// NewDelegation creates a delegation view over the root block. The block
// store must contain the root block, proof blocks and any blocks referenced
// from capability caveats that should travel with the delegation.
func NewDelegation(root ipld.Block, bs blockstore.BlockReader) Delegation {
	return &delegation{rt: root, blks: bs}
}

func NewDelegationView(root ipld.Link, bs blockstore.BlockReader) (Delegation, error) {
	blk, ok, err := bs.Get(root)
	if err != nil {
		return nil, fmt.Errorf("getting delegation root block: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("missing delegation root block: %s", root)
	}
	return NewDelegation(blk, bs), nil
}
