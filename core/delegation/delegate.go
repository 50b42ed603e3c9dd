package delegation

import (
	"fmt"

	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/node/basicnode"

	"github.com/candorlabs/go-ucankit/core/dag/blockstore"
	"github.com/candorlabs/go-ucankit/core/ipld"
	"github.com/candorlabs/go-ucankit/core/ipld/block"
	"github.com/candorlabs/go-ucankit/core/ipld/codec/cbor"
	"github.com/candorlabs/go-ucankit/core/ipld/hash/sha256"
	"github.com/candorlabs/go-ucankit/ucan"
	udm "github.com/candorlabs/go-ucankit/ucan/datamodel/ucan"
)

// AttachmentsFactKey names the fact listing blocks attached to a delegation
// because its caveats reference them. Receivers treat it as an opaque hint.
const AttachmentsFactKey = "ucan/attachments"

// Option is an option configuring a UCAN delegation.
type Option func(cfg *delegationConfig) error

type delegationConfig struct {
	exp   *uint64
	noexp bool
	nbf   uint64
	nnc   string
	fct   []ucan.FactBuilder
	prf   Proofs
	att   []ipld.Block
}

// WithExpiration configures the expiration time in UTC seconds since Unix
// epoch.
func WithExpiration(exp uint64) Option {
	return func(cfg *delegationConfig) error {
		cfg.exp = &exp
		cfg.noexp = false
		return nil
	}
}

// WithNoExpiration configures the UCAN to never expire.
//
// WARNING: this will cause the delegation to be valid FOREVER, unless
// revoked.
func WithNoExpiration() Option {
	return func(cfg *delegationConfig) error {
		cfg.exp = nil
		cfg.noexp = true
		return nil
	}
}

// WithNotBefore configures the time in UTC seconds since Unix epoch when the
// UCAN will become valid.
func WithNotBefore(nbf uint64) Option {
	return func(cfg *delegationConfig) error {
		cfg.nbf = nbf
		return nil
	}
}

// WithNonce configures the nonce value for the UCAN.
func WithNonce(nnc string) Option {
	return func(cfg *delegationConfig) error {
		cfg.nnc = nnc
		return nil
	}
}

// WithFacts configures the facts for the UCAN.
func WithFacts(fct []ucan.FactBuilder) Option {
	return func(cfg *delegationConfig) error {
		cfg.fct = fct
		return nil
	}
}

// WithProofs configures the proofs for the UCAN. If the issuer of this
// delegation is not the resource owner / service provider for the delegated
// capabilities, the proofs must contain valid delegations to the issuer.
func WithProofs(prf Proofs) Option {
	return func(cfg *delegationConfig) error {
		cfg.prf = prf
		return nil
	}
}

// WithProof configures the proofs for the UCAN in the case where there is
// only a single proof.
func WithProof(prf Proof) Option {
	return func(cfg *delegationConfig) error {
		cfg.prf = Proofs{prf}
		return nil
	}
}

// WithAttachments configures blocks referenced from capability caveats to be
// carried with the delegation. The links of the attached blocks are recorded
// in a "ucan/attachments" fact.
func WithAttachments(blocks []ipld.Block) Option {
	return func(cfg *delegationConfig) error {
		cfg.att = blocks
		return nil
	}
}

type attachmentsFact struct {
	links []ucan.Link
}

func (f attachmentsFact) Build() (datamodel.Node, error) {
	np := basicnode.Prototype.Any
	nb := np.NewBuilder()
	ma, err := nb.BeginMap(1)
	if err != nil {
		return nil, err
	}
	if err := ma.AssembleKey().AssignString(AttachmentsFactKey); err != nil {
		return nil, err
	}
	la, err := ma.AssembleValue().BeginList(int64(len(f.links)))
	if err != nil {
		return nil, err
	}
	for _, l := range f.links {
		if err := la.AssembleValue().AssignLink(l); err != nil {
			return nil, err
		}
	}
	if err := la.Finish(); err != nil {
		return nil, err
	}
	if err := ma.Finish(); err != nil {
		return nil, err
	}
	return nb.Build(), nil
}

// Delegate creates a new signed token with a given issuer. If expiration is
// not set it defaults to 30 seconds from now.
func Delegate[C ucan.CaveatBuilder](issuer ucan.Signer, audience ucan.Principal, capabilities []ucan.Capability[C], options ...Option) (Delegation, error) {
	cfg := delegationConfig{}
	for _, opt := range options {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	bs, err := blockstore.NewBlockStore()
	if err != nil {
		return nil, err
	}

	links, err := cfg.prf.WriteInto(bs)
	if err != nil {
		return nil, err
	}

	fct := cfg.fct
	if len(cfg.att) > 0 {
		var alinks []ucan.Link
		for _, b := range cfg.att {
			if err := bs.Put(b); err != nil {
				return nil, fmt.Errorf("adding attachment to store: %w", err)
			}
			alinks = append(alinks, b.Link())
		}
		fct = append(fct, attachmentsFact{alinks})
	}

	opts := []ucan.Option{
		ucan.WithFacts(fct),
		ucan.WithNonce(cfg.nnc),
		ucan.WithNotBefore(cfg.nbf),
		ucan.WithProofs(links),
	}
	if cfg.noexp {
		opts = append(opts, ucan.WithNoExpiration())
	}
	if cfg.exp != nil {
		opts = append(opts, ucan.WithExpiration(*cfg.exp))
	}

	var caps []ucan.Capability[ucan.CaveatBuilder]
	for _, cap := range capabilities {
		caps = append(caps, ucan.NewCapability[ucan.CaveatBuilder](cap.Can(), cap.With(), cap.Nb()))
	}

	data, err := ucan.Issue(issuer, audience, caps, opts...)
	if err != nil {
		return nil, fmt.Errorf("issuing UCAN: %w", err)
	}

	rt, err := block.Encode(data.Model(), udm.Type(), cbor.Codec, sha256.Hasher)
	if err != nil {
		return nil, fmt.Errorf("encoding UCAN: %w", err)
	}

	if err := bs.Put(rt); err != nil {
		return nil, fmt.Errorf("adding delegation root to store: %w", err)
	}

	return NewDelegation(rt, bs), nil
}
