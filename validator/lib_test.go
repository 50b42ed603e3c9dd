package validator

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	"github.com/ipld/go-ipld-prime/node/basicnode"
	"github.com/stretchr/testify/require"

	"github.com/candorlabs/go-ucankit/core/dag/blockstore"
	"github.com/candorlabs/go-ucankit/core/delegation"
	"github.com/candorlabs/go-ucankit/core/ipld/block"
	"github.com/candorlabs/go-ucankit/core/ipld/codec/cbor"
	"github.com/candorlabs/go-ucankit/core/ipld/hash/sha256"
	"github.com/candorlabs/go-ucankit/core/result/failure"
	"github.com/candorlabs/go-ucankit/core/schema"
	"github.com/candorlabs/go-ucankit/did"
	"github.com/candorlabs/go-ucankit/principal"
	"github.com/candorlabs/go-ucankit/principal/ed25519/verifier"
	"github.com/candorlabs/go-ucankit/testing/fixtures"
	"github.com/candorlabs/go-ucankit/testing/helpers"
	"github.com/candorlabs/go-ucankit/ucan"
	udm "github.com/candorlabs/go-ucankit/ucan/datamodel/ucan"
)

type storeAddCaveats struct {
	Link   ipld.Link
	Origin ipld.Link
}

func (c storeAddCaveats) Build() (ipld.Node, error) {
	np := basicnode.Prototype.Any
	nb := np.NewBuilder()
	ma, _ := nb.BeginMap(2)
	if c != (storeAddCaveats{}) {
		ma.AssembleKey().AssignString("link")
		ma.AssembleValue().AssignLink(c.Link)
		if c.Origin != nil {
			ma.AssembleKey().AssignString("origin")
			ma.AssembleValue().AssignLink(c.Origin)
		}
	}
	ma.Finish()
	return nb.Build(), nil
}

var storeAddTyp = helpers.Must(ipld.LoadSchemaBytes([]byte(`
	type StoreAddCaveats struct {
		link optional Link
		origin optional Link
	}
`)))

func newStoreAddCapability(t *testing.T) CapabilityParser[storeAddCaveats] {
	t.Helper()

	return NewCapability(
		"store/add",
		schema.DIDString(),
		schema.Struct[storeAddCaveats](storeAddTyp.TypeByName("StoreAddCaveats"), nil),
		func(claimed, delegated ucan.Capability[storeAddCaveats]) failure.Failure {
			if claimed.With() != delegated.With() {
				err := fmt.Errorf("Expected 'with: \"%s\"' instead got '%s'", delegated.With(), claimed.With())
				return failure.FromError(err)
			}
			if delegated.Nb().Link != nil && delegated.Nb().Link != claimed.Nb().Link {
				var err error
				if claimed.Nb().Link == nil {
					err = fmt.Errorf("Link violates imposed %s constraint", delegated.Nb().Link)
				} else {
					err = fmt.Errorf("Link %s violates imposed %s constraint", claimed.Nb().Link, delegated.Nb().Link)
				}
				return failure.FromError(err)
			}
			return nil
		},
	)
}

var validateAuthOk = func(ctx context.Context, auth Authorization[any]) Revoked { return nil }

func parseEdPrincipal(str string) (principal.Verifier, error) {
	return verifier.Parse(str)
}

func TestAccess(t *testing.T) {
	ctx := context.Background()
	storeAdd := newStoreAddCapability(t)
	testLink := cidlink.Link{Cid: cid.MustParse("bafkqaaa")}

	newContext := func() ValidationContext[storeAddCaveats] {
		return NewValidationContext(
			fixtures.Service.Verifier(),
			storeAdd,
			IsSelfIssued,
			validateAuthOk,
			ProofUnavailable,
			parseEdPrincipal,
			FailDIDKeyResolution,
		)
	}

	t.Run("self-issued invocation", func(t *testing.T) {
		inv, err := storeAdd.Invoke(
			fixtures.Alice,
			fixtures.Bob,
			fixtures.Alice.DID().String(),
			storeAddCaveats{Link: testLink},
		)
		require.NoError(t, err)

		a, x := Access(ctx, inv, newContext())
		require.Nil(t, x)
		require.Equal(t, storeAdd.Can(), a.Capability().Can())
		require.Equal(t, fixtures.Alice.DID().String(), a.Capability().With())
		require.Equal(t, fixtures.Alice.DID(), a.Issuer().DID())
		require.Equal(t, fixtures.Bob.DID(), a.Audience().DID())
		require.Empty(t, a.Proofs())
	})

	t.Run("delegated invocation", func(t *testing.T) {
		dlg, err := storeAdd.Delegate(
			fixtures.Alice,
			fixtures.Bob,
			fixtures.Alice.DID().String(),
			storeAddCaveats{},
		)
		require.NoError(t, err)

		inv, err := storeAdd.Invoke(
			fixtures.Bob,
			fixtures.Service,
			fixtures.Alice.DID().String(),
			storeAddCaveats{Link: testLink},
			delegation.WithProof(delegation.FromDelegation(dlg)),
		)
		require.NoError(t, err)

		a, x := Access(ctx, inv, newContext())
		require.Nil(t, x)
		require.Equal(t, storeAdd.Can(), a.Capability().Can())
		require.Equal(t, fixtures.Alice.DID().String(), a.Capability().With())
		require.Equal(t, fixtures.Bob.DID(), a.Issuer().DID())

		// the trace runs from the invocation to the self issued delegation
		require.Len(t, a.Proofs(), 1)
		require.Equal(t, fixtures.Alice.DID(), a.Proofs()[0].Issuer().DID())
		require.Equal(t, dlg.Link(), a.Proofs()[0].Delegation().Link())
	})

	t.Run("expired proof", func(t *testing.T) {
		dlg, err := storeAdd.Delegate(
			fixtures.Alice,
			fixtures.Bob,
			fixtures.Alice.DID().String(),
			storeAddCaveats{},
			delegation.WithExpiration(ucan.Now()-10),
		)
		require.NoError(t, err)

		inv, err := storeAdd.Invoke(
			fixtures.Bob,
			fixtures.Service,
			fixtures.Alice.DID().String(),
			storeAddCaveats{Link: testLink},
			delegation.WithProof(delegation.FromDelegation(dlg)),
		)
		require.NoError(t, err)

		_, x := Access(ctx, inv, newContext())
		require.NotNil(t, x)
		require.Equal(t, "Unauthorized", x.Name())
		require.Contains(t, x.Error(), "has expired")
	})

	t.Run("not valid yet proof", func(t *testing.T) {
		dlg, err := storeAdd.Delegate(
			fixtures.Alice,
			fixtures.Bob,
			fixtures.Alice.DID().String(),
			storeAddCaveats{},
			delegation.WithNotBefore(ucan.Now()+1000),
			delegation.WithExpiration(ucan.Now()+2000),
		)
		require.NoError(t, err)

		inv, err := storeAdd.Invoke(
			fixtures.Bob,
			fixtures.Service,
			fixtures.Alice.DID().String(),
			storeAddCaveats{Link: testLink},
			delegation.WithProof(delegation.FromDelegation(dlg)),
		)
		require.NoError(t, err)

		_, x := Access(ctx, inv, newContext())
		require.NotNil(t, x)
		require.Contains(t, x.Error(), "not valid before")
	})

	t.Run("invalid audience", func(t *testing.T) {
		dlg, err := storeAdd.Delegate(
			fixtures.Alice,
			fixtures.Mallory,
			fixtures.Alice.DID().String(),
			storeAddCaveats{},
		)
		require.NoError(t, err)

		inv, err := storeAdd.Invoke(
			fixtures.Bob,
			fixtures.Service,
			fixtures.Alice.DID().String(),
			storeAddCaveats{Link: testLink},
			delegation.WithProof(delegation.FromDelegation(dlg)),
		)
		require.NoError(t, err)

		_, x := Access(ctx, inv, newContext())
		require.NotNil(t, x)
		require.Contains(t, x.Error(), "audience")
	})

	t.Run("invalid signature", func(t *testing.T) {
		dlg, err := storeAdd.Delegate(
			fixtures.Alice,
			fixtures.Bob,
			fixtures.Alice.DID().String(),
			storeAddCaveats{},
		)
		require.NoError(t, err)

		// tamper with the capability but keep alice's signature
		tampered := *dlg.Data().Model()
		tampered.Att = []udm.CapabilityModel{{
			With: fixtures.Alice.DID().String(),
			Can:  "store/remove",
		}}
		rt, err := block.Encode(&tampered, udm.Type(), cbor.Codec, sha256.Hasher)
		require.NoError(t, err)
		bs, err := blockstore.NewBlockStore(blockstore.WithBlocks([]block.Block{rt}))
		require.NoError(t, err)
		evil := delegation.NewDelegation(rt, bs)

		storeRemove := NewCapability(
			"store/remove",
			schema.DIDString(),
			schema.Struct[storeAddCaveats](storeAddTyp.TypeByName("StoreAddCaveats"), nil),
			nil,
		)

		inv, err := storeRemove.Invoke(
			fixtures.Bob,
			fixtures.Service,
			fixtures.Alice.DID().String(),
			storeAddCaveats{},
			delegation.WithProof(delegation.FromDelegation(evil)),
		)
		require.NoError(t, err)

		vctx := NewValidationContext(
			fixtures.Service.Verifier(),
			storeRemove,
			IsSelfIssued,
			validateAuthOk,
			ProofUnavailable,
			parseEdPrincipal,
			FailDIDKeyResolution,
		)

		_, x := Access(ctx, inv, vctx)
		require.NotNil(t, x)
		require.Contains(t, x.Error(), "signature")
	})

	t.Run("unknown capability", func(t *testing.T) {
		unknown := ucan.NewCapability[ucan.CaveatBuilder]("debug/echo", fixtures.Alice.DID().String(), ucan.NoCaveats{})
		inv, err := delegation.Delegate(
			fixtures.Alice,
			fixtures.Service,
			[]ucan.Capability[ucan.CaveatBuilder]{unknown},
		)
		require.NoError(t, err)

		_, x := Access(ctx, inv, newContext())
		require.NotNil(t, x)
		require.Contains(t, x.Error(), "unknown capabilities")
	})

	t.Run("unavailable proof", func(t *testing.T) {
		inv, err := storeAdd.Invoke(
			fixtures.Bob,
			fixtures.Service,
			fixtures.Alice.DID().String(),
			storeAddCaveats{Link: testLink},
			delegation.WithProof(delegation.FromLink(helpers.RandomCID())),
		)
		require.NoError(t, err)

		_, x := Access(ctx, inv, newContext())
		require.NotNil(t, x)
		require.Contains(t, x.Error(), "could not be resolved")
	})

	t.Run("caveat escalation", func(t *testing.T) {
		constraint := cidlink.Link{Cid: cid.MustParse("bafkreiem4twkqzsq2aj4shbycd4yvoj2cx72vezicletlhi7dijjciqpui")}
		dlg, err := storeAdd.Delegate(
			fixtures.Alice,
			fixtures.Bob,
			fixtures.Alice.DID().String(),
			storeAddCaveats{Link: constraint},
		)
		require.NoError(t, err)

		inv, err := storeAdd.Invoke(
			fixtures.Bob,
			fixtures.Service,
			fixtures.Alice.DID().String(),
			storeAddCaveats{Link: testLink},
			delegation.WithProof(delegation.FromDelegation(dlg)),
		)
		require.NoError(t, err)

		_, x := Access(ctx, inv, newContext())
		require.NotNil(t, x)
		require.Contains(t, x.Error(), "violates imposed")
	})

	t.Run("cancelled", func(t *testing.T) {
		inv, err := storeAdd.Invoke(
			fixtures.Alice,
			fixtures.Bob,
			fixtures.Alice.DID().String(),
			storeAddCaveats{Link: testLink},
		)
		require.NoError(t, err)

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, x := Access(cctx, inv, newContext())
		require.NotNil(t, x)
		require.Equal(t, "Cancelled", x.Name())
	})
}

func TestAccessEscalatedResource(t *testing.T) {
	ctx := context.Background()

	fileLink := NewCapability(
		"file/link",
		schema.URIString(schema.WithProtocol("file:")),
		schema.Struct[ucan.NoCaveats](helpers.Must(ipld.LoadSchemaBytes([]byte(`
			type NoCaveats struct {}
		`))).TypeByName("NoCaveats"), nil),
		nil,
	)

	dlg, err := fileLink.Delegate(
		fixtures.Alice,
		fixtures.Bob,
		"file://alice/friends/bob/",
		ucan.NoCaveats{},
	)
	require.NoError(t, err)

	inv, err := fileLink.Invoke(
		fixtures.Bob,
		fixtures.Service,
		"file://alice/friends/mallory/about",
		ucan.NoCaveats{},
		delegation.WithProof(delegation.FromDelegation(dlg)),
	)
	require.NoError(t, err)

	vctx := NewValidationContext(
		fixtures.Service.Verifier(),
		fileLink,
		func(capability ucan.Capability[any], issuer did.DID) bool { return false },
		validateAuthOk,
		ProofUnavailable,
		parseEdPrincipal,
		FailDIDKeyResolution,
	)

	_, x := Access(ctx, inv, vctx)
	require.NotNil(t, x)
	require.Equal(t, "Unauthorized", x.Name())
	require.Contains(t, x.Error(), "Constraint violation")
}

func TestAccessRedelegation(t *testing.T) {
	ctx := context.Background()
	storeAdd := newStoreAddCapability(t)

	// mallory delegates her store to alice
	malloryDlg, err := storeAdd.Delegate(
		fixtures.Mallory,
		fixtures.Alice,
		fixtures.Mallory.DID().String(),
		storeAddCaveats{},
	)
	require.NoError(t, err)

	// alice re-delegates everything she holds to bob
	redlg, err := delegation.Delegate(
		fixtures.Alice,
		fixtures.Bob,
		[]ucan.Capability[ucan.CaveatBuilder]{
			ucan.NewCapability[ucan.CaveatBuilder]("store/*", Redelegation, ucan.NoCaveats{}),
		},
		delegation.WithProof(delegation.FromDelegation(malloryDlg)),
	)
	require.NoError(t, err)

	inv, err := storeAdd.Invoke(
		fixtures.Bob,
		fixtures.Service,
		fixtures.Mallory.DID().String(),
		storeAddCaveats{},
		delegation.WithProof(delegation.FromDelegation(redlg)),
	)
	require.NoError(t, err)

	vctx := NewValidationContext(
		fixtures.Service.Verifier(),
		storeAdd,
		IsSelfIssued,
		validateAuthOk,
		ProofUnavailable,
		parseEdPrincipal,
		FailDIDKeyResolution,
	)

	a, x := Access(ctx, inv, vctx)
	require.Nil(t, x)
	require.Equal(t, fixtures.Mallory.DID().String(), a.Capability().With())

	// invocation ← re-delegation ← self issued delegation
	require.Len(t, a.Proofs(), 1)
	require.Len(t, a.Proofs()[0].Proofs(), 1)
	require.Equal(t, fixtures.Mallory.DID(), a.Proofs()[0].Proofs()[0].Issuer().DID())
}

func TestAccessExtractedArchive(t *testing.T) {
	ctx := context.Background()
	storeAdd := newStoreAddCapability(t)

	dlg, err := storeAdd.Delegate(
		fixtures.Alice,
		fixtures.Bob,
		fixtures.Alice.DID().String(),
		storeAddCaveats{},
	)
	require.NoError(t, err)

	// ship the delegation over a byte channel
	b, err := io.ReadAll(dlg.Archive())
	require.NoError(t, err)
	shipped, xf := delegation.Extract(b)
	require.Nil(t, xf)

	inv, err := storeAdd.Invoke(
		fixtures.Bob,
		fixtures.Service,
		fixtures.Alice.DID().String(),
		storeAddCaveats{},
		delegation.WithProof(delegation.FromDelegation(shipped)),
	)
	require.NoError(t, err)

	vctx := NewValidationContext(
		fixtures.Service.Verifier(),
		storeAdd,
		IsSelfIssued,
		validateAuthOk,
		ProofUnavailable,
		parseEdPrincipal,
		FailDIDKeyResolution,
	)

	a, x := Access(ctx, inv, vctx)
	require.Nil(t, x)
	require.Len(t, a.Proofs(), 1)
	require.Equal(t, dlg.Link(), a.Proofs()[0].Delegation().Link())
}

func TestClaimWithProofResolver(t *testing.T) {
	ctx := context.Background()
	storeAdd := newStoreAddCapability(t)

	dlg, err := storeAdd.Delegate(
		fixtures.Alice,
		fixtures.Bob,
		fixtures.Alice.DID().String(),
		storeAddCaveats{},
	)
	require.NoError(t, err)

	// reference the proof by link only and side load it via the resolver
	inv, err := storeAdd.Invoke(
		fixtures.Bob,
		fixtures.Service,
		fixtures.Alice.DID().String(),
		storeAddCaveats{},
		delegation.WithProof(delegation.FromLink(dlg.Link())),
	)
	require.NoError(t, err)

	resolve := func(ctx context.Context, p ucan.Link) (delegation.Delegation, UnavailableProof) {
		if p.String() == dlg.Link().String() {
			return dlg, nil
		}
		return nil, NewUnavailableProofError(p, fmt.Errorf("unknown proof: %s", p))
	}

	vctx := NewValidationContext(
		fixtures.Service.Verifier(),
		storeAdd,
		IsSelfIssued,
		validateAuthOk,
		resolve,
		parseEdPrincipal,
		FailDIDKeyResolution,
	)

	a, x := Access(ctx, inv, vctx)
	require.Nil(t, x)
	require.Len(t, a.Proofs(), 1)
	require.Equal(t, fixtures.Alice.DID(), a.Proofs()[0].Issuer().DID())
}
