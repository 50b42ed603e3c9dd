package validator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/candorlabs/go-ucankit/core/delegation"
	"github.com/candorlabs/go-ucankit/core/result/failure"
	"github.com/candorlabs/go-ucankit/core/schema"
	"github.com/candorlabs/go-ucankit/testing/fixtures"
	"github.com/candorlabs/go-ucankit/ucan"
)

func echoParser(can string) CapabilityParser[storeAddCaveats] {
	return NewCapability(
		can,
		schema.DIDString(),
		schema.Struct[storeAddCaveats](storeAddTyp.TypeByName("StoreAddCaveats"), nil),
		nil,
	)
}

func sourceFor(t *testing.T, can, with string) Source {
	t.Helper()
	dlg, err := delegation.Delegate(
		fixtures.Alice,
		fixtures.Bob,
		[]ucan.Capability[ucan.CaveatBuilder]{
			ucan.NewCapability[ucan.CaveatBuilder](can, with, ucan.NoCaveats{}),
		},
	)
	require.NoError(t, err)
	return NewSource(dlg.Capabilities()[0], dlg)
}

func TestOr(t *testing.T) {
	parser := Or(echoParser("store/add"), echoParser("store/remove"))

	t.Run("matches either branch", func(t *testing.T) {
		m, err := parser.Match(sourceFor(t, "store/add", fixtures.Alice.DID().String()))
		require.Nil(t, err)
		require.Equal(t, "store/add", m.Value().Can())

		m, err = parser.Match(sourceFor(t, "store/remove", fixtures.Alice.DID().String()))
		require.Nil(t, err)
		require.Equal(t, "store/remove", m.Value().Can())
	})

	t.Run("unknown when no branch matches", func(t *testing.T) {
		_, err := parser.Match(sourceFor(t, "upload/add", fixtures.Alice.DID().String()))
		require.NotNil(t, err)
		_, unknown := err.(UnknownCapability)
		require.True(t, unknown)
	})

	t.Run("malformed beats unknown", func(t *testing.T) {
		// can matches the first branch but the resource is not a DID
		_, err := parser.Match(sourceFor(t, "store/add", "https://example.com/"))
		require.NotNil(t, err)
		_, unknown := err.(UnknownCapability)
		require.False(t, unknown)
		require.Equal(t, "MalformedCapability", err.Name())
	})
}

func TestAnd(t *testing.T) {
	parser := And(echoParser("store/add"), echoParser("store/add"))

	t.Run("matches when every member matches", func(t *testing.T) {
		m, err := parser.Match(sourceFor(t, "store/add", fixtures.Alice.DID().String()))
		require.Nil(t, err)
		require.Equal(t, "store/add", m.Value().Can())
	})

	t.Run("fails when any member fails", func(t *testing.T) {
		mixed := And(echoParser("store/add"), echoParser("store/remove"))
		_, err := mixed.Match(sourceFor(t, "store/add", fixtures.Alice.DID().String()))
		require.NotNil(t, err)
	})

	t.Run("select yields combinations", func(t *testing.T) {
		sources := []Source{
			sourceFor(t, "store/add", fixtures.Alice.DID().String()),
			sourceFor(t, "store/add", fixtures.Bob.DID().String()),
		}
		matches, _, _ := parser.Select(sources)
		// 2 matches per member selector → 4 combinations
		require.Len(t, matches, 4)
	})
}

func TestDerive(t *testing.T) {
	ctx := context.Background()
	storeAdd := echoParser("store/add")
	storeAll := echoParser("store/*")

	parser := Derive(storeAll, storeAdd, nil)

	t.Run("access via derived parent", func(t *testing.T) {
		dlg, err := storeAll.Delegate(
			fixtures.Alice,
			fixtures.Bob,
			fixtures.Alice.DID().String(),
			storeAddCaveats{},
		)
		require.NoError(t, err)

		inv, err := parser.Invoke(
			fixtures.Bob,
			fixtures.Service,
			fixtures.Alice.DID().String(),
			storeAddCaveats{},
			delegation.WithProof(delegation.FromDelegation(dlg)),
		)
		require.NoError(t, err)

		vctx := NewValidationContext(
			fixtures.Service.Verifier(),
			parser,
			IsSelfIssued,
			validateAuthOk,
			ProofUnavailable,
			parseEdPrincipal,
			FailDIDKeyResolution,
		)

		a, x := Access(ctx, inv, vctx)
		require.Nil(t, x)
		require.Equal(t, "store/add", a.Capability().Can())
		require.Len(t, a.Proofs(), 1)
		require.Equal(t, fixtures.Alice.DID(), a.Proofs()[0].Issuer().DID())
	})

	t.Run("access via cross shape derivation", func(t *testing.T) {
		accountInfo := echoParser("account/info")
		memberInfo := echoParser("member/info")
		crossed := Derive(memberInfo, accountInfo, nil)

		dlg, err := memberInfo.Delegate(
			fixtures.Alice,
			fixtures.Bob,
			fixtures.Alice.DID().String(),
			storeAddCaveats{},
		)
		require.NoError(t, err)

		inv, err := crossed.Invoke(
			fixtures.Bob,
			fixtures.Service,
			fixtures.Alice.DID().String(),
			storeAddCaveats{},
			delegation.WithProof(delegation.FromDelegation(dlg)),
		)
		require.NoError(t, err)

		vctx := NewValidationContext(
			fixtures.Service.Verifier(),
			crossed,
			IsSelfIssued,
			validateAuthOk,
			ProofUnavailable,
			parseEdPrincipal,
			FailDIDKeyResolution,
		)

		a, x := Access(ctx, inv, vctx)
		require.Nil(t, x)
		require.Equal(t, "member/info", a.Proofs()[0].Capability().Can())
	})

	t.Run("derives predicate gates the transition", func(t *testing.T) {
		accountInfo := echoParser("account/info")
		memberInfo := echoParser("member/info")
		denied := Derive(memberInfo, accountInfo, func(claimed, delegated ucan.Capability[storeAddCaveats]) failure.Failure {
			return schema.NewSchemaError("membership does not confer account access")
		})

		dlg, err := memberInfo.Delegate(
			fixtures.Alice,
			fixtures.Bob,
			fixtures.Alice.DID().String(),
			storeAddCaveats{},
		)
		require.NoError(t, err)

		inv, err := denied.Invoke(
			fixtures.Bob,
			fixtures.Service,
			fixtures.Alice.DID().String(),
			storeAddCaveats{},
			delegation.WithProof(delegation.FromDelegation(dlg)),
		)
		require.NoError(t, err)

		vctx := NewValidationContext(
			fixtures.Service.Verifier(),
			denied,
			IsSelfIssued,
			validateAuthOk,
			ProofUnavailable,
			parseEdPrincipal,
			FailDIDKeyResolution,
		)

		_, x := Access(ctx, inv, vctx)
		require.NotNil(t, x)
		require.Contains(t, x.Error(), "Constraint violation")
	})
}
