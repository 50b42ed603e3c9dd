package validator

import (
	"testing"

	"github.com/ipld/go-ipld-prime"
	"github.com/ipld/go-ipld-prime/node/basicnode"
	"github.com/stretchr/testify/require"

	"github.com/candorlabs/go-ucankit/core/delegation"
	"github.com/candorlabs/go-ucankit/testing/fixtures"
	"github.com/candorlabs/go-ucankit/ucan"
)

func TestMatchAbility(t *testing.T) {
	for _, tc := range []struct {
		provided string
		claimed  string
		want     string
	}{
		{"*", "store/add", "store/add"},
		{"store/add", "*", "store/add"},
		{"store/*", "store/add", "store/add"},
		{"store/add", "store/*", "store/add"},
		{"store/add", "store/add", "store/add"},
		{"store/add", "store/remove", ""},
		{"store/*", "store/*", "store/*"},
		{"store/*", "upload/*", ""},
		{"*", "*", "*"},
		{"store/*", "upload/add", ""},
		{"upload/add", "store/*", ""},
	} {
		require.Equal(t, tc.want, MatchAbility(tc.provided, tc.claimed), "matchAbility(%q, %q)", tc.provided, tc.claimed)
	}
}

// the rule is commutative whenever both abilities are concrete
func TestMatchAbilityCommutative(t *testing.T) {
	concrete := []string{"store/add", "store/remove", "upload/add", "debug/echo"}
	for _, a := range concrete {
		for _, b := range concrete {
			require.Equal(t, MatchAbility(a, b), MatchAbility(b, a))
		}
	}
}

type echoCaveats struct {
	Max int64
}

func (c echoCaveats) Build() (ipld.Node, error) {
	np := basicnode.Prototype.Any
	nb := np.NewBuilder()
	ma, _ := nb.BeginMap(1)
	if c.Max != 0 {
		ma.AssembleKey().AssignString("max")
		ma.AssembleValue().AssignInt(c.Max)
	}
	ma.Finish()
	return nb.Build(), nil
}

func TestExpandCapabilitiesVerbatim(t *testing.T) {
	dlg, err := delegation.Delegate(
		fixtures.Alice,
		fixtures.Bob,
		[]ucan.Capability[ucan.CaveatBuilder]{
			ucan.NewCapability[ucan.CaveatBuilder]("store/add", fixtures.Alice.DID().String(), ucan.NoCaveats{}),
		},
	)
	require.NoError(t, err)

	caps := ExpandCapabilities(dlg)
	require.Len(t, caps, 1)
	require.Equal(t, "store/add", caps[0].Can())
	require.Equal(t, fixtures.Alice.DID().String(), caps[0].With())
}

func TestExpandCapabilitiesRedelegation(t *testing.T) {
	inner, err := delegation.Delegate(
		fixtures.Mallory,
		fixtures.Alice,
		[]ucan.Capability[ucan.CaveatBuilder]{
			ucan.NewCapability[ucan.CaveatBuilder]("store/add", fixtures.Mallory.DID().String(), echoCaveats{Max: 5}),
			ucan.NewCapability[ucan.CaveatBuilder]("upload/add", fixtures.Mallory.DID().String(), ucan.NoCaveats{}),
		},
	)
	require.NoError(t, err)

	outer, err := delegation.Delegate(
		fixtures.Alice,
		fixtures.Bob,
		[]ucan.Capability[ucan.CaveatBuilder]{
			ucan.NewCapability[ucan.CaveatBuilder]("store/*", Redelegation, ucan.NoCaveats{}),
		},
		delegation.WithProof(delegation.FromDelegation(inner)),
	)
	require.NoError(t, err)

	caps := ExpandCapabilities(outer)

	// own resources first, then the compatible proof capability - the
	// incompatible upload/add is filtered by the ability match rule
	require.Len(t, caps, 2)
	require.Equal(t, "store/*", caps[0].Can())
	require.Equal(t, fixtures.Alice.DID().String(), caps[0].With())
	require.Equal(t, "store/add", caps[1].Can())
	require.Equal(t, fixtures.Mallory.DID().String(), caps[1].With())
}

func TestMergeCaveats(t *testing.T) {
	own := echoCaveats{Max: 2}
	child := echoCaveats{Max: 9}

	ownNode, err := own.Build()
	require.NoError(t, err)
	childNode, err := child.Build()
	require.NoError(t, err)

	merged, ok := mergeCaveats(ownNode, childNode).(ipld.Node)
	require.True(t, ok)

	v, err := merged.LookupByString("max")
	require.NoError(t, err)
	max, err := v.AsInt()
	require.NoError(t, err)
	// the delegator's constraint wins
	require.Equal(t, int64(2), max)

	// a nil side passes the other side through
	require.Equal(t, ownNode, mergeCaveats(ownNode, nil))
	require.Equal(t, childNode, mergeCaveats(nil, childNode))
}
