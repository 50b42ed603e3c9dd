package ucan

import (
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/node/basicnode"
)

// MapBuilder builds an IPLD map node from the underlying data.
type MapBuilder interface {
	Build() (datamodel.Node, error)
}

type CaveatBuilder = MapBuilder
type FactBuilder = MapBuilder

// NoCaveats can be used when a capability has no additional domain specific
// details and/or restrictions.
type NoCaveats struct{}

func (c NoCaveats) Build() (datamodel.Node, error) {
	np := basicnode.Prototype.Any
	nb := np.NewBuilder()
	ma, err := nb.BeginMap(0)
	if err != nil {
		return nil, err
	}
	err = ma.Finish()
	if err != nil {
		return nil, err
	}
	return nb.Build(), nil
}
