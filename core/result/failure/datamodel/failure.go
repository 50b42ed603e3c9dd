package datamodel

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/ipld/go-ipld-prime"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/node/bindnode"
	"github.com/ipld/go-ipld-prime/schema"
)

//go:embed failure.ipldsch
var failuresch []byte

var (
	once sync.Once
	ts   *schema.TypeSystem
	err  error
)

func mustLoadSchema() *schema.TypeSystem {
	once.Do(func() {
		ts, err = ipld.LoadSchemaBytes(failuresch)
	})
	if err != nil {
		panic(fmt.Errorf("failed to load IPLD schema: %w", err))
	}
	return ts
}

func Type() schema.Type {
	return mustLoadSchema().TypeByName("Failure")
}

// FailureModel is a generic failure with an optional name and stack trace.
type FailureModel struct {
	Name    *string
	Message string
	Stack   *string
}

func (f FailureModel) ToIPLD() (datamodel.Node, error) {
	return bindnode.Wrap(&f, Type()), nil
}
