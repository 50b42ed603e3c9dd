package schema

import (
	"github.com/ipld/go-ipld-prime/node/basicnode"
	"github.com/ipld/go-ipld-prime/schema"
	"github.com/ucan-wg/go-ucan/capability/policy"

	"github.com/candorlabs/go-ucankit/core/ipld"
	"github.com/candorlabs/go-ucankit/core/result/failure"
)

type strukt[T any] struct {
	typ    schema.Type
	policy policy.Policy
}

func (s strukt[T]) Read(input any) (T, failure.Failure) {
	if o, ok := input.(T); ok {
		return o, nil
	}

	var bind T
	if input == nil {
		// A capability with no caveats carries no node at all. Parse it as
		// an empty map so schemas with no required fields accept it.
		input = emptyMapNode()
	}
	node, ok := input.(ipld.Node)
	if !ok {
		// Not a node but maybe it can be converted to one.
		if builder, bok := input.(ipld.Builder); bok {
			n, err := builder.ToIPLD()
			if err != nil {
				return bind, NewSchemaError(err.Error())
			}
			node = n
		} else {
			return bind, NewSchemaError("unexpected input: not an IPLD node")
		}
	}

	if s.policy != nil {
		if ok := policy.Match(s.policy, node); !ok {
			return bind, NewSchemaError("input did not match policy")
		}
	}

	bind, err := ipld.Rebind[T](node, s.typ)
	if err != nil {
		return bind, NewSchemaError(err.Error())
	}

	return bind, nil
}

// Struct reads an IPLD node into the Go type bound to the passed schema type.
// When a policy is provided the node must additionally match it.
func Struct[T any](typ schema.Type, policy policy.Policy) Reader[any, T] {
	return strukt[T]{typ, policy}
}

func emptyMapNode() ipld.Node {
	np := basicnode.Prototype.Any
	nb := np.NewBuilder()
	ma, _ := nb.BeginMap(0)
	_ = ma.Finish()
	return nb.Build()
}
