package invocation

import (
	"github.com/candorlabs/go-ucankit/core/dag/blockstore"
	"github.com/candorlabs/go-ucankit/core/delegation"
	"github.com/candorlabs/go-ucankit/core/ipld"
	"github.com/candorlabs/go-ucankit/ucan"
)

// Invocation represents a UCAN that can be presented to a service provider to
// invoke or "exercise" a Capability. You can think of invocations as a
// serialized function call, where the ability or `can` portion of the
// Capability acts as the function name, and the resource (`with`) and caveats
// (`nb`) of the capability act as function arguments.
//
// Most invocations will require valid proofs, which consist of a chain of
// Delegations. The service provider will inspect the proofs to verify that
// the invocation has sufficient privileges to execute.
type Invocation interface {
	delegation.Delegation
}

type IssuedInvocation interface {
	Invocation
}

func NewInvocation(root ipld.Block, bs blockstore.BlockReader) Invocation {
	return delegation.NewDelegation(root, bs)
}

func NewInvocationView(root ipld.Link, bs blockstore.BlockReader) (Invocation, error) {
	return delegation.NewDelegationView(root, bs)
}

// Invoke creates an invocation of the passed capability, issued by the
// invoker to the service.
func Invoke[C ucan.CaveatBuilder](issuer ucan.Signer, audience ucan.Principal, capability ucan.Capability[C], options ...delegation.Option) (IssuedInvocation, error) {
	return delegation.Delegate(issuer, audience, []ucan.Capability[C]{capability}, options...)
}
