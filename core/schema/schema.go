package schema

import (
	"github.com/ipld/go-ipld-prime/node/basicnode"

	"github.com/candorlabs/go-ucankit/core/ipld"
	"github.com/candorlabs/go-ucankit/core/result/failure"
)

// Reader parses an untyped input into a typed output, failing with a well
// typed reason.
type Reader[I, O any] interface {
	Read(input I) (O, failure.Failure)
}

type reader[I, O any] struct {
	readFunc func(input I) (O, failure.Failure)
}

func (r reader[I, O]) Read(input I) (O, failure.Failure) {
	return r.readFunc(input)
}

type schemaerr struct {
	message string
}

func (se *schemaerr) Name() string {
	return "SchemaError"
}

func (se *schemaerr) Error() string {
	return se.message
}

func (se *schemaerr) ToIPLD() (ipld.Node, error) {
	np := basicnode.Prototype.Any
	nb := np.NewBuilder()
	ma, err := nb.BeginMap(2)
	if err != nil {
		return nil, err
	}
	ma.AssembleKey().AssignString("name")
	ma.AssembleValue().AssignString(se.Name())
	ma.AssembleKey().AssignString("message")
	ma.AssembleValue().AssignString(se.Error())
	err = ma.Finish()
	if err != nil {
		return nil, err
	}
	return nb.Build(), nil
}

var _ failure.Failure = (*schemaerr)(nil)
var _ ipld.Builder = (*schemaerr)(nil)

func NewSchemaError(message string) failure.Failure {
	return &schemaerr{message}
}
