package schema

import (
	"fmt"
	"strings"

	"github.com/candorlabs/go-ucankit/core/result/failure"
	"github.com/candorlabs/go-ucankit/did"
)

type didConfig struct {
	method *string
}

type DIDOption func(*didConfig)

// WithMethod requires the DID to use the given method, e.g. "key" or
// "mailto".
func WithMethod(method string) DIDOption {
	return func(dc *didConfig) {
		dc.method = &method
	}
}

type didStringReader struct {
	dc *didConfig
}

func (dr didStringReader) Read(input string) (string, failure.Failure) {
	if !strings.HasPrefix(input, did.Prefix) {
		return "", NewSchemaError(fmt.Sprintf("Expected a did: but got \"%s\" instead", input))
	}
	if dr.dc.method != nil && !strings.HasPrefix(input, did.Prefix+*dr.dc.method+":") {
		return "", NewSchemaError(fmt.Sprintf("Expected a did:%s: but got \"%s\" instead", *dr.dc.method, input))
	}
	if _, err := did.Parse(input); err != nil {
		return "", NewSchemaError(err.Error())
	}
	return input, nil
}

// DIDString reads a DID string, validating but not restructuring it.
func DIDString(opts ...DIDOption) Reader[string, string] {
	dc := &didConfig{}
	for _, opt := range opts {
		opt(dc)
	}
	return didStringReader{dc}
}

var didreader = reader[string, did.DID]{
	readFunc: func(input string) (did.DID, failure.Failure) {
		d, err := did.Parse(input)
		if err != nil {
			return did.Undef, NewSchemaError(err.Error())
		}
		return d, nil
	},
}

// DID reads a DID string into a did.DID.
func DID() Reader[string, did.DID] {
	return &didreader
}
