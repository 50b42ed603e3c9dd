package schema

import (
	"fmt"
	"net/url"

	"github.com/candorlabs/go-ucankit/core/result/failure"
)

type uriConfig struct {
	protocol *string
}

type URIOption func(*uriConfig)

func WithProtocol(protocol string) URIOption {
	return func(uc *uriConfig) {
		uc.protocol = &protocol
	}
}

type uriReader struct {
	uc *uriConfig
}

func (ur uriReader) Read(input any) (url.URL, failure.Failure) {
	asString, stringOk := input.(string)
	asURL, urlOk := input.(url.URL)
	if !stringOk && !urlOk {
		return url.URL{}, NewSchemaError(fmt.Sprintf("Expected URI but got %T", input))
	}
	if !urlOk {
		u, err := url.ParseRequestURI(asString)
		if err != nil {
			return url.URL{}, NewSchemaError("Invalid URI")
		}
		asURL = *u
	}
	if ur.uc.protocol != nil && *ur.uc.protocol != asURL.Scheme+":" {
		return url.URL{}, NewSchemaError(fmt.Sprintf("Expected %s URI instead got %s", *ur.uc.protocol, asURL.String()))
	}
	return asURL, nil
}

// URI reads a URI from a string or a url.URL value.
func URI(opts ...URIOption) Reader[any, url.URL] {
	uc := &uriConfig{}
	for _, opt := range opts {
		opt(uc)
	}
	return uriReader{uc}
}

type uriStringReader struct {
	uc *uriConfig
}

func (ur uriStringReader) Read(input string) (string, failure.Failure) {
	u, err := URI(withConfig(ur.uc)).Read(input)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func withConfig(uc *uriConfig) URIOption {
	return func(cfg *uriConfig) {
		*cfg = *uc
	}
}

// URIString reads a URI string, validating but not restructuring it. It is
// the reader typically used for the `with` field of a capability.
func URIString(opts ...URIOption) Reader[string, string] {
	uc := &uriConfig{}
	for _, opt := range opts {
		opt(uc)
	}
	return uriStringReader{uc}
}
